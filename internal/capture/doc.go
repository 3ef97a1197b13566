// Package capture turns locally published sensor messages into relay calls.
//
// The sensor process and the UI run as separate processes on the device and
// publish on the device's capture topics:
//
//	wearsync/{device_id}/capture/sample  {"category":1,"accuracy":3,"timestamp":...,"values":[...]}
//	wearsync/{device_id}/capture/fall    {"fallstate":true}
//	wearsync/{device_id}/capture/filter  {"category":1}
//
// Malformed messages are logged and dropped.
package capture
