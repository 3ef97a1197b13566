// Package telemetry records what happened to each send.
//
// Every send handed to the relay ends in exactly one Outcome. Recorders
// store or export outcomes:
//   - Journal keeps them in the SQLite delivery journal for inspection
//   - InfluxRecorder writes them as delivery_outcome points
//   - Multi fans one outcome out to several recorders
//
// Recording is best effort. A recorder error is logged by the caller and
// never reaches the producer of the sample.
package telemetry
