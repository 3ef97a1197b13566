package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/wearsync/internal/dispatch"
	"github.com/nerrad567/wearsync/internal/telemetry"
)

type putCall struct {
	path   string
	data   []byte
	urgent bool
}

// fakeChannel is a scriptable Channel.
type fakeChannel struct {
	mu sync.Mutex

	connected  bool
	connecting bool

	// connectErr is returned by BlockingConnect; nil means success. A failed
	// attempt leaves the connecting flag as it was.
	connectErr     error
	blockingCalls  int
	blockingWaited time.Duration

	// putErr is delivered on every Put result channel.
	putErr error
	puts   []putCall
}

func (f *fakeChannel) Connect() {}

func (f *fakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) IsConnecting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connecting
}

func (f *fakeChannel) BlockingConnect(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.blockingCalls++
	f.blockingWaited = timeout
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connecting = false
	f.connected = true
	return nil
}

func (f *fakeChannel) Put(path string, data []byte, urgent bool) <-chan error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.puts = append(f.puts, putCall{path: path, data: append([]byte(nil), data...), urgent: urgent})
	result := make(chan error, 1)
	result <- f.putErr
	return result
}

func (f *fakeChannel) putCalls() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]putCall(nil), f.puts...)
}

func (f *fakeChannel) blockingConnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockingCalls
}

// inlineDispatcher runs each task before Enqueue returns.
type inlineDispatcher struct {
	err    error
	closed bool
}

func (d *inlineDispatcher) Enqueue(task dispatch.Task) error {
	if d.err != nil {
		return d.err
	}
	task()
	return nil
}

func (d *inlineDispatcher) EnqueuePriority(task dispatch.Task) error {
	return d.Enqueue(task)
}

func (d *inlineDispatcher) Shutdown(context.Context) error {
	d.closed = true
	return nil
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

// count returns how many entries match level and msg.
func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

func (l *recordingLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprint(l.entries)
}

// outcomeRecorder keeps every outcome.
type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []telemetry.Outcome
	err      error
}

func (r *outcomeRecorder) Record(_ context.Context, o telemetry.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return r.err
}

func (r *outcomeRecorder) statuses() []telemetry.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]telemetry.Status, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		out = append(out, o.Status)
	}
	return out
}

// manualClock is a settable time source.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(ms int64) *manualClock {
	return &manualClock{now: time.UnixMilli(ms)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(ms int64) {
	c.mu.Lock()
	c.now = time.UnixMilli(ms)
	c.mu.Unlock()
}

// stalledChannel reports a handshake in progress and holds every
// BlockingConnect until release is called.
type stalledChannel struct {
	fakeChannel
	released chan struct{}
	once     sync.Once
}

func newStalledChannel() *stalledChannel {
	return &stalledChannel{
		fakeChannel: fakeChannel{connecting: true},
		released:    make(chan struct{}),
	}
}

func (s *stalledChannel) BlockingConnect(time.Duration) error {
	<-s.released
	return nil
}

func (s *stalledChannel) release() {
	s.once.Do(func() {
		s.mu.Lock()
		s.connecting = false
		s.connected = true
		s.mu.Unlock()
		close(s.released)
	})
}
