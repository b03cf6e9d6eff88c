package session

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"microconfig-service/internal/menu"
)

// fakeLink is a scripted firmware end of the link. respond, if set, is
// called for every command written and its output becomes readable.
type fakeLink struct {
	pending  []byte
	writes   []string
	readErr  error
	writeErr error
	closed   bool
	respond  func(cmd string) string
}

func (l *fakeLink) Read(_ context.Context, maxBytes int) ([]byte, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	n := min(maxBytes, len(l.pending))
	out := l.pending[:n]
	l.pending = l.pending[n:]
	return out, nil
}

func (l *fakeLink) Write(_ context.Context, data []byte) error {
	if l.writeErr != nil {
		return l.writeErr
	}
	cmd := strings.TrimSuffix(string(data), "\n")
	l.writes = append(l.writes, cmd)
	if l.respond != nil {
		l.feed(l.respond(cmd))
	}
	return nil
}

func (l *fakeLink) ResetInput() error {
	l.pending = nil
	return nil
}

func (l *fakeLink) Close() error {
	l.closed = true
	return nil
}

func (l *fakeLink) feed(text string) {
	l.pending = append(l.pending, text...)
}

type delivery struct {
	identifier string
	lines      []string
	success    bool
}

type recorder struct {
	deliveries []delivery
	streamed   [][]string
}

func (r *recorder) Stream(_ string, lines []string) {
	r.streamed = append(r.streamed, lines)
}

func (r *recorder) Deliver(identifier string, lines []string, success bool) {
	r.deliveries = append(r.deliveries, delivery{identifier, lines, success})
}

func (r *recorder) last() delivery {
	return r.deliveries[len(r.deliveries)-1]
}

type testObserver struct {
	banners []Banner
	ready   int
	faults  []error
	prompts []Prompt
	answer  *bool
}

func (o *testObserver) OnStartup(b Banner) { o.banners = append(o.banners, b) }

func (o *testObserver) OnMenuReady(*menu.Tree, *menu.Index) { o.ready++ }

func (o *testObserver) Confirm(p Prompt) bool {
	o.prompts = append(o.prompts, p)
	if o.answer != nil {
		return *o.answer
	}
	return p.Default
}

func (o *testObserver) OnFault(err error) { o.faults = append(o.faults, err) }

func newTestSession(t *testing.T, link *fakeLink, obs *testObserver, opts Options) *Session {
	return New(link, obs, opts, zaptest.NewLogger(t))
}

// newExecutorSession returns a session that has finished discovery
func newExecutorSession(t *testing.T, link *fakeLink, obs *testObserver) *Session {
	s := newTestSession(t, link, obs, DefaultOptions())
	s.mode = ModeExecutor
	s.index = menu.NewIndex(s.tree)
	return s
}

func pollN(ctx context.Context, s *Session, n int) {
	for i := 0; i < n; i++ {
		s.Poll(ctx)
	}
}
