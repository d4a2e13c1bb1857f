package brick

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brick/internal/logging"
	"github.com/conneroisu/brick/pkg/dom"
)

type logEntry struct {
	level  string
	msg    string
	err    error
	fields []any
}

// recordingLogger captures entries for assertions.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  []any
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *recordingLogger) add(level, msg string, err error, fields []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := append(append([]any{}, l.fields...), fields...)
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, err: err, fields: all})
}

func (l *recordingLogger) Debug(_ context.Context, msg string, fields ...any) {
	l.add("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(_ context.Context, msg string, fields ...any) {
	l.add("info", msg, nil, fields)
}

func (l *recordingLogger) Warn(_ context.Context, err error, msg string, fields ...any) {
	l.add("warn", msg, err, fields)
}

func (l *recordingLogger) Error(_ context.Context, err error, msg string, fields ...any) {
	l.add("error", msg, err, fields)
}

func (l *recordingLogger) With(fields ...any) logging.Logger {
	return &recordingLogger{mu: l.mu, entries: l.entries, fields: append(append([]any{}, l.fields...), fields...)}
}

func (l *recordingLogger) WithComponent(component string) logging.Logger {
	return l.With("component", component)
}

func (l *recordingLogger) byLevel(level string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range *l.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

func newTestRegistry(t *testing.T, markup string, opts ...RegistryOption) (*Registry, *dom.Document) {
	t.Helper()

	doc, err := dom.ParseString(markup)
	require.NoError(t, err)

	opts = append([]RegistryOption{WithLogger(logging.NewNop())}, opts...)
	reg := NewRegistry(doc, opts...)
	t.Cleanup(func() {
		reg.Close()
		doc.Close()
	})
	return reg, doc
}

func query(t *testing.T, root *dom.Element, selector string) *dom.Element {
	t.Helper()

	el, err := root.QuerySelector(selector)
	require.NoError(t, err)
	require.NotNil(t, el, "no match for %s", selector)
	return el
}

// echo renders the args it was given.
type echo struct{ *Brick }

func (e *echo) CreateViewModel(ctx context.Context, args any) (any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	return args, nil
}

func newEcho(b *Brick) Component { return &echo{Brick: b} }
