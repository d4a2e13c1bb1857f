package errors

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
)

// Failure is a recorded error with the time it was collected.
type Failure struct {
	Err       error
	Tag       string
	Stage     string
	Timestamp time.Time
}

// Error implements the error interface
func (f *Failure) Error() string {
	return f.Err.Error()
}

// Unwrap returns the recorded error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// ErrorCollector collects errors nobody was waiting on, such as failures of
// renders started during construction.
type ErrorCollector struct {
	failures []Failure
	mutex    sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		failures: make([]Failure, 0),
	}
}

// AddError adds an error to the collector. Tag and stage are copied from the
// first *BrickError in the chain.
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}

	f := Failure{Err: err, Timestamp: time.Now()}
	var be *BrickError
	if errors.As(err, &be) {
		f.Tag = be.Tag
		f.Stage = be.Stage
	}

	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = append(ec.failures, f)
}

// GetFailures returns a copy of all collected failures
func (ec *ErrorCollector) GetFailures() []Failure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]Failure, len(ec.failures))
	copy(result, ec.failures)
	return result
}

// GetAllErrors returns all collected errors
func (ec *ErrorCollector) GetAllErrors() []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	all := make([]error, 0, len(ec.failures))
	for _, f := range ec.failures {
		all = append(all, f.Err)
	}
	return all
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.failures) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = ec.failures[:0]
}

// GetErrorsByComponent returns failures for a specific component tag
func (ec *ErrorCollector) GetErrorsByComponent(tag string) []Failure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var out []Failure
	for _, f := range ec.failures {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// ErrorOverlay generates HTML listing the collected failures, or "" when
// there are none.
func (ec *ErrorCollector) ErrorOverlay() string {
	failures := ec.GetFailures()
	if len(failures) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(`<div id="brick-error-overlay" style="position: fixed; inset: 0; background: rgba(0, 0, 0, 0.8); color: white; font-family: monospace; padding: 20px; overflow: auto; z-index: 9999;">`)
	sb.WriteString(`<h2 style="color: #ff6b6b;">Render Errors</h2>`)
	for _, f := range failures {
		where := f.Tag
		if f.Stage != "" {
			where += " (" + f.Stage + ")"
		}
		fmt.Fprintf(&sb,
			`<div style="background: #2d3748; padding: 12px; margin-bottom: 12px; border-left: 4px solid #ff6b6b;"><strong>%s</strong> <span style="color: #a0aec0;">%s</span><div>%s</div></div>`,
			html.EscapeString(where),
			f.Timestamp.Format("15:04:05"),
			html.EscapeString(f.Err.Error()),
		)
	}
	sb.WriteString(`</div>`)

	return sb.String()
}
