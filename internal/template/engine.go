// Package template compiles and renders the string templates components
// declare. Placeholders use {{ and }} and name a dotted path into the view
// model: {{user.name}} reads key "user" then field or key "name". Missing
// values render as the empty string.
package template

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/a-h/templ"
	gocache "github.com/patrickmn/go-cache"
	"github.com/valyala/fasttemplate"

	brickerrors "github.com/conneroisu/brick/internal/errors"
)

const (
	DefaultStartTag        = "{{"
	DefaultEndTag          = "}}"
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Engine compiles string templates and caches the results by source.
type Engine struct {
	startTag   string
	endTag     string
	autoEscape bool
	cache      *gocache.Cache
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelimiters replaces the {{ }} placeholder delimiters.
func WithDelimiters(start, end string) Option {
	return func(e *Engine) {
		e.startTag = start
		e.endTag = end
	}
}

// WithAutoEscape HTML-escapes substituted values when enabled.
func WithAutoEscape(enabled bool) Option {
	return func(e *Engine) {
		e.autoEscape = enabled
	}
}

// WithCache sets how long compiled templates stay cached.
func WithCache(expiration, cleanupInterval time.Duration) Option {
	return func(e *Engine) {
		e.cache = gocache.New(expiration, cleanupInterval)
	}
}

// NewEngine returns an engine with the given options applied.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		startTag: DefaultStartTag,
		endTag:   DefaultEndTag,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = gocache.New(DefaultExpiration, DefaultCleanupInterval)
	}
	return e
}

// Compile parses source, reusing a cached compilation when one exists.
func (e *Engine) Compile(source string) (*Template, error) {
	if cached, found := e.cache.Get(source); found {
		if t, ok := cached.(*Template); ok {
			return t, nil
		}
	}

	ft, err := fasttemplate.NewTemplate(source, e.startTag, e.endTag)
	if err != nil {
		return nil, brickerrors.NewTemplateError(
			brickerrors.ErrCodeTemplateCompile,
			"compiling template",
			err,
		)
	}

	t := &Template{source: source, ft: ft, autoEscape: e.autoEscape}
	e.cache.SetDefault(source, t)
	return t, nil
}

// Render compiles source and executes it against vm.
func (e *Engine) Render(source string, vm any) (string, error) {
	t, err := e.Compile(source)
	if err != nil {
		return "", err
	}
	return t.Execute(vm)
}

// RenderComponent renders a templ component into a string.
func (e *Engine) RenderComponent(ctx context.Context, c templ.Component) (string, error) {
	if c == nil {
		return "", nil
	}

	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", brickerrors.NewTemplateError(
			brickerrors.ErrCodeTemplateExecute,
			"rendering component",
			err,
		)
	}
	return buf.String(), nil
}

// Cached reports how many compiled templates are held.
func (e *Engine) Cached() int {
	return e.cache.ItemCount()
}

// Flush drops every cached compilation.
func (e *Engine) Flush() {
	e.cache.Flush()
}

// Template is a compiled string template. It is safe for concurrent use.
type Template struct {
	source     string
	ft         *fasttemplate.Template
	autoEscape bool
}

// Source returns the template text.
func (t *Template) Source() string {
	return t.source
}

// Execute substitutes every placeholder with the value found in vm.
func (t *Template) Execute(vm any) (string, error) {
	out, err := t.ft.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		v, _ := Lookup(vm, tag)
		s := format(v)
		if t.autoEscape {
			s = html.EscapeString(s)
		}
		return io.WriteString(w, s)
	})
	if err != nil {
		return "", brickerrors.NewTemplateError(
			brickerrors.ErrCodeTemplateExecute,
			"executing template",
			err,
		)
	}
	return out, nil
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	default:
		return fmt.Sprint(x)
	}
}
