package brick

import (
	"context"

	"github.com/a-h/templ"
)

// TemplateEngine renders string templates and templ components to markup.
type TemplateEngine interface {
	Render(source string, vm any) (string, error)
	RenderComponent(ctx context.Context, c templ.Component) (string, error)
}

// Template is a reference to the markup source a class renders.
type Template interface {
	Markup(ctx context.Context, engine TemplateEngine, vm any) (string, error)
}

// Text is a string template compiled by the engine.
type Text string

// Markup renders the string through the engine.
func (t Text) Markup(_ context.Context, engine TemplateEngine, vm any) (string, error) {
	return engine.Render(string(t), vm)
}

// Func produces markup directly from the view model.
type Func func(vm any) (string, error)

// Markup calls the function.
func (f Func) Markup(_ context.Context, _ TemplateEngine, vm any) (string, error) {
	return f(vm)
}

// Templ builds a templ component from the view model.
type Templ func(vm any) templ.Component

// Markup renders the component the function returns.
func (f Templ) Markup(ctx context.Context, engine TemplateEngine, vm any) (string, error) {
	return engine.RenderComponent(ctx, f(vm))
}

// declared reports whether tpl would produce anything.
func declared(tpl Template) bool {
	switch t := tpl.(type) {
	case nil:
		return false
	case Text:
		return t != ""
	case Func:
		return t != nil
	case Templ:
		return t != nil
	default:
		return true
	}
}
