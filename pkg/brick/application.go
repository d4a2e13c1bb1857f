package brick

import (
	"context"

	"github.com/conneroisu/brick/pkg/dom"
)

// RunFunc is the application entry point, called after the initial scan.
type RunFunc func(ctx context.Context, app *Application) error

// Application is the document-level glue: it triggers the registry's initial
// scan and offers Listen and Fire scoped to the body.
type Application struct {
	registry *Registry
	run      RunFunc
}

// NewApplication returns an application over reg. run may be nil.
func NewApplication(reg *Registry, run RunFunc) *Application {
	return &Application{registry: reg, run: run}
}

// Registry returns the application's registry.
func (a *Application) Registry() *Registry { return a.registry }

// Start upgrades every tagged element, then calls the run function unless
// run is false.
func (a *Application) Start(ctx context.Context, run bool) error {
	if err := a.registry.Initialize(ctx); err != nil {
		return err
	}
	if !run || a.run == nil {
		return nil
	}
	return a.run(ctx, a)
}

func (a *Application) body() *dom.Element {
	return a.registry.doc.Body()
}

// Listen handles events reaching the body.
func (a *Application) Listen(event string, h dom.Handler) func() {
	return listen(a.body(), []string{event}, h)
}

// ListenMany registers h for several event names on the body.
func (a *Application) ListenMany(events []string, h dom.Handler) func() {
	return listen(a.body(), events, h)
}

// Fire dispatches a bubbling, cancelable event from the body.
func (a *Application) Fire(name string, data any) bool {
	return fire(a.body(), name, data, DefaultFireOptions())
}

// FireWith dispatches from the body with explicit options.
func (a *Application) FireWith(name string, data any, opts FireOptions) bool {
	return fire(a.body(), name, data, opts)
}
