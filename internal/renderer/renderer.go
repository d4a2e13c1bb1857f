// Package renderer renders whole pages: it parses an HTML document,
// registers the configured components, upgrades every tagged element and
// serializes the result.
//
// Failures of renders started during construction do not abort a page.
// They are collected and, when the error overlay is enabled, appended to
// the body so they show up in the browser during development.
package renderer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/brick/internal/components"
	"github.com/conneroisu/brick/internal/config"
	brickerrors "github.com/conneroisu/brick/internal/errors"
	"github.com/conneroisu/brick/internal/logging"
	"github.com/conneroisu/brick/internal/template"
	"github.com/conneroisu/brick/pkg/brick"
	"github.com/conneroisu/brick/pkg/dom"
)

// Result describes one rendered page.
type Result struct {
	HTML       string
	Components int
	Failures   []brickerrors.Failure
	Duration   time.Duration
}

// Option configures a PageRenderer.
type Option func(*PageRenderer)

// WithLiveReload appends a script that reloads the page whenever the
// websocket at path sends a message.
func WithLiveReload(path string) Option {
	return func(r *PageRenderer) { r.liveReload = path }
}

// WithEngine shares a template engine, and with it the compiled template
// cache, across renders.
func WithEngine(e *template.Engine) Option {
	return func(r *PageRenderer) { r.engine = e }
}

// PageRenderer renders pages with the components declared in a config.
type PageRenderer struct {
	cfg        *config.Config
	logger     logging.Logger
	engine     *template.Engine
	liveReload string
}

// NewPageRenderer creates a renderer for cfg.
func NewPageRenderer(cfg *config.Config, logger logging.Logger, opts ...Option) *PageRenderer {
	r := &PageRenderer{
		cfg:    cfg,
		logger: logger.WithComponent("renderer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.engine == nil {
		r.engine = template.NewEngine()
	}
	return r
}

// Render renders the document read from src.
func (r *PageRenderer) Render(ctx context.Context, src io.Reader) (*Result, error) {
	start := time.Now()

	doc, err := dom.Parse(src)
	if err != nil {
		return nil, brickerrors.NewIOError(brickerrors.ErrCodeInternalError, "parsing page", err)
	}
	defer doc.Close()

	reg := brick.NewRegistry(doc,
		brick.WithLogger(r.logger),
		brick.WithTemplateEngine(r.engine),
	)
	defer reg.Close()

	if _, err := components.Register(reg, r.cfg.Components, r.cfg.BaseDir); err != nil {
		return nil, err
	}

	app := brick.NewApplication(reg, nil)
	if err := app.Start(ctx, false); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Construction failures leave the element as it was; the rest of
		// the page still renders.
		reg.Errors().AddError(err)
	}

	result := &Result{
		Components: reg.Live(),
		Failures:   reg.Errors().GetFailures(),
	}

	body := doc.Body()
	if r.cfg.Page.ErrorOverlay && len(result.Failures) > 0 {
		if err := appendMarkup(doc, body, reg.Errors().ErrorOverlay()); err != nil {
			return nil, err
		}
	}
	if r.liveReload != "" {
		if err := appendMarkup(doc, body, liveReloadScript(r.liveReload)); err != nil {
			return nil, err
		}
	}

	result.HTML = doc.String()
	result.Duration = time.Since(start)

	r.logger.Info(ctx, "page rendered",
		"components", result.Components,
		"failures", len(result.Failures),
		"duration", result.Duration)
	return result, nil
}

// RenderFile renders the page at path.
func (r *PageRenderer) RenderFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, brickerrors.NewIOError(brickerrors.ErrCodeFileNotFound,
			fmt.Sprintf("opening page %s", path), err)
	}
	defer f.Close()

	return r.Render(ctx, f)
}

// RenderPage renders the configured input page and writes it to the
// configured output, or to w when no output is set.
func (r *PageRenderer) RenderPage(ctx context.Context, w io.Writer) (*Result, error) {
	result, err := r.RenderFile(ctx, r.cfg.Page.Input)
	if err != nil {
		return nil, err
	}

	if r.cfg.Page.Output == "" {
		_, err = io.WriteString(w, result.HTML)
		return result, err
	}

	if dir := filepath.Dir(r.cfg.Page.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, brickerrors.NewIOError(brickerrors.ErrCodeInternalError, "creating output directory", err)
		}
	}
	if err := os.WriteFile(r.cfg.Page.Output, []byte(result.HTML), 0o600); err != nil {
		return nil, brickerrors.NewIOError(brickerrors.ErrCodeInternalError,
			fmt.Sprintf("writing %s", r.cfg.Page.Output), err)
	}
	return result, nil
}

// RenderComponent renders a single configured component into a detached
// element and returns its outer HTML.
func (r *PageRenderer) RenderComponent(ctx context.Context, tag string, args map[string]any) (string, error) {
	doc := dom.NewDocument()
	defer doc.Close()

	reg := brick.NewRegistry(doc,
		brick.WithLogger(r.logger),
		brick.WithTemplateEngine(r.engine),
	)
	defer reg.Close()

	if _, err := components.Register(reg, r.cfg.Components, r.cfg.BaseDir); err != nil {
		return "", err
	}

	class, ok := reg.Class(tag)
	if !ok {
		return "", brickerrors.ErrComponentNotFound(tag)
	}
	comp, err := class.Create(ctx, "", false)
	if err != nil {
		return "", err
	}

	var renderArgs any
	if args != nil {
		renderArgs = args
	}
	if _, err := comp.Base().Render(ctx, renderArgs); err != nil {
		return "", err
	}
	return comp.Base().Root().OuterHTML(), nil
}

func appendMarkup(doc *dom.Document, parent *dom.Element, markup string) error {
	nodes, err := doc.ParseFragment(markup)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}

func liveReloadScript(path string) string {
	var sb strings.Builder
	sb.WriteString(`<script id="brick-live-reload">`)
	fmt.Fprintf(&sb, `(function(){var p=location.protocol==="https:"?"wss://":"ws://";`+
		`var ws=new WebSocket(p+location.host+%q);`+
		`ws.onmessage=function(){location.reload();};})();`, path)
	sb.WriteString(`</script>`)
	return sb.String()
}
