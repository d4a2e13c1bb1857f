package renderer

import (
	"context"
	"io"
	"sync"

	"github.com/conneroisu/brick/internal/config"
	"github.com/conneroisu/brick/internal/logging"
	"github.com/conneroisu/brick/internal/template"
)

// Builder renders the configured page again and again, for watch mode and
// the preview server. Every build uses a fresh PageRenderer over the current
// configuration; the template engine, and with it compiled templates, is
// shared between builds.
type Builder struct {
	logger logging.Logger
	opts   []Option

	mu  sync.RWMutex
	cfg *config.Config
}

// NewBuilder creates a builder for cfg. opts apply to every build.
func NewBuilder(cfg *config.Config, logger logging.Logger, opts ...Option) *Builder {
	shared := []Option{WithEngine(template.NewEngine())}
	return &Builder{
		logger: logger,
		opts:   append(shared, opts...),
		cfg:    cfg,
	}
}

// Config returns the configuration the next build uses.
func (b *Builder) Config() *config.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// SetConfig replaces the configuration for later builds.
func (b *Builder) SetConfig(cfg *config.Config) {
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
}

// Build renders the page to the configured output, or to w.
func (b *Builder) Build(ctx context.Context, w io.Writer) (*Result, error) {
	return NewPageRenderer(b.Config(), b.logger, b.opts...).RenderPage(ctx, w)
}
