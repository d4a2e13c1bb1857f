package renderer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brick/internal/config"
	brickerrors "github.com/conneroisu/brick/internal/errors"
	"github.com/conneroisu/brick/internal/logging"
	"github.com/conneroisu/brick/internal/template"
)

const page = `<!DOCTYPE html>
<html><head><title>t</title></head>
<body>
	<p is="greeting"></p>
	<ul is="list"></ul>
	<div>plain</div>
</body></html>`

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		BaseDir: t.TempDir(),
		Page:    config.PageConfig{ErrorOverlay: true},
		Components: []config.ComponentConfig{
			{Tag: "greeting", Template: "Hello {{name}}", Data: map[string]any{"name": "Ada"}},
			{Tag: "item", Template: "{{label}}"},
			{
				Tag:      "list",
				Template: `<li is="item" data-label="one"></li><li is="item" data-label="two"></li>`,
				Options:  config.ComponentOptions{RegisterSubBricksOnRender: boolPtr(true)},
			},
		},
	}
}

func boolPtr(v bool) *bool { return &v }

func TestPageRenderer_Render(t *testing.T) {
	r := NewPageRenderer(testConfig(t), logging.NewNop())

	result, err := r.Render(context.Background(), strings.NewReader(page))
	require.NoError(t, err)

	assert.Contains(t, result.HTML, `<p is="greeting" brick-initialized="yes">Hello Ada</p>`)
	assert.Contains(t, result.HTML, `data-label="one" brick-initialized="yes">one</li>`)
	assert.Contains(t, result.HTML, `data-label="two" brick-initialized="yes">two</li>`)
	assert.Contains(t, result.HTML, `<div>plain</div>`)
	assert.Equal(t, 4, result.Components)
	assert.Empty(t, result.Failures)
	assert.NotContains(t, result.HTML, "brick-error-overlay")
}

func TestPageRenderer_FailuresProduceOverlay(t *testing.T) {
	cfg := testConfig(t)
	cfg.Components = append(cfg.Components, config.ComponentConfig{Tag: "broken", Template: "{{oops"})
	r := NewPageRenderer(cfg, logging.NewNop())

	result, err := r.Render(context.Background(), strings.NewReader(
		`<body><p is="greeting"></p><div is="broken">x</div></body>`))
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "broken", result.Failures[0].Tag)
	assert.True(t, brickerrors.IsTemplateError(result.Failures[0].Err))
	assert.Contains(t, result.HTML, `id="brick-error-overlay"`)
	assert.Contains(t, result.HTML, "Hello Ada", "other components still render")
}

func TestPageRenderer_OverlayDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Page.ErrorOverlay = false
	cfg.Components = append(cfg.Components, config.ComponentConfig{Tag: "broken", Template: "{{oops"})
	r := NewPageRenderer(cfg, logging.NewNop())

	result, err := r.Render(context.Background(), strings.NewReader(`<body><div is="broken"></div></body>`))
	require.NoError(t, err)
	assert.Len(t, result.Failures, 1)
	assert.NotContains(t, result.HTML, "brick-error-overlay")
}

func TestPageRenderer_LiveReload(t *testing.T) {
	r := NewPageRenderer(testConfig(t), logging.NewNop(), WithLiveReload("/ws"))

	result, err := r.Render(context.Background(), strings.NewReader(`<body></body>`))
	require.NoError(t, err)
	assert.Contains(t, result.HTML, `<script id="brick-live-reload">`)
	assert.Contains(t, result.HTML, `"/ws"`)
}

func TestPageRenderer_InvalidComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Components = append(cfg.Components, config.ComponentConfig{Tag: "greeting"})
	r := NewPageRenderer(cfg, logging.NewNop())

	_, err := r.Render(context.Background(), strings.NewReader(page))
	assert.Error(t, err)
}

func TestPageRenderer_Canceled(t *testing.T) {
	r := NewPageRenderer(testConfig(t), logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, strings.NewReader(page))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageRenderer_RenderPage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(input, []byte(page), 0o644))

	t.Run("to writer", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Page.Input = input

		var buf bytes.Buffer
		result, err := NewPageRenderer(cfg, logging.NewNop()).RenderPage(context.Background(), &buf)
		require.NoError(t, err)
		assert.Equal(t, result.HTML, buf.String())
	})

	t.Run("to file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Page.Input = input
		cfg.Page.Output = filepath.Join(dir, "dist", "index.html")

		var buf bytes.Buffer
		result, err := NewPageRenderer(cfg, logging.NewNop()).RenderPage(context.Background(), &buf)
		require.NoError(t, err)
		assert.Zero(t, buf.Len())

		written, err := os.ReadFile(cfg.Page.Output)
		require.NoError(t, err)
		assert.Equal(t, result.HTML, string(written))
	})

	t.Run("missing input", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Page.Input = filepath.Join(dir, "missing.html")

		_, err := NewPageRenderer(cfg, logging.NewNop()).RenderPage(context.Background(), &bytes.Buffer{})
		assert.True(t, brickerrors.HasType(err, brickerrors.ErrorTypeIO))
	})
}

func TestPageRenderer_RenderComponent(t *testing.T) {
	r := NewPageRenderer(testConfig(t), logging.NewNop())

	html, err := r.RenderComponent(context.Background(), "greeting", map[string]any{"name": "Grace"})
	require.NoError(t, err)
	assert.Equal(t, `<div is="greeting" brick-initialized="yes">Hello Grace</div>`, html)

	_, err = r.RenderComponent(context.Background(), "nope", nil)
	var be *brickerrors.BrickError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, brickerrors.ErrCodeComponentNotFound, be.Code)
}

func TestPageRenderer_SharedEngineCachesTemplates(t *testing.T) {
	engine := template.NewEngine()
	r := NewPageRenderer(testConfig(t), logging.NewNop(), WithEngine(engine))

	for i := 0; i < 3; i++ {
		_, err := r.Render(context.Background(), strings.NewReader(page))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, engine.Cached(), "one compiled template per distinct source")
}
