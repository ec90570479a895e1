package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workblix/internal/domain"
)

const testWatermark = "Created with Workblix"

type stubRasterizer struct {
	img      []byte
	err      error
	selector string
	scale    float64
	calls    int
}

func (s *stubRasterizer) Rasterize(_ context.Context, _, selector string, scale float64) ([]byte, error) {
	s.calls++
	s.selector, s.scale = selector, scale
	return s.img, s.err
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.White)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestExporter(r Rasterizer) *Exporter {
	e := NewExporter(r, testWatermark)
	// uncompressed output keeps the page text searchable
	e.compress = false
	return e
}

func TestNeedsWatermark(t *testing.T) {
	assert.True(t, NeedsWatermark(false, domain.PlanFree))
	assert.True(t, NeedsWatermark(false, ""))
	assert.True(t, NeedsWatermark(true, domain.PlanPro))
	assert.False(t, NeedsWatermark(false, domain.PlanPro))
	assert.False(t, NeedsWatermark(false, domain.PlanPremium))
}

func TestPageSize(t *testing.T) {
	w, h := PageSize(FormatA4, Portrait)
	assert.Equal(t, []float64{210, 297}, []float64{w, h})
	w, h = PageSize(FormatLetter, Landscape)
	assert.Equal(t, []float64{279.4, 215.9}, []float64{w, h})
}

func TestFitImage(t *testing.T) {
	// a tall image is limited by the page height and centred horizontally
	x, y, w, h := FitImage(100, 594, 210, 297)
	assert.InDelta(t, 50, w, 1e-9)
	assert.InDelta(t, 297, h, 1e-9)
	assert.InDelta(t, 80, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)

	// a wide image is limited by the page width
	x, y, w, h = FitImage(420, 100, 210, 297)
	assert.InDelta(t, 210, w, 1e-9)
	assert.InDelta(t, 50, h, 1e-9)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 123.5, y, 1e-9)
}

func TestExport_FreePlanGetsWatermark(t *testing.T) {
	r := &stubRasterizer{img: testPNG(t, 40, 56)}
	out, err := newTestExporter(r).Export(context.Background(), "<html></html>", ExportOptions{Plan: domain.PlanFree})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Contains(t, string(out), testWatermark)
	assert.Equal(t, "#cv-root", r.selector)
	assert.Equal(t, 2.0, r.scale)
}

func TestExport_ProPlanWithoutFlagHasNoWatermark(t *testing.T) {
	r := &stubRasterizer{img: testPNG(t, 40, 56)}
	out, err := newTestExporter(r).Export(context.Background(), "<html></html>", ExportOptions{Plan: domain.PlanPro})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.NotContains(t, string(out), testWatermark)
}

func TestExport_ProPlanWithFlagGetsWatermark(t *testing.T) {
	r := &stubRasterizer{img: testPNG(t, 40, 56)}
	out, err := newTestExporter(r).Export(context.Background(), "<html></html>", ExportOptions{
		Plan: domain.PlanPro, Watermark: true, Format: FormatLetter, Orientation: Landscape, Scale: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), testWatermark)
	assert.Equal(t, 1.0, r.scale)
}

func TestExport_FailuresAreRenderErrors(t *testing.T) {
	_, err := newTestExporter(&stubRasterizer{err: errors.New("chrome crashed")}).
		Export(context.Background(), "<html></html>", ExportOptions{})
	assert.ErrorIs(t, err, domain.ErrRender)

	_, err = newTestExporter(&stubRasterizer{img: []byte("not an image")}).
		Export(context.Background(), "<html></html>", ExportOptions{})
	assert.ErrorIs(t, err, domain.ErrRender)
}
