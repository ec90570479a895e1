package usecase

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"strings"

	"github.com/go-pdf/fpdf"

	"workblix/internal/domain"
)

// PxPerMM converts CSS pixels (96 dpi) to millimetres.
const PxPerMM = 3.7795

const (
	defaultScale    = 2.0
	defaultSelector = "#cv-root"
	watermarkBottom = 6.0
)

type PageFormat string

const (
	FormatA4     PageFormat = "a4"
	FormatLetter PageFormat = "letter"
)

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Rasterizer captures the node matched by selector as a PNG rendered at
// scale times its CSS size.
type Rasterizer interface {
	Rasterize(ctx context.Context, html, selector string, scale float64) ([]byte, error)
}

type ExportOptions struct {
	Filename    string
	Format      PageFormat
	Orientation Orientation
	Scale       float64
	Watermark   bool
	Plan        domain.Plan
	Selector    string
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.Format != FormatLetter {
		o.Format = FormatA4
	}
	if o.Orientation != Landscape {
		o.Orientation = Portrait
	}
	if o.Scale <= 0 {
		o.Scale = defaultScale
	}
	if o.Selector == "" {
		o.Selector = defaultSelector
	}
	return o
}

// NeedsWatermark stamps free users regardless of the flag. An unset or
// unknown plan is treated as free.
func NeedsWatermark(flag bool, plan domain.Plan) bool {
	return flag || !plan.Paying()
}

// PageSize returns the page width and height in millimetres.
func PageSize(f PageFormat, o Orientation) (w, h float64) {
	w, h = 210, 297
	if f == FormatLetter {
		w, h = 215.9, 279.4
	}
	if o == Landscape {
		w, h = h, w
	}
	return w, h
}

// FitImage scales an image uniformly to fit the page and centres it.
func FitImage(imgW, imgH, pageW, pageH float64) (x, y, w, h float64) {
	ratio := pageW / imgW
	if r := pageH / imgH; r < ratio {
		ratio = r
	}
	w, h = imgW*ratio, imgH*ratio
	return (pageW - w) / 2, (pageH - h) / 2, w, h
}

// Exporter turns a rendered HTML document into a single-page PDF holding one
// full-page image of the CV.
type Exporter struct {
	raster        Rasterizer
	watermarkText string
	compress      bool
}

func NewExporter(r Rasterizer, watermarkText string) *Exporter {
	return &Exporter{raster: r, watermarkText: watermarkText, compress: true}
}

// Export never returns a partial document: every failure is ErrRender.
func (e *Exporter) Export(ctx context.Context, html string, opts ExportOptions) ([]byte, error) {
	opts = opts.withDefaults()

	img, err := e.raster.Rasterize(ctx, html, opts.Selector, opts.Scale)
	if err != nil {
		return nil, fmt.Errorf("%w: rasterize: %v", domain.ErrRender, err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", domain.ErrRender, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrRender)
	}

	out, err := e.assemble(img, float64(cfg.Width), float64(cfg.Height), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		return nil, fmt.Errorf("%w: invalid PDF output (len=%d)", domain.ErrRender, len(out))
	}
	return out, nil
}

func (e *Exporter) assemble(img []byte, pxW, pxH float64, opts ExportOptions) ([]byte, error) {
	pageW, pageH := PageSize(opts.Format, opts.Orientation)
	orient := "P"
	if opts.Orientation == Landscape {
		orient = "L"
	}
	// fpdf takes the portrait size and swaps it for landscape itself
	baseW, baseH := PageSize(opts.Format, Portrait)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orient,
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: baseW, Ht: baseH},
	})
	pdf.SetCompression(e.compress)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if opts.Filename != "" {
		pdf.SetTitle(strings.TrimSuffix(opts.Filename, ".pdf"), true)
	}
	pdf.AddPage()

	// the capture was taken at scale x CSS pixels
	mmW := pxW / opts.Scale / PxPerMM
	mmH := pxH / opts.Scale / PxPerMM
	x, y, w, h := FitImage(mmW, mmH, pageW, pageH)

	imgOpts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("cv", imgOpts, bytes.NewReader(img))
	pdf.ImageOptions("cv", x, y, w, h, false, imgOpts, 0, "")

	if NeedsWatermark(opts.Watermark, opts.Plan) && e.watermarkText != "" {
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(140, 140, 140)
		pdf.SetXY(0, pageH-watermarkBottom-4)
		pdf.CellFormat(pageW, 4, e.watermarkText, "", 0, "C", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
