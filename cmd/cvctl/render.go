package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"workblix/internal/cvtemplate"
	"workblix/internal/domain"
	"workblix/internal/layout"
	"workblix/internal/model"
	"workblix/internal/usecase"
	infra "workblix/pkg/infrastructure"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	templateID   string
	layoutName   string
	lang         string
	outPath      string
	primaryURL   string
	fallbackURL  string
	includePhoto bool
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	pageFormat  string
	orientation string
	scale       float64
	watermark   bool
	plan        string
	chromePath  string
)

//nolint:gochecknoglobals // Cobra boilerplate
var renderCmd = &cobra.Command{
	Use:   "render <cvdata.json>",
	Short: "Populate a template or layout with CV data and write HTML",
	Long: `Render validates a cvData JSON document and writes the populated HTML.

Example:
  cvctl render anna.json --template modern --lang de --out anna.html
  cvctl render anna.json --layout creative`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

//nolint:gochecknoglobals // Cobra boilerplate
var pdfCmd = &cobra.Command{
	Use:   "pdf <cvdata.json>",
	Short: "Render CV data to PDF through a local Chrome",
	Args:  cobra.ExactArgs(1),
	RunE:  runPDF,
}

//nolint:gochecknoglobals // Cobra boilerplate
var inspectCmd = &cobra.Command{
	Use:   "inspect <file.html>",
	Short: "List the sections and entries of a rendered CV",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

//nolint:gochecknoglobals // Cobra boilerplate
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List catalog templates and built-in layouts",
	Args:  cobra.NoArgs,
	RunE:  runTemplates,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	for _, c := range []*cobra.Command{renderCmd, pdfCmd} {
		c.Flags().StringVarP(&templateID, "template", "t", "classic", "Catalog template id")
		c.Flags().StringVar(&layoutName, "layout", "", "Built-in layout variant (overrides --template)")
		c.Flags().StringVar(&lang, "lang", "en", "Label language (en or de)")
		c.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout for HTML, derived name for PDF)")
		c.Flags().StringVar(&primaryURL, "primary-url", os.Getenv("TEMPLATE_PRIMARY_URL"), "Primary template base URL")
		c.Flags().StringVar(&fallbackURL, "fallback-url", os.Getenv("TEMPLATE_FALLBACK_URL"), "Fallback template base URL")
		c.Flags().BoolVar(&includePhoto, "photo", false, "Render the photo section")
	}
	pdfCmd.Flags().StringVar(&pageFormat, "format", "a4", "Page format (a4 or letter)")
	pdfCmd.Flags().StringVar(&orientation, "orientation", "portrait", "Page orientation (portrait or landscape)")
	pdfCmd.Flags().Float64Var(&scale, "scale", 2, "Rasterization scale")
	pdfCmd.Flags().BoolVar(&watermark, "watermark", false, "Force the watermark")
	pdfCmd.Flags().StringVar(&plan, "plan", "free", "Plan used for the watermark decision")
	pdfCmd.Flags().StringVar(&chromePath, "chrome", os.Getenv("CHROME_PATH"), "Chrome executable")

	rootCmd.AddCommand(renderCmd, pdfCmd, inspectCmd, templatesCmd)
}

func newStore() *cvtemplate.Store {
	return cvtemplate.NewStore(cvtemplate.StoreConfig{
		PrimaryURL:  primaryURL,
		FallbackURL: fallbackURL,
		Logger:      logger(),
	})
}

// readCVData loads and validates a cvData document, either bare or wrapped
// in a generate request ({"templateId", "cvData"}).
func readCVData(path string) (model.CVData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.CVData{}, fmt.Errorf("read %s: %w", path, err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.CVData{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if inner, ok := m["cvData"].(map[string]interface{}); ok {
		m = inner
	}
	if err := model.ValidateMap(m); err != nil {
		return model.CVData{}, err
	}
	raw, err = json.Marshal(m)
	if err != nil {
		return model.CVData{}, err
	}
	var d model.CVData
	if err := json.Unmarshal(raw, &d); err != nil {
		return model.CVData{}, err
	}
	return d.Normalize(), nil
}

func renderHTML(ctx context.Context, data model.CVData, standalone bool) (string, string, error) {
	opts := model.RenderOptions{Language: lang, IncludePhoto: includePhoto, Standalone: standalone}
	if layoutName != "" {
		v, err := layout.Get(layoutName)
		if err != nil {
			return "", "", err
		}
		html, err := v.Render(data, opts)
		return html, v.Name(), err
	}
	html, err := newStore().Populate(ctx, templateID, data, opts)
	return html, templateID, err
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	data, err := readCVData(args[0])
	if err != nil {
		return err
	}
	html, _, err := renderHTML(ctx, data, true)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), outPath, []byte(html))
}

func runPDF(cmd *cobra.Command, args []string) error {
	data, err := readCVData(args[0])
	if err != nil {
		return err
	}

	cfg := &infra.Config{ChromePath: chromePath, RenderSettle: 500 * time.Millisecond, RenderTimeout: 60 * time.Second}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RenderTimeout+10*time.Second)
	defer cancel()

	html, name, err := renderHTML(ctx, data, true)
	if err != nil {
		return err
	}
	selector := "body"
	if strings.Contains(html, `id="cv-root"`) {
		selector = "#cv-root"
	}

	exporter := usecase.NewExporter(infra.NewChromedpRasterizer(cfg), "Created with Workblix")
	pdf, err := exporter.Export(ctx, html, usecase.ExportOptions{
		Format:      usecase.PageFormat(pageFormat),
		Orientation: usecase.Orientation(orientation),
		Scale:       scale,
		Watermark:   watermark,
		Plan:        domain.Plan(plan),
		Selector:    selector,
	})
	if err != nil {
		return err
	}

	out := outPath
	if out == "" {
		out = usecase.Filename(data.PersonalInfo.FirstName, data.PersonalInfo.LastName, name, "pdf")
	}
	if err := os.WriteFile(out, pdf, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(pdf))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := cvtemplate.Inspect(f)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "sections: %s\n", strings.Join(s.Sections, ", "))
	for _, kind := range []string{"experience", "education", "skill", "language"} {
		if n := s.Count(kind); n > 0 {
			fmt.Fprintf(w, "%s: %d\n", kind, n)
		}
	}
	return nil
}

func runTemplates(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	for _, t := range cvtemplate.DefaultCatalog() {
		tier := ""
		if t.Premium {
			tier = " (premium)"
		}
		fmt.Fprintf(w, "template  %-10s %s%s\n", t.ID, t.Name, tier)
	}
	for _, name := range layout.Names() {
		fmt.Fprintf(w, "layout    %s\n", name)
	}
	return nil
}

func writeOutput(stdout io.Writer, path string, b []byte) error {
	if path == "" {
		_, err := stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
