package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"workblix/internal/cvtemplate"
	"workblix/internal/domain"
	"workblix/internal/layout"
	"workblix/internal/model"
)

type ProfileRepo interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	IncrementUsage(ctx context.Context, userID uuid.UUID, monthStart time.Time) (domain.UsageRecord, error)
}

type TemplateSource interface {
	Load(ctx context.Context, id string) (*cvtemplate.Template, error)
}

// Processor drives CV generation: template population for the public
// endpoint, and profile export to HTML or PDF for signed-in users.
type Processor struct {
	templates TemplateSource
	exporter  *Exporter
	repo      ProfileRepo
	log       zerolog.Logger
	now       func() time.Time
}

func NewProcessor(t TemplateSource, e *Exporter, r ProfileRepo, log zerolog.Logger) *Processor {
	return &Processor{templates: t, exporter: e, repo: r, log: log, now: time.Now}
}

// Generate populates a catalog template with already-validated CV data.
func (p *Processor) Generate(ctx context.Context, templateID string, data model.CVData, opts model.RenderOptions) (string, error) {
	tpl, err := p.templates.Load(ctx, templateID)
	if err != nil {
		return "", err
	}
	return tpl.Render(data, opts)
}

type ExportFormat string

const (
	ExportPDF  ExportFormat = "pdf"
	ExportHTML ExportFormat = "html"
)

type ExportRequest struct {
	// TemplateID names a catalog template; Layout, when set, selects a
	// built-in layout variant instead.
	TemplateID   string
	Layout       string
	Format       ExportFormat
	Language     string
	IncludePhoto bool
	Watermark    bool
	PageFormat   PageFormat
	Orientation  Orientation
	Scale        float64
}

type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportProfile renders the user's profile and returns the downloadable file.
// Nothing is stored server-side apart from the monthly usage counter.
func (p *Processor) ExportProfile(ctx context.Context, userID uuid.UUID, req ExportRequest) (*ExportResult, error) {
	profile, err := p.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	data := model.ToCVData(profile)

	renderer, name, err := p.renderer(ctx, req)
	if err != nil {
		return nil, err
	}
	html, err := renderer.Render(data, model.RenderOptions{
		Language:     req.Language,
		IncludePhoto: req.IncludePhoto,
		Standalone:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}

	format := req.Format
	if format != ExportHTML {
		format = ExportPDF
	}
	res := &ExportResult{Filename: Filename(data.PersonalInfo.FirstName, data.PersonalInfo.LastName, name, string(format))}

	switch format {
	case ExportHTML:
		res.ContentType = "text/html; charset=utf-8"
		res.Body = []byte(html)
	default:
		pdf, err := p.exporter.Export(ctx, html, ExportOptions{
			Filename:    res.Filename,
			Format:      req.PageFormat,
			Orientation: req.Orientation,
			Scale:       req.Scale,
			Watermark:   req.Watermark,
			Plan:        profile.Plan,
			Selector:    captureSelector(html),
		})
		if err != nil {
			p.log.Error().Err(err).Str("user", userID.String()).Str("template", name).Msg("pdf export failed")
			return nil, err
		}
		res.ContentType = "application/pdf"
		res.Body = pdf
	}

	if _, err := p.repo.IncrementUsage(ctx, userID, domain.MonthStart(p.now())); err != nil {
		p.log.Warn().Err(err).Str("user", userID.String()).Msg("usage increment failed")
	}
	return res, nil
}

func (p *Processor) renderer(ctx context.Context, req ExportRequest) (model.DocumentRenderer, string, error) {
	if req.Layout != "" {
		v, err := layout.Get(req.Layout)
		if err != nil {
			return nil, "", err
		}
		return v, v.Name(), nil
	}
	id := req.TemplateID
	if id == "" {
		id = "classic"
	}
	tpl, err := p.templates.Load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return tpl, id, nil
}

// captureSelector targets the CV root when the document has one. Remote
// templates are not required to.
func captureSelector(html string) string {
	if strings.Contains(html, `id="cv-root"`) {
		return defaultSelector
	}
	return "body"
}

// Filename builds CV_<first>_<last>_<template>.<ext>.
func Filename(first, last, templateID, ext string) string {
	return fmt.Sprintf("CV_%s_%s_%s.%s", filenamePart(first), filenamePart(last), filenamePart(templateID), ext)
}

func filenamePart(s string) string {
	s = strings.Join(strings.Fields(s), "-")
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return -1
		}
		return r
	}, s)
}
