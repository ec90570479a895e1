package model

import (
	"strings"

	"workblix/internal/domain"
)

// Go models for the template-agnostic CV shape consumed by the populator and
// the layout variants. Field names match the cvdata.schema.json document.

type PersonalInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Title     string `json:"title"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Country   string `json:"country"`
	LinkedIn  string `json:"linkedin"`
	GitHub    string `json:"github"`
	Website   string `json:"website"`
	Summary   string `json:"summary"`
}

// FullName joins first and last name, skipping blanks.
func (p PersonalInfo) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// HasLinks reports whether any of linkedin, github or website is set.
func (p PersonalInfo) HasLinks() bool {
	return p.LinkedIn != "" || p.GitHub != "" || p.Website != ""
}

// Location joins address, city and country, skipping blanks.
func (p PersonalInfo) Location() string {
	var parts []string
	for _, part := range []string{p.Address, p.City, p.Country} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// HasContact reports whether email, phone or any location field is set.
func (p PersonalInfo) HasContact() bool {
	return strings.TrimSpace(p.Email) != "" || strings.TrimSpace(p.Phone) != "" || p.Location() != ""
}

type CVData struct {
	PersonalInfo PersonalInfo         `json:"personalInfo"`
	Experience   []domain.Experience `json:"experience"`
	Education    []domain.Education  `json:"education"`
	Skills       []domain.Skill      `json:"skills"`
	Languages    []domain.Language   `json:"languages"`
}

// ToCVData projects a profile into CVData. It never fails: a nil profile
// yields an empty CVData, and lists are always non-nil.
func ToCVData(p *domain.Profile) CVData {
	out := CVData{
		Experience: []domain.Experience{},
		Education:  []domain.Education{},
		Skills:     []domain.Skill{},
		Languages:  []domain.Language{},
	}
	if p == nil {
		return out
	}

	out.PersonalInfo = PersonalInfo{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Title:     strings.TrimSpace(p.Title),
		Email:     strings.TrimSpace(p.Email),
		Phone:     strings.TrimSpace(p.Phone),
		Address:   strings.TrimSpace(p.Address),
		City:      strings.TrimSpace(p.City),
		Country:   strings.TrimSpace(p.Country),
		LinkedIn:  strings.TrimSpace(p.LinkedIn),
		GitHub:    strings.TrimSpace(p.GitHub),
		Website:   strings.TrimSpace(p.Website),
		Summary:   strings.TrimSpace(p.Summary),
	}

	for _, e := range p.Experience {
		out.Experience = append(out.Experience, domain.Experience{
			Company:     strings.TrimSpace(e.Company),
			Position:    strings.TrimSpace(e.Position),
			StartDate:   strings.TrimSpace(e.StartDate),
			EndDate:     strings.TrimSpace(e.EndDate),
			Current:     e.Current,
			Description: e.Description,
		})
	}
	for _, e := range p.Education {
		out.Education = append(out.Education, domain.Education{
			Institution: strings.TrimSpace(e.Institution),
			Degree:      strings.TrimSpace(e.Degree),
			Field:       strings.TrimSpace(e.Field),
			StartDate:   strings.TrimSpace(e.StartDate),
			EndDate:     strings.TrimSpace(e.EndDate),
			Ongoing:     e.Ongoing,
			Description: e.Description,
		})
	}
	for _, s := range p.Skills {
		if name := strings.TrimSpace(s.Name); name != "" {
			out.Skills = append(out.Skills, domain.Skill{Name: name, Level: strings.TrimSpace(s.Level)})
		}
	}
	for _, l := range p.Languages {
		if name := strings.TrimSpace(l.Name); name != "" {
			out.Languages = append(out.Languages, domain.Language{Name: name, Level: strings.TrimSpace(l.Level), Native: l.Native})
		}
	}
	return out
}

// Normalize fills nil lists so callers that decoded CVData from JSON can
// treat it the same as a mapped profile.
func (d CVData) Normalize() CVData {
	if d.Experience == nil {
		d.Experience = []domain.Experience{}
	}
	if d.Education == nil {
		d.Education = []domain.Education{}
	}
	if d.Skills == nil {
		d.Skills = []domain.Skill{}
	}
	if d.Languages == nil {
		d.Languages = []domain.Language{}
	}
	return d
}

// RenderOptions carries the rendering context shared by template population
// and layout rendering.
type RenderOptions struct {
	Language     string
	IncludePhoto bool
	// Standalone wraps fragments into a complete HTML document.
	Standalone bool
}

// DocumentRenderer is implemented by populated templates and layout variants.
type DocumentRenderer interface {
	Render(data CVData, opts RenderOptions) (string, error)
}
