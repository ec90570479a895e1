package cvtemplate

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	"html/template"
	"strings"

	"workblix/internal/labels"
	"workblix/internal/model"
)

//go:embed fragments.html
var fragmentsSrc string

var fragments = template.Must(template.New("fragments").Parse(fragmentsSrc))

// Render substitutes data into the template. It is a pure transform: the same
// template, data and options always produce the same bytes.
func (t *Template) Render(data model.CVData, opts model.RenderOptions) (string, error) {
	rc := newRenderContext(data.Normalize(), opts)

	var b strings.Builder
	if err := rc.renderNodes(&b, t.root); err != nil {
		return "", fmt.Errorf("render template %s: %w", t.ID, err)
	}
	out := b.String()
	if opts.Standalone && !strings.Contains(strings.ToLower(out), "<html") {
		return wrapDocument(out, rc.data.PersonalInfo.FullName(), labels.Match(opts.Language))
	}
	return out, nil
}

type renderContext struct {
	data   model.CVData
	opts   model.RenderOptions
	labels labels.Set
	// generated list fragments, built once per render
	lists map[string]string
}

func newRenderContext(data model.CVData, opts model.RenderOptions) *renderContext {
	return &renderContext{
		data:   data,
		opts:   opts,
		labels: labels.For(opts.Language),
		lists:  map[string]string{},
	}
}

func (rc *renderContext) renderNodes(b *strings.Builder, nodes []node) error {
	for _, n := range nodes {
		switch n.kind {
		case textNode:
			b.WriteString(n.text)
		case placeholderNode:
			v, err := rc.placeholder(n.name)
			if err != nil {
				return err
			}
			b.WriteString(v)
		case sectionNode:
			if !rc.present(n.name) {
				continue
			}
			b.WriteString(sectionOpen + n.name + " " + commentEnd)
			if err := rc.renderNodes(b, n.children); err != nil {
				return err
			}
			b.WriteString(sectionClose + n.name + " " + commentEnd)
		}
	}
	return nil
}

// scalar returns the raw value of a scalar placeholder.
func (rc *renderContext) scalar(name string) (string, bool) {
	p := rc.data.PersonalInfo
	switch name {
	case "firstName":
		return p.FirstName, true
	case "lastName":
		return p.LastName, true
	case "fullName":
		return p.FullName(), true
	case "title":
		return model.ProfessionalTitle(rc.data), true
	case "email":
		return p.Email, true
	case "phone":
		return p.Phone, true
	case "address":
		return p.Address, true
	case "city":
		return p.City, true
	case "country":
		return p.Country, true
	case "location":
		return p.Location(), true
	case "linkedin":
		return p.LinkedIn, true
	case "github":
		return p.GitHub, true
	case "website":
		return p.Website, true
	case "summary":
		return p.Summary, true
	}
	return "", false
}

func (rc *renderContext) placeholder(name string) (string, error) {
	if v, ok := rc.scalar(name); ok {
		return html.EscapeString(v), nil
	}
	switch name {
	case "experience", "education", "skills", "languages":
		return rc.list(name)
	}
	if strings.HasPrefix(name, "label_") {
		if v, ok := rc.label(strings.TrimPrefix(name, "label_")); ok {
			return html.EscapeString(v), nil
		}
	}
	// unknown placeholders stay in the output untouched
	return placeholderOpen + name + placeholderClose, nil
}

func (rc *renderContext) label(key string) (string, bool) {
	l := rc.labels
	switch key {
	case "profile":
		return l.Profile, true
	case "experience":
		return l.Experience, true
	case "education":
		return l.Education, true
	case "skills":
		return l.Skills, true
	case "languages":
		return l.Languages, true
	case "contact":
		return l.Contact, true
	case "links":
		return l.Links, true
	}
	return "", false
}

func (rc *renderContext) list(name string) (string, error) {
	if v, ok := rc.lists[name]; ok {
		return v, nil
	}

	var (
		tpl  string
		view interface{}
	)
	switch name {
	case "experience":
		tpl, view = "entries", model.ExperienceViews(rc.data, rc.labels.Present)
	case "education":
		tpl, view = "entries", model.EducationViews(rc.data, rc.labels.Present)
	case "skills":
		tpl, view = "items", model.SkillViews(rc.data)
	case "languages":
		tpl, view = "items", model.LanguageViews(rc.data, rc.labels.Native)
	}

	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, tpl, view); err != nil {
		return "", err
	}
	rc.lists[name] = buf.String()
	return rc.lists[name], nil
}

// present decides whether a section is rendered.
func (rc *renderContext) present(name string) bool {
	d := rc.data
	switch name {
	case "experience":
		return len(d.Experience) > 0
	case "education":
		return len(d.Education) > 0
	case "skills":
		return len(d.Skills) > 0
	case "languages":
		return len(d.Languages) > 0
	case "links":
		return d.PersonalInfo.HasLinks()
	case "contact":
		return d.PersonalInfo.HasContact()
	case "photo":
		return rc.opts.IncludePhoto
	}
	if v, ok := rc.scalar(name); ok {
		return strings.TrimSpace(v) != ""
	}
	return true
}

func wrapDocument(body, title, lang string) (string, error) {
	var buf bytes.Buffer
	err := fragments.ExecuteTemplate(&buf, "document", struct {
		Lang  string
		Title string
		Body  template.HTML
	}{Lang: lang, Title: title, Body: template.HTML(body)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
