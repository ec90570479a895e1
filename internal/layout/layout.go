// Package layout renders CV data through the built-in layout variants. Unlike
// cvtemplate, layouts are Go html/templates shipped with the binary and take
// the normalized CV data directly.
package layout

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"workblix/internal/domain"
	"workblix/internal/labels"
	"workblix/internal/model"
)

//go:embed variants/*.html
var variantFS embed.FS

var variantNames = []string{"classic", "modern", "creative", "minimal"}

var variants = func() map[string]*Variant {
	out := map[string]*Variant{}
	for _, name := range variantNames {
		tpl := template.Must(template.ParseFS(variantFS, "variants/base.html", "variants/"+name+".html"))
		out[name] = &Variant{name: name, tpl: tpl}
	}
	return out
}()

// Variant is one visual CV design.
type Variant struct {
	name string
	tpl  *template.Template
}

func (v *Variant) Name() string { return v.name }

// Render produces a complete HTML document whose printable area is #cv-root.
func (v *Variant) Render(data model.CVData, opts model.RenderOptions) (string, error) {
	var buf bytes.Buffer
	if err := v.tpl.ExecuteTemplate(&buf, "document", BuildView(data, opts)); err != nil {
		return "", fmt.Errorf("layout %s: %w", v.name, err)
	}
	return buf.String(), nil
}

// Get returns the named variant.
func Get(name string) (*Variant, error) {
	v, ok := variants[name]
	if !ok {
		return nil, fmt.Errorf("layout %q: %w", name, domain.ErrNotFound)
	}
	return v, nil
}

// Names lists the available variants in a stable order.
func Names() []string {
	out := append([]string(nil), variantNames...)
	sort.Strings(out)
	return out
}

type Link struct {
	Kind  string
	URL   string
	Label string
}

// View is the data every variant template executes against.
type View struct {
	Lang       string
	Labels     labels.Set
	Name       string
	Title      string
	Email      string
	Phone      string
	Location   string
	Summary    string
	Photo      bool
	Links      []Link
	Experience []model.EntryView
	Education  []model.EntryView
	Skills     []model.ItemView
	Languages  []model.ItemView
}

// BuildView applies the shared inclusion rules: empty lists stay empty so the
// templates skip their sections, and the title falls back to the latest
// position.
func BuildView(d model.CVData, opts model.RenderOptions) View {
	d = d.Normalize()
	l := labels.For(opts.Language)
	p := d.PersonalInfo

	v := View{
		Lang:       labels.Match(opts.Language),
		Labels:     l,
		Name:       p.FullName(),
		Title:      model.ProfessionalTitle(d),
		Email:      p.Email,
		Phone:      p.Phone,
		Location:   p.Location(),
		Summary:    strings.TrimSpace(p.Summary),
		Photo:      opts.IncludePhoto,
		Experience: model.ExperienceViews(d, l.Present),
		Education:  model.EducationViews(d, l.Present),
		Skills:     model.SkillViews(d),
		Languages:  model.LanguageViews(d, l.Native),
	}
	for _, link := range []struct{ kind, raw string }{
		{"linkedin", p.LinkedIn}, {"github", p.GitHub}, {"website", p.Website},
	} {
		if strings.TrimSpace(link.raw) == "" {
			continue
		}
		href, label := URLLabel(link.raw)
		v.Links = append(v.Links, Link{Kind: link.kind, URL: href, Label: label})
	}
	return v
}

// URLLabel normalizes a user-entered link and derives a short display label:
// the registrable domain plus path for profile sites, e.g.
// "linkedin.com/in/anna".
func URLLabel(raw string) (href, label string) {
	candidate := strings.TrimSpace(raw)
	if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
		candidate = "https://" + candidate
	}
	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Hostname() == "" {
		return candidate, strings.TrimSpace(raw)
	}

	host := parsed.Hostname()
	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		label = strings.TrimPrefix(etld, "www.")
	} else {
		label = strings.TrimPrefix(host, "www.")
	}
	if path := strings.TrimRight(parsed.EscapedPath(), "/"); path != "" {
		label += path
	}
	return candidate, label
}
