package cvtemplate

import (
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"workblix/internal/domain"
	"workblix/internal/model"
)

//go:embed catalog.yaml templates/*.html
var bundled embed.FS

const minimalFile = "minimal.html"

// maxTemplateSize caps a fetched template; larger documents count as a failed fetch.
const maxTemplateSize = 2 << 20

// Info is a catalog entry.
type Info struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	File        string `yaml:"file" json:"-"`
	Premium     bool   `yaml:"premium" json:"premium"`
	Description string `yaml:"description" json:"description"`
}

type catalogFile struct {
	Templates []Info `yaml:"templates"`
}

// ParseCatalog decodes a YAML template catalog.
func ParseCatalog(src []byte) ([]Info, error) {
	var c catalogFile
	if err := yaml.Unmarshal(src, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, t := range c.Templates {
		if t.ID == "" || t.File == "" {
			return nil, fmt.Errorf("parse catalog: entry %d needs id and file", i)
		}
	}
	return c.Templates, nil
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() []Info {
	src, err := bundled.ReadFile("catalog.yaml")
	if err != nil {
		panic(err)
	}
	infos, err := ParseCatalog(src)
	if err != nil {
		panic(err)
	}
	return infos
}

type StoreConfig struct {
	// PrimaryURL and FallbackURL are base URLs; the catalog file name is
	// appended to each. Either may be empty.
	PrimaryURL  string
	FallbackURL string
	HTTPClient  *http.Client
	Logger      zerolog.Logger
	// Catalog defaults to the embedded catalog.
	Catalog []Info
}

// Store resolves template ids to parsed templates.
type Store struct {
	cfg   StoreConfig
	byID  map[string]Info
	order []Info
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	s := &Store{cfg: cfg, byID: map[string]Info{}}
	for _, t := range cfg.Catalog {
		s.byID[t.ID] = t
		s.order = append(s.order, t)
	}
	return s
}

// Templates lists the catalog in declaration order.
func (s *Store) Templates() []Info {
	out := make([]Info, len(s.order))
	copy(out, s.order)
	return out
}

// Lookup returns the catalog entry for id.
func (s *Store) Lookup(id string) (Info, error) {
	t, ok := s.byID[id]
	if !ok {
		return Info{}, fmt.Errorf("template %q: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// Load resolves id through the primary URL, the fallback URL, the bundled
// copy and finally the minimal built-in template. Only an id missing from the
// catalog is an error.
func (s *Store) Load(ctx context.Context, id string) (*Template, error) {
	info, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}

	for _, base := range []string{s.cfg.PrimaryURL, s.cfg.FallbackURL} {
		if base == "" {
			continue
		}
		src, err := s.fetch(ctx, base, info.File)
		if err != nil {
			s.cfg.Logger.Warn().Err(err).Str("template", id).Str("base", base).Msg("template fetch failed")
			continue
		}
		t, err := Parse(id, src)
		if err != nil {
			s.cfg.Logger.Warn().Err(err).Str("template", id).Str("base", base).Msg("fetched template is malformed")
			continue
		}
		return t, nil
	}

	if src, err := bundled.ReadFile("templates/" + info.File); err == nil {
		if t, err := Parse(id, src); err == nil {
			return t, nil
		}
	}

	s.cfg.Logger.Warn().Str("template", id).Msg("using minimal built-in template")
	src, err := bundled.ReadFile("templates/" + minimalFile)
	if err != nil {
		return nil, fmt.Errorf("read minimal template: %w", err)
	}
	return Parse(id, src)
}

func (s *Store) fetch(ctx context.Context, base, file string) ([]byte, error) {
	url := strings.TrimRight(base, "/") + "/" + file
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s: status %d", domain.ErrExternalService, url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTemplateSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", domain.ErrExternalService, url, err)
	}
	if len(body) > maxTemplateSize {
		return nil, fmt.Errorf("%w: GET %s: template exceeds %d bytes", domain.ErrExternalService, url, maxTemplateSize)
	}
	return body, nil
}

// Populate loads a template and renders data into it.
func (s *Store) Populate(ctx context.Context, id string, data model.CVData, opts model.RenderOptions) (string, error) {
	t, err := s.Load(ctx, id)
	if err != nil {
		return "", err
	}
	return t.Render(data, opts)
}
