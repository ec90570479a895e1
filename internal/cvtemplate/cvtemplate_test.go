package cvtemplate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workblix/internal/domain"
	"workblix/internal/model"
)

func annaMuster() model.CVData {
	return model.ToCVData(&domain.Profile{
		FirstName: "Anna",
		LastName:  "Muster",
		Email:     "anna@example.com",
		Experience: []domain.Experience{
			{Company: "Acme", Position: "Engineer", StartDate: "2021-01", Current: true},
		},
		Education: []domain.Education{},
	})
}

func newTestStore(primary, fallback string, catalog []Info) *Store {
	return NewStore(StoreConfig{
		PrimaryURL:  primary,
		FallbackURL: fallback,
		Logger:      zerolog.Nop(),
		Catalog:     catalog,
	})
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unclosed section":  "<!-- section:a -->x",
		"never opened":      "x<!-- /section:a -->",
		"mismatched close":  "<!-- section:a --><!-- /section:b -->",
		"open placeholder":  "<p>{{firstName</p>",
		"bad section name":  "<!-- section:a b -->x<!-- /section:a b -->",
		"unterminated mark": "<!-- section:a",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("t", []byte(src))
			require.Error(t, err)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
			assert.Equal(t, "t", perr.TemplateID)
		})
	}
}

func TestPlaceholders(t *testing.T) {
	tpl, err := Parse("t", []byte("{{firstName}} <!-- section:x -->{{email}} {{firstName}}<!-- /section:x -->"))
	require.NoError(t, err)
	assert.Equal(t, []string{"firstName", "email"}, tpl.Placeholders())
}

func TestPopulate_AnnaMuster(t *testing.T) {
	s := newTestStore("", "", nil)

	for lang, present := range map[string]string{"de": "Heute", "en": "present"} {
		out, err := s.Populate(context.Background(), "classic", annaMuster(), model.RenderOptions{Language: lang})
		require.NoError(t, err)

		assert.Contains(t, out, "Anna Muster")
		assert.Contains(t, out, "01/2021 - "+present)

		sum, err := Inspect(strings.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Count("experience"))
		assert.Equal(t, 0, sum.Count("education"))
		assert.True(t, sum.HasSection("experience"))
		assert.False(t, sum.HasSection("education"))
	}
}

func TestPopulate_ContactSection(t *testing.T) {
	s := newTestStore("", "", nil)
	ctx := context.Background()

	for _, info := range DefaultCatalog() {
		bare := model.CVData{PersonalInfo: model.PersonalInfo{FirstName: "Anna", LastName: "Muster"}}
		out, err := s.Populate(ctx, info.ID, bare, model.RenderOptions{})
		require.NoError(t, err)
		assert.NotContains(t, out, ">Contact</h2>", info.ID)
		assert.NotContains(t, out, `class="cv-contact"`, info.ID)
		assert.NotContains(t, out, "<br>", info.ID)
		assert.NotContains(t, out, "<span></span>", info.ID)

		phoneOnly := bare
		phoneOnly.PersonalInfo.Phone = "+49 30 1234"
		out, err = s.Populate(ctx, info.ID, phoneOnly, model.RenderOptions{})
		require.NoError(t, err)
		assert.Contains(t, out, "+49 30 1234", info.ID)
		assert.NotContains(t, out, "<span></span>", info.ID)
		assert.NotContains(t, out, "<br><br>", info.ID)

		sum, err := Inspect(strings.NewReader(out))
		require.NoError(t, err)
		assert.True(t, sum.HasSection("contact"), info.ID)
		assert.True(t, sum.HasSection("phone"), info.ID)
		assert.False(t, sum.HasSection("email"), info.ID)
		assert.False(t, sum.HasSection("location"), info.ID)
	}
}

func TestRender_EscapesUserText(t *testing.T) {
	tpl, err := Parse("t", []byte("<h1>{{fullName}}</h1>{{experience}}"))
	require.NoError(t, err)

	data := model.CVData{
		PersonalInfo: model.PersonalInfo{FirstName: "<script>alert(1)</script>"},
		Experience:   []domain.Experience{{Company: "A&B", Position: "<b>Boss</b>", StartDate: "2020-01"}},
	}
	out, err := tpl.Render(data, model.RenderOptions{})
	require.NoError(t, err)

	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<b>Boss</b>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "A&amp;B")
}

func TestRender_OmitsEmptySections(t *testing.T) {
	src := "<main><!-- section:skills --><h2>Skills</h2><ul>{{skills}}</ul><!-- /section:skills -->" +
		"<!-- section:links --><p>{{github}}</p><!-- /section:links -->" +
		"<!-- section:summary --><p>{{summary}}</p><!-- /section:summary -->" +
		"<!-- section:photo --><img><!-- /section:photo --></main>"
	tpl, err := Parse("t", []byte(src))
	require.NoError(t, err)

	out, err := tpl.Render(model.CVData{PersonalInfo: model.PersonalInfo{Summary: "   "}}, model.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "<main></main>", out)

	out, err = tpl.Render(model.CVData{
		PersonalInfo: model.PersonalInfo{GitHub: "github.com/anna"},
		Skills:       []domain.Skill{{Name: "Go"}},
	}, model.RenderOptions{IncludePhoto: true})
	require.NoError(t, err)
	assert.Contains(t, out, "<h2>Skills</h2>")
	assert.Contains(t, out, "github.com/anna")
	assert.Contains(t, out, "<img>")
	assert.NotContains(t, out, "section:summary")
}

func TestRender_LastSectionIsPopulated(t *testing.T) {
	tpl, err := Parse("t", []byte("<h1>{{fullName}}</h1><!-- section:languages --><ul>{{languages}}</ul><!-- /section:languages -->"))
	require.NoError(t, err)

	out, err := tpl.Render(model.CVData{Languages: []domain.Language{{Name: "Deutsch", Native: true}}}, model.RenderOptions{Language: "de"})
	require.NoError(t, err)
	assert.Contains(t, out, "Deutsch")
	assert.Contains(t, out, "Muttersprache")
}

func TestRender_RoundTripKeepsDescendingOrder(t *testing.T) {
	s := newTestStore("", "", nil)
	data := model.CVData{
		PersonalInfo: model.PersonalInfo{FirstName: "Anna"},
		Experience: []domain.Experience{
			{Company: "Old", Position: "Intern", StartDate: "2018-01", EndDate: "2019-01"},
			{Company: "New", Position: "Lead", StartDate: "2022-05", Current: true},
			{Company: "Mid", Position: "Dev", StartDate: "2020-03", EndDate: "2022-04"},
		},
		Education: []domain.Education{
			{Institution: "TU", Degree: "MSc", StartDate: "2016-10", EndDate: "2018-09"},
			{Institution: "Uni", Degree: "BSc", StartDate: "2013-10", EndDate: "2016-09"},
		},
	}

	for _, id := range []string{"classic", "modern", "executive"} {
		out, err := s.Populate(context.Background(), id, data, model.RenderOptions{})
		require.NoError(t, err)

		sum, err := Inspect(strings.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, []string{"2022-05", "2020-03", "2018-01"}, sum.Entries["experience"], id)
		assert.Equal(t, []string{"2016-10", "2013-10"}, sum.Entries["education"], id)
	}
}

func TestRender_Deterministic(t *testing.T) {
	tpl, err := Parse("t", []byte("{{fullName}}{{experience}}{{skills}}"))
	require.NoError(t, err)
	data := annaMuster()
	data.Skills = []domain.Skill{{Name: "Go", Level: "expert"}, {Name: "SQL"}}

	a, err := tpl.Render(data, model.RenderOptions{})
	require.NoError(t, err)
	b, err := tpl.Render(data, model.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_UnknownPlaceholderPreserved(t *testing.T) {
	tpl, err := Parse("t", []byte("<p>{{favouriteColour}} {{ not a name }}</p>"))
	require.NoError(t, err)

	out, err := tpl.Render(model.CVData{}, model.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "<p>{{favouriteColour}} {{ not a name }}</p>", out)
}

func TestRender_Standalone(t *testing.T) {
	tpl, err := Parse("t", []byte("<p>{{fullName}}</p>"))
	require.NoError(t, err)

	out, err := tpl.Render(annaMuster(), model.RenderOptions{Language: "de", Standalone: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `lang="de"`)
	assert.Contains(t, out, "<p>Anna Muster</p>")
}

func TestStore_UnknownTemplate(t *testing.T) {
	s := newTestStore("", "", nil)
	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Templates(t *testing.T) {
	s := newTestStore("", "", nil)
	infos := s.Templates()
	require.Len(t, infos, 3)
	assert.Equal(t, "classic", infos[0].ID)
	assert.True(t, infos[2].Premium)
}

func TestStore_FallbackChain(t *testing.T) {
	catalog := []Info{{ID: "remote", File: "remote.html"}}

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/remote.html", r.URL.Path)
		_, _ = w.Write([]byte("<p>primary {{firstName}}</p>"))
	}))
	defer primary.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<!-- section:experience --> never closed"))
	}))
	defer malformed.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>fallback {{firstName}}</p>"))
	}))
	defer fallback.Close()

	ctx := context.Background()
	data := annaMuster()

	out, err := newTestStore(primary.URL, fallback.URL, catalog).Populate(ctx, "remote", data, model.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "<p>primary Anna</p>", out)

	out, err = newTestStore(broken.URL, fallback.URL, catalog).Populate(ctx, "remote", data, model.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "<p>fallback Anna</p>", out)

	out, err = newTestStore(malformed.URL, fallback.URL, catalog).Populate(ctx, "remote", data, model.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "<p>fallback Anna</p>", out)

	// nothing remote and no bundled copy: minimal built-in template
	out, err = newTestStore(broken.URL, broken.URL, catalog).Populate(ctx, "remote", data, model.RenderOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Anna Muster</title>")
	assert.Contains(t, out, `id="cv-root"`)
}

func TestStore_BundledCopyWhenRemoteFails(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer broken.Close()

	tpl, err := newTestStore(broken.URL, "", nil).Load(context.Background(), "modern")
	require.NoError(t, err)
	assert.Contains(t, tpl.Placeholders(), "label_contact")
}

func TestStore_OversizedTemplateFallsBack(t *testing.T) {
	catalog := []Info{{ID: "remote", File: "remote.html"}}

	huge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>primary {{firstName}}</p>" + strings.Repeat("x", maxTemplateSize)))
	}))
	defer huge.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>fallback {{firstName}}</p>"))
	}))
	defer fallback.Close()

	s := newTestStore(huge.URL, fallback.URL, catalog)
	_, err := s.fetch(context.Background(), huge.URL, "remote.html")
	assert.ErrorIs(t, err, domain.ErrExternalService)

	out, err := s.Populate(context.Background(), "remote", annaMuster(), model.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "<p>fallback Anna</p>", out)
}

func TestParseCatalog(t *testing.T) {
	infos, err := ParseCatalog([]byte("templates:\n  - id: a\n    file: a.html\n"))
	require.NoError(t, err)
	assert.Equal(t, []Info{{ID: "a", File: "a.html"}}, infos)

	_, err = ParseCatalog([]byte("templates:\n  - id: a\n"))
	assert.Error(t, err)
}
