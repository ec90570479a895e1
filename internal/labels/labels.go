// Package labels holds the localized section headings used by templates and
// layouts.
package labels

import (
	"golang.org/x/text/language"
)

type Set struct {
	Profile    string
	Experience string
	Education  string
	Skills     string
	Languages  string
	Contact    string
	Links      string
	Present    string
	Native     string
	Photo      string
}

var english = Set{
	Profile:    "Profile",
	Experience: "Work Experience",
	Education:  "Education",
	Skills:     "Skills",
	Languages:  "Languages",
	Contact:    "Contact",
	Links:      "Links",
	Present:    "present",
	Native:     "native",
	Photo:      "Photo",
}

var german = Set{
	Profile:    "Profil",
	Experience: "Berufserfahrung",
	Education:  "Ausbildung",
	Skills:     "Kenntnisse",
	Languages:  "Sprachen",
	Contact:    "Kontakt",
	Links:      "Links",
	Present:    "Heute",
	Native:     "Muttersprache",
	Photo:      "Foto",
}

var supported = []language.Tag{language.English, language.German}

var matcher = language.NewMatcher(supported)

// For returns the label set for a language code; unknown codes get English.
func For(lang string) Set {
	if Match(lang) == "de" {
		return german
	}
	return english
}

// Match resolves an Accept-Language header or a plain code to a supported
// base language ("en" or "de").
func Match(accept string) string {
	if accept == "" {
		return "en"
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return "en"
	}
	_, idx, _ := matcher.Match(tags...)
	base, _ := supported[idx].Base()
	return base.String()
}
