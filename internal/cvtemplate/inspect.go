package cvtemplate

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Summary describes the structure of a populated document: the sections that
// survived population and the start dates of generated entries per kind, in
// document order.
type Summary struct {
	Sections []string
	Entries  map[string][]string
}

// Count returns the number of generated entries of the given kind.
func (s Summary) Count(kind string) int { return len(s.Entries[kind]) }

// HasSection reports whether a section marker for name was emitted.
func (s Summary) HasSection(name string) bool {
	for _, sec := range s.Sections {
		if sec == name {
			return true
		}
	}
	return false
}

// Inspect tokenizes populated HTML and collects section markers and entries.
func Inspect(r io.Reader) (Summary, error) {
	sum := Summary{Entries: map[string][]string{}}
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return sum, nil
			}
			return sum, z.Err()

		case html.CommentToken:
			c := strings.TrimSpace(string(z.Text()))
			if strings.HasPrefix(c, "section:") {
				sum.Sections = append(sum.Sections, strings.TrimSpace(strings.TrimPrefix(c, "section:")))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			var kind, start string
			var isEntry bool
			for _, a := range tok.Attr {
				switch a.Key {
				case "data-entry":
					kind, isEntry = a.Val, true
				case "data-start":
					start = a.Val
				}
			}
			if isEntry {
				sum.Entries[kind] = append(sum.Entries[kind], start)
			}
		}
	}
}
