// Package cvtemplate populates static HTML CV templates with CV data.
//
// A template is plain HTML with two kinds of markers:
//
//	{{firstName}}                         placeholder, replaced everywhere it occurs
//	<!-- section:experience --> ... <!-- /section:experience -->
//	                                      delimited section, dropped when its data is empty
//
// Templates are parsed once into a small tree, so section boundaries never
// depend on what follows a section in the document.
package cvtemplate

import (
	"fmt"
	"strings"
)

const (
	placeholderOpen  = "{{"
	placeholderClose = "}}"
	sectionOpen      = "<!-- section:"
	sectionClose     = "<!-- /section:"
	commentEnd       = "-->"
)

type nodeKind int

const (
	textNode nodeKind = iota
	placeholderNode
	sectionNode
)

type node struct {
	kind     nodeKind
	text     string
	name     string
	children []node
}

// Template is a parsed CV template.
type Template struct {
	ID   string
	root []node
}

// ParseError reports a malformed template.
type ParseError struct {
	TemplateID string
	Offset     int
	Msg        string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template %s: offset %d: %s", e.TemplateID, e.Offset, e.Msg)
}

type frame struct {
	name   string
	offset int
	nodes  []node
}

type parser struct {
	id    string
	src   string
	stack []frame
	text  strings.Builder
}

// Parse builds a Template from its HTML source.
func Parse(id string, src []byte) (*Template, error) {
	p := &parser{id: id, src: string(src), stack: []frame{{}}}
	if err := p.run(); err != nil {
		return nil, err
	}
	return &Template{ID: id, root: p.stack[0].nodes}, nil
}

func (p *parser) top() *frame { return &p.stack[len(p.stack)-1] }

func (p *parser) flush() {
	if p.text.Len() == 0 {
		return
	}
	t := p.top()
	t.nodes = append(t.nodes, node{kind: textNode, text: p.text.String()})
	p.text.Reset()
}

func (p *parser) fail(offset int, format string, args ...interface{}) error {
	return &ParseError{TemplateID: p.id, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) run() error {
	s := p.src
	i := 0
	for i < len(s) {
		next := nextMarker(s, i)
		if next < 0 {
			p.text.WriteString(s[i:])
			break
		}
		p.text.WriteString(s[i:next])
		i = next

		switch {
		case strings.HasPrefix(s[i:], placeholderOpen):
			end := strings.Index(s[i+len(placeholderOpen):], placeholderClose)
			if end < 0 {
				return p.fail(i, "unterminated placeholder")
			}
			raw := s[i : i+len(placeholderOpen)+end+len(placeholderClose)]
			name := strings.TrimSpace(s[i+len(placeholderOpen) : i+len(placeholderOpen)+end])
			if validName(name) {
				p.flush()
				t := p.top()
				t.nodes = append(t.nodes, node{kind: placeholderNode, name: name})
			} else {
				p.text.WriteString(raw)
			}
			i += len(raw)

		case strings.HasPrefix(s[i:], sectionOpen):
			end := strings.Index(s[i:], commentEnd)
			if end < 0 {
				return p.fail(i, "unterminated section marker")
			}
			name := strings.TrimSpace(s[i+len(sectionOpen) : i+end])
			if !validName(name) {
				return p.fail(i, "invalid section name %q", name)
			}
			p.flush()
			p.stack = append(p.stack, frame{name: name, offset: i})
			i += end + len(commentEnd)

		case strings.HasPrefix(s[i:], sectionClose):
			end := strings.Index(s[i:], commentEnd)
			if end < 0 {
				return p.fail(i, "unterminated section marker")
			}
			name := strings.TrimSpace(s[i+len(sectionClose) : i+end])
			if len(p.stack) == 1 {
				return p.fail(i, "closing section %q was never opened", name)
			}
			if p.top().name != name {
				return p.fail(i, "closing section %q while %q is open", name, p.top().name)
			}
			p.flush()
			done := p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			t := p.top()
			t.nodes = append(t.nodes, node{kind: sectionNode, name: done.name, children: done.nodes})
			i += end + len(commentEnd)

		default:
			// a plain comment or a lone brace
			p.text.WriteByte(s[i])
			i++
		}
	}
	p.flush()
	if len(p.stack) > 1 {
		open := p.top()
		return p.fail(open.offset, "section %q is never closed", open.name)
	}
	return nil
}

// nextMarker returns the offset of the next "{{" or "<!--" at or after i.
func nextMarker(s string, i int) int {
	a := strings.Index(s[i:], placeholderOpen)
	b := strings.Index(s[i:], "<!--")
	switch {
	case a < 0 && b < 0:
		return -1
	case a < 0:
		return i + b
	case b < 0:
		return i + a
	case a < b:
		return i + a
	}
	return i + b
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return false
		}
	}
	return true
}

// Placeholders lists the distinct placeholder names in document order.
func (t *Template) Placeholders() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(nodes []node)
	walk = func(nodes []node) {
		for _, n := range nodes {
			switch n.kind {
			case placeholderNode:
				if !seen[n.name] {
					seen[n.name] = true
					out = append(out, n.name)
				}
			case sectionNode:
				walk(n.children)
			}
		}
	}
	walk(t.root)
	return out
}
