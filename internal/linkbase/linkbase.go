// Package linkbase parses the XBRL linkbase documents found in an FFIEC CDR
// taxonomy bundle into typed structures. A bundle carries four documents per
// form/quarter, distinguished by filename convention: presentation (-pres),
// label (-cap), reference (-ref) and definition (-def).
package linkbase

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type Kind string

const (
	KindPresentation Kind = "presentation"
	KindLabel        Kind = "label"
	KindReference    Kind = "reference"
	KindDefinition   Kind = "definition"
)

// ParseError reports malformed XML and names the offending document.
type ParseError struct {
	Document string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Document, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Classify maps a bundle entry name to its linkbase kind.
func Classify(name string) (Kind, bool) {
	switch {
	case strings.Contains(name, "-pres"):
		return KindPresentation, true
	case strings.Contains(name, "-cap"):
		return KindLabel, true
	case strings.Contains(name, "-ref"):
		return KindReference, true
	case strings.Contains(name, "-def"):
		return KindDefinition, true
	}
	return "", false
}

// Document is one parsed linkbase. Only the link types relevant to its kind
// are populated; the rest stay empty.
type Document struct {
	XMLName xml.Name

	Name string `xml:"-"`
	Kind Kind   `xml:"-"`

	RoleRefs          []RoleRef          `xml:"roleRef"`
	PresentationLinks []PresentationLink `xml:"presentationLink"`
	LabelLinks        []LabelLink        `xml:"labelLink"`
	ReferenceLinks    []ReferenceLink    `xml:"referenceLink"`
	DefinitionLinks   []DefinitionLink   `xml:"definitionLink"`
}

type RoleRef struct {
	RoleURI string `xml:"roleURI,attr"`
	Href    string `xml:"href,attr"`
}

// Arc is a directed xlink relationship between two internal codes. Sibling
// ordering comes from document order, so the order attribute is not kept.
type Arc struct {
	From string `xml:"from,attr"`
	To   string `xml:"to,attr"`
}

type PresentationLink struct {
	Role string `xml:"role,attr"`
	Arcs []Arc  `xml:"presentationArc"`
}

type DefinitionLink struct {
	Role string `xml:"role,attr"`
	Arcs []Arc  `xml:"definitionArc"`
}

type LabelLink struct {
	Arcs   []Arc   `xml:"labelArc"`
	Labels []Label `xml:"label"`
}

type Label struct {
	ID   string `xml:"label,attr"`
	Role string `xml:"role,attr"`
	Text string `xml:",chardata"`
}

type ReferenceLink struct {
	References []Reference `xml:"reference"`
	Arcs       []Arc       `xml:"referenceArc"`
}

// Reference binds an internal code to the schedule, line and column printed
// on the paper form. The part element names vary by taxonomy vintage, so
// they are captured generically and matched by local-name substring.
type Reference struct {
	ID    string          `xml:"label,attr"`
	Parts []ReferencePart `xml:",any"`
}

type ReferencePart struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// Part returns the value of the first part whose local name contains want
// (case-insensitive), e.g. "schedule", "line", "column".
func (r *Reference) Part(want string) (string, bool) {
	for _, p := range r.Parts {
		if strings.Contains(strings.ToLower(p.XMLName.Local), strings.ToLower(want)) {
			return strings.TrimSpace(p.Value), true
		}
	}
	return "", false
}

// Parse decodes one bundle entry. The document must be an XBRL linkbase with
// a kind recognized by Classify.
func Parse(name string, data []byte) (*Document, error) {
	kind, ok := Classify(name)
	if !ok {
		return nil, &ParseError{Document: name, Err: fmt.Errorf("not a recognized linkbase document")}
	}

	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Document: name, Err: err}
	}
	if doc.XMLName.Local != "linkbase" {
		return nil, &ParseError{Document: name, Err: fmt.Errorf("unexpected root element <%s>", doc.XMLName.Local)}
	}

	doc.Name = name
	doc.Kind = kind
	return &doc, nil
}
