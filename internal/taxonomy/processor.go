// Package taxonomy converts FFIEC CDR taxonomy XBRL bundles into a
// hierarchical JSON document keyed by field mnemonic and schedule.
package taxonomy

import (
	"fmt"
	"path"
	"strings"

	"cdrkit/internal/archive"
	"cdrkit/internal/config"
	"cdrkit/internal/linkbase"
)

// Processor runs the full pipeline for one bundle: read archive, parse
// linkbase documents, build the relationship graph, serialize the hierarchy.
// All errors abort the run; inputs are static files, so nothing is retried.
type Processor struct {
	cfg *config.Config
}

func NewProcessor(cfg *config.Config) *Processor {
	return &Processor{cfg: cfg}
}

// Process converts the bundle at bundlePath into a hierarchy Document. The
// relationship graph is returned alongside for callers that persist it.
func (p *Processor) Process(bundlePath string) (*Document, *Graph, error) {
	bundle, err := archive.Open(bundlePath, p.cfg.Taxonomy.ArchiveExtension)
	if err != nil {
		return nil, nil, err
	}
	defer bundle.Close()

	docs, err := p.parseBundle(bundle)
	if err != nil {
		return nil, nil, err
	}

	formNumber, quarter, err := reportID(docs[linkbase.KindLabel])
	if err != nil {
		return nil, nil, err
	}

	g := NewGraph(p.cfg.Taxonomy.LabelFallback)
	indexLabels(g, docs[linkbase.KindLabel])
	addPresentationArcs(g, docs[linkbase.KindPresentation])

	doc, err := BuildHierarchy(g, formNumber, quarter)
	if err != nil {
		return nil, nil, err
	}
	attachReferences(doc, docs[linkbase.KindReference])
	return doc, g, nil
}

// parseBundle locates and parses the four linkbase documents. A bundle
// missing any of them is not a CDR taxonomy bundle.
func (p *Processor) parseBundle(bundle *archive.Bundle) (map[linkbase.Kind]*linkbase.Document, error) {
	names := map[linkbase.Kind]string{}
	for _, name := range bundle.Names() {
		kind, ok := linkbase.Classify(name)
		if !ok {
			continue
		}
		if _, seen := names[kind]; !seen {
			names[kind] = name
		}
	}
	for _, kind := range []linkbase.Kind{linkbase.KindPresentation, linkbase.KindLabel, linkbase.KindReference, linkbase.KindDefinition} {
		if _, ok := names[kind]; !ok {
			return nil, &archive.Error{
				Bundle: bundle.Name(),
				Reason: fmt.Sprintf("not a CDR taxonomy bundle: no %s linkbase document", kind),
			}
		}
	}

	docs := make(map[linkbase.Kind]*linkbase.Document, len(names))
	for kind, name := range names {
		data, err := bundle.Read(name)
		if err != nil {
			return nil, err
		}
		doc, err := linkbase.Parse(name, data)
		if err != nil {
			return nil, err
		}
		docs[kind] = doc
	}
	return docs, nil
}

// reportID recovers the form number and reporting quarter from the label
// linkbase roleRef href, e.g. "call-report-031-2021-03-31.xsd#...".
func reportID(doc *linkbase.Document) (string, string, error) {
	if len(doc.RoleRefs) == 0 {
		return "", "", &linkbase.ParseError{Document: doc.Name, Err: fmt.Errorf("no roleRef to derive form and quarter from")}
	}
	href := doc.RoleRefs[0].Href
	if i := strings.Index(href, "#"); i >= 0 {
		href = href[:i]
	}
	base := path.Base(href)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimPrefix(base, "call-report")
	base = strings.Trim(base, "-")

	parts := strings.Split(base, "-")
	if len(parts) < 4 {
		return "", "", &linkbase.ParseError{Document: doc.Name, Err: fmt.Errorf("roleRef href %q does not encode form and quarter", href)}
	}
	return parts[0], strings.Join(parts[1:4], "-"), nil
}

// indexLabels builds the code -> label index: labelArc binds a code to a
// label resource id, the label resource carries the text.
func indexLabels(g *Graph, doc *linkbase.Document) {
	for _, link := range doc.LabelLinks {
		texts := make(map[string]string, len(link.Labels))
		for _, l := range link.Labels {
			text := strings.TrimSpace(l.Text)
			if _, ok := texts[l.ID]; !ok && text != "" {
				texts[l.ID] = text
			}
		}
		for _, arc := range link.Arcs {
			if text, ok := texts[arc.To]; ok {
				g.AddLabel(arc.From, text)
			}
		}
	}
}

func addPresentationArcs(g *Graph, doc *linkbase.Document) {
	for _, link := range doc.PresentationLinks {
		for _, arc := range link.Arcs {
			if arc.From == "" || arc.To == "" {
				continue
			}
			g.AddArc(arc.From, arc.To)
		}
	}
}

// attachReferences joins the reference linkbase onto the hierarchy: a
// reference id's first two underscore segments name the mnemonic, and the
// schedule part selects the entry. Raw line/column identifiers are attached
// even when labels are unresolved.
func attachReferences(doc *Document, refDoc *linkbase.Document) {
	for _, link := range refDoc.ReferenceLinks {
		for _, ref := range link.References {
			mnemonic := mnemonicOf(ref.ID)
			schedules, ok := doc.Data[mnemonic]
			if !ok {
				continue
			}
			sched, _ := ref.Part("schedule")
			entry, ok := schedules[sched]
			if !ok {
				continue
			}
			line, _ := ref.Part("line")
			column, _ := ref.Part("column")
			entry.Reference = &Reference{Line: line, Column: column}
		}
	}
}

// mnemonicOf reduces a reference resource id like "cc_RCON2170_5" to the
// mnemonic code "cc_RCON2170".
func mnemonicOf(id string) string {
	parts := strings.Split(id, "_")
	if len(parts) < 2 {
		return id
	}
	return strings.Join(parts[:2], "_")
}
