package taxonomy

import (
	"strconv"
	"strings"
)

// LabeledCode pairs an internal code with its resolved label. Label is null
// in the JSON output when the label index has no entry for the code.
type LabeledCode struct {
	Code  string  `json:"code"`
	Label *string `json:"label"`
}

// Reference carries the raw line and column identifiers as written on the
// regulatory form (e.g. "4a", "A").
type Reference struct {
	Line   string `json:"line"`
	Column string `json:"column"`
}

// Entry is the per-schedule placement of one field mnemonic.
type Entry struct {
	LineIDs   map[string]LabeledCode `json:"line_ids,omitempty"`
	ColumnIDs map[string]LabeledCode `json:"column_ids,omitempty"`
	Reference *Reference             `json:"reference,omitempty"`
}

// Document is the hierarchy output for one form/quarter, suitable for
// direct JSON encoding. Data maps field mnemonic -> schedule code -> Entry.
type Document struct {
	FormNumber string                       `json:"form_number"`
	Quarter    string                       `json:"quarter"`
	Data       map[string]map[string]*Entry `json:"data"`
}

// BuildHierarchy walks the graph from every field mnemonic up to its root
// and emits the nested output described by Document. Each mnemonic appears
// at most once per form/quarter.
func BuildHierarchy(g *Graph, formNumber, quarter string) (*Document, error) {
	doc := &Document{
		FormNumber: formNumber,
		Quarter:    quarter,
		Data:       make(map[string]map[string]*Entry),
	}

	for _, code := range g.Mnemonics() {
		paths, err := g.PathsToRoot(code)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			if err := placePath(doc, g, code, path); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

// placePath records one mnemonic -> ... -> schedule -> root chain. The chain
// below the root is classified as a line or column placement by the first
// code carrying a line/column marker, scanning from the mnemonic outward.
func placePath(doc *Document, g *Graph, code string, path []string) error {
	if len(path) < 3 {
		return &GraphConsistencyError{Code: code, Reason: "path has no schedule level"}
	}

	// Drop the root; the schedule node is then the last element.
	chain := path[: len(path)-1 : len(path)-1]
	schedule := chain[len(chain)-1]
	schedKey := scheduleKey(schedule)

	kind := ""
	for _, c := range chain {
		if isColumnCode(c) {
			kind = "column"
			break
		}
		if isLineCode(c) {
			kind = "line"
			break
		}
	}
	if kind == "" {
		return nil
	}

	// Ancestors from the schedule down to the mnemonic's direct parent.
	ancestors := make([]string, 0, len(chain)-1)
	for i := len(chain) - 1; i >= 1; i-- {
		ancestors = append(ancestors, chain[i])
	}

	entry := doc.entry(code, schedKey)
	switch kind {
	case "column":
		if len(ancestors) < 3 {
			return &GraphConsistencyError{Code: code, Reason: "column path below schedule " + schedKey + " is too short"}
		}
		ids := map[string]LabeledCode{
			"schedule": g.labeled(ancestors[0]),
			"colset":   g.labeled(ancestors[1]),
			"column":   g.labeled(ancestors[2]),
		}
		addExtras(ids, g, ancestors[3:])
		entry.ColumnIDs = ids
	case "line":
		ids := map[string]LabeledCode{
			"schedule": g.labeled(ancestors[0]),
		}
		addExtras(ids, g, ancestors[1:])
		entry.LineIDs = ids
	}
	return nil
}

func addExtras(ids map[string]LabeledCode, g *Graph, codes []string) {
	for i, c := range codes {
		ids["extra_col_"+strconv.Itoa(i)] = g.labeled(c)
	}
}

func (g *Graph) labeled(code string) LabeledCode {
	return LabeledCode{Code: code, Label: g.Label(code)}
}

func (d *Document) entry(code, schedKey string) *Entry {
	sched, ok := d.Data[code]
	if !ok {
		sched = make(map[string]*Entry)
		d.Data[code] = sched
	}
	e, ok := sched[schedKey]
	if !ok {
		e = &Entry{}
		sched[schedKey] = e
	}
	return e
}

// scheduleKey reduces a schedule node code to its short code, the segment
// after the last dash (e.g. "call-031-RCCII" -> "RCCII").
func scheduleKey(code string) string {
	if i := strings.LastIndex(code, "-"); i >= 0 {
		return code[i+1:]
	}
	return code
}
