package linkbase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presXML = `<?xml version="1.0" encoding="utf-8"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:presentationLink xlink:role="http://cdr.ffiec.gov/role/call-031">
    <link:loc xlink:href="call-report-031.xsd#RCCII" xlink:label="call-031-RCCII"/>
    <link:presentationArc xlink:from="call-031-RCCII" xlink:to="RCCII-line-4a" order="1.0"/>
    <link:presentationArc xlink:from="RCCII-line-4a" xlink:to="cc_RCON2170" order="2.0"/>
  </link:presentationLink>
</link:linkbase>`

const capXML = `<?xml version="1.0" encoding="utf-8"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:roleRef roleURI="http://cdr.ffiec.gov/role/call-031" xlink:href="call-report-031-2021-03-31.xsd#call-031"/>
  <link:labelLink>
    <link:labelArc xlink:from="call-031-RCCII" xlink:to="lbl_RCCII"/>
    <link:label xlink:label="lbl_RCCII">Schedule RC-C Part II</link:label>
  </link:labelLink>
</link:linkbase>`

const refXML = `<?xml version="1.0" encoding="utf-8"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink" xmlns:ref="http://cdr.ffiec.gov/reference">
  <link:referenceLink>
    <link:reference xlink:label="cc_RCON2170_1">
      <ref:ScheduleCode>RCCII</ref:ScheduleCode>
      <ref:LineNumber>4a</ref:LineNumber>
      <ref:ColumnLetter>A</ref:ColumnLetter>
    </link:reference>
    <link:referenceArc xlink:from="cc_RCON2170" xlink:to="cc_RCON2170_1"/>
  </link:referenceLink>
</link:linkbase>`

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		ok   bool
	}{
		{"call-031-pres.xml", KindPresentation, true},
		{"call-031-cap.xml", KindLabel, true},
		{"call-031-ref.xml", KindReference, true},
		{"call-031-def.xml", KindDefinition, true},
		{"call-031-extra.xml", "", false},
	}
	for _, tc := range cases {
		kind, ok := Classify(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.kind, kind, tc.name)
	}
}

func TestParse_Presentation(t *testing.T) {
	doc, err := Parse("call-031-pres.xml", []byte(presXML))
	require.NoError(t, err)

	assert.Equal(t, KindPresentation, doc.Kind)
	require.Len(t, doc.PresentationLinks, 1)
	arcs := doc.PresentationLinks[0].Arcs
	require.Len(t, arcs, 2)
	assert.Equal(t, "call-031-RCCII", arcs[0].From)
	assert.Equal(t, "RCCII-line-4a", arcs[0].To)
	assert.Equal(t, "cc_RCON2170", arcs[1].To)
}

func TestParse_Label(t *testing.T) {
	doc, err := Parse("call-031-cap.xml", []byte(capXML))
	require.NoError(t, err)

	require.Len(t, doc.RoleRefs, 1)
	assert.Equal(t, "call-report-031-2021-03-31.xsd#call-031", doc.RoleRefs[0].Href)

	require.Len(t, doc.LabelLinks, 1)
	link := doc.LabelLinks[0]
	require.Len(t, link.Arcs, 1)
	require.Len(t, link.Labels, 1)
	assert.Equal(t, "lbl_RCCII", link.Labels[0].ID)
	assert.Equal(t, "Schedule RC-C Part II", link.Labels[0].Text)
}

func TestParse_ReferenceParts(t *testing.T) {
	doc, err := Parse("call-031-ref.xml", []byte(refXML))
	require.NoError(t, err)

	require.Len(t, doc.ReferenceLinks, 1)
	refs := doc.ReferenceLinks[0].References
	require.Len(t, refs, 1)

	sched, ok := refs[0].Part("schedule")
	assert.True(t, ok)
	assert.Equal(t, "RCCII", sched)

	line, ok := refs[0].Part("line")
	assert.True(t, ok)
	assert.Equal(t, "4a", line)

	column, ok := refs[0].Part("column")
	assert.True(t, ok)
	assert.Equal(t, "A", column)

	_, ok = refs[0].Part("footnote")
	assert.False(t, ok)
}

func TestParse_MalformedXMLNamesDocument(t *testing.T) {
	_, err := Parse("call-031-pres.xml", []byte("<linkbase><unclosed>"))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "call-031-pres.xml", parseErr.Document)
}

func TestParse_WrongRootElement(t *testing.T) {
	_, err := Parse("call-031-pres.xml", []byte("<html></html>"))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Error(), "unexpected root element")
}

func TestParse_UnrecognizedName(t *testing.T) {
	_, err := Parse("notes.xml", []byte(presXML))
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}
