package taxonomy

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cdrkit/internal/archive"
	"cdrkit/internal/config"
	"cdrkit/internal/linkbase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPresXML = `<?xml version="1.0" encoding="utf-8"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:presentationLink xlink:role="http://cdr.ffiec.gov/role/call-031">
    <link:presentationArc xlink:from="call-report-taxonomy" xlink:to="call-031-RCCII" order="1.0"/>
    <link:presentationArc xlink:from="call-031-RCCII" xlink:to="RCCII-line-4a" order="1.0"/>
    <link:presentationArc xlink:from="RCCII-line-4a" xlink:to="cc_RCON2170" order="1.0"/>
    <link:presentationArc xlink:from="call-031-RCCII" xlink:to="RCCII-colset-1" order="2.0"/>
    <link:presentationArc xlink:from="RCCII-colset-1" xlink:to="RCCII-column-A" order="1.0"/>
    <link:presentationArc xlink:from="RCCII-column-A" xlink:to="cc_RCON2170" order="1.0"/>
  </link:presentationLink>
</link:linkbase>`

const testCapXML = `<?xml version="1.0" encoding="utf-8"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:roleRef roleURI="http://cdr.ffiec.gov/role/call-031" xlink:href="call-report-031-2021-03-31.xsd#call-031"/>
  <link:labelLink>
    <link:labelArc xlink:from="call-031-RCCII" xlink:to="lbl_RCCII"/>
    <link:label xlink:label="lbl_RCCII">Schedule RC-C Part II</link:label>
    <link:labelArc xlink:from="RCCII-line-4a" xlink:to="lbl_line4a"/>
    <link:label xlink:label="lbl_line4a">Loans to finance agricultural production</link:label>
  </link:labelLink>
</link:linkbase>`

const testRefXML = `<?xml version="1.0" encoding="utf-8"?>
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

const testDefXML = `<?xml version="1.0" encoding="utf-8"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:definitionLink xlink:role="http://cdr.ffiec.gov/role/call-031"/>
</link:linkbase>`

func writeBundle(t *testing.T, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	// Fixed entry order keeps the fixtures deterministic.
	names := []string{"call-031-pres.xml", "call-031-cap.xml", "call-031-ref.xml", "call-031-def.xml"}
	for _, name := range names {
		body, ok := entries[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "call-031-2021-03-31.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func fullBundle(t *testing.T) string {
	return writeBundle(t, map[string]string{
		"call-031-pres.xml": testPresXML,
		"call-031-cap.xml":  testCapXML,
		"call-031-ref.xml":  testRefXML,
		"call-031-def.xml":  testDefXML,
	})
}

func TestProcess_FullBundle(t *testing.T) {
	doc, g, err := NewProcessor(config.Default()).Process(fullBundle(t))
	require.NoError(t, err)
	require.NotNil(t, g)

	assert.Equal(t, "031", doc.FormNumber)
	assert.Equal(t, "2021-03-31", doc.Quarter)

	require.Len(t, doc.Data, 1)
	entry := doc.Data["cc_RCON2170"]["RCCII"]
	require.NotNil(t, entry)

	require.NotNil(t, entry.Reference)
	assert.Equal(t, "4a", entry.Reference.Line)
	assert.Equal(t, "A", entry.Reference.Column)

	sched := entry.LineIDs["schedule"]
	require.NotNil(t, sched.Label)
	assert.Equal(t, "Schedule RC-C Part II", *sched.Label)

	// RCCII-column-A has no label entry and must serialize as null.
	col := entry.ColumnIDs["column"]
	assert.Equal(t, "RCCII-column-A", col.Code)
	assert.Nil(t, col.Label)
}

func TestProcess_RerunIsByteIdentical(t *testing.T) {
	path := fullBundle(t)
	p := NewProcessor(config.Default())

	encode := func() []byte {
		doc, _, err := p.Process(path)
		require.NoError(t, err)
		raw, err := json.Marshal(doc)
		require.NoError(t, err)
		return raw
	}
	assert.Equal(t, encode(), encode())
}

func TestProcess_EmptyArchiveFailsWithArchiveError(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("nothing here"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "empty.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, _, err = NewProcessor(config.Default()).Process(path)
	var archErr *archive.Error
	assert.True(t, errors.As(err, &archErr))
}

func TestProcess_MissingLinkbaseFailsWithArchiveError(t *testing.T) {
	path := writeBundle(t, map[string]string{
		"call-031-pres.xml": testPresXML,
		"call-031-cap.xml":  testCapXML,
		"call-031-def.xml":  testDefXML,
	})

	_, _, err := NewProcessor(config.Default()).Process(path)
	var archErr *archive.Error
	require.True(t, errors.As(err, &archErr))
	assert.Contains(t, archErr.Error(), "reference")
}

func TestProcess_MalformedDocumentAbortsNamingIt(t *testing.T) {
	path := writeBundle(t, map[string]string{
		"call-031-pres.xml": "<linkbase><broken",
		"call-031-cap.xml":  testCapXML,
		"call-031-ref.xml":  testRefXML,
		"call-031-def.xml":  testDefXML,
	})

	_, _, err := NewProcessor(config.Default()).Process(path)
	var parseErr *linkbase.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "call-031-pres.xml", parseErr.Document)
}

func TestReportID(t *testing.T) {
	doc := &linkbase.Document{
		Name: "call-031-cap.xml",
		RoleRefs: []linkbase.RoleRef{
			{Href: "call-report-031-2021-03-31.xsd#call-031"},
		},
	}
	form, quarter, err := reportID(doc)
	require.NoError(t, err)
	assert.Equal(t, "031", form)
	assert.Equal(t, "2021-03-31", quarter)

	t.Run("no roleRef", func(t *testing.T) {
		_, _, err := reportID(&linkbase.Document{Name: "x.xml"})
		var parseErr *linkbase.ParseError
		assert.True(t, errors.As(err, &parseErr))
	})

	t.Run("href without report id", func(t *testing.T) {
		bad := &linkbase.Document{Name: "x.xml", RoleRefs: []linkbase.RoleRef{{Href: "misc.xsd"}}}
		_, _, err := reportID(bad)
		assert.Error(t, err)
	})
}
