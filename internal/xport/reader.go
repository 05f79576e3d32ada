// Package xport decodes SAS XPORT (transport format version 5) files and
// converts their observations to JSON-ready records. Only the first dataset
// member of a transport file is read, matching how the FRB Chicago archive
// packages one dataset per file.
package xport

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const recordLen = 80

type VarType int

const (
	Numeric VarType = 1
	Char    VarType = 2
)

// Variable is one column of the transport dataset.
type Variable struct {
	Name   string
	Label  string
	Type   VarType
	Length int
	pos    int
}

// Value is a single observation cell.
type Value struct {
	Missing bool
	Num     float64
	Str     string
}

// File is a fully decoded transport file member.
type File struct {
	DatasetName string
	Variables   []Variable
	Rows        [][]Value
}

// Read decodes the first member of an XPORT v5 byte stream. Text fields are
// decoded with the given encodings in order; the first decode that yields
// clean UTF-8 wins (the archive mixes Windows-1252 and Latin-1 files).
func Read(data []byte, encodings []string) (*File, error) {
	r := &reader{data: data, encodings: encodings}
	return r.read()
}

type reader struct {
	data      []byte
	off       int
	encodings []string
}

func (r *reader) record() ([]byte, error) {
	if r.off+recordLen > len(r.data) {
		return nil, fmt.Errorf("xport: truncated file at offset %d", r.off)
	}
	rec := r.data[r.off : r.off+recordLen]
	r.off += recordLen
	return rec, nil
}

func (r *reader) expectHeader(kind string) ([]byte, error) {
	rec, err := r.record()
	if err != nil {
		return nil, err
	}
	want := "HEADER RECORD*******" + kind
	if !strings.HasPrefix(string(rec), want) {
		return nil, fmt.Errorf("xport: expected %s header record, got %q", strings.TrimSpace(kind), string(rec[:40]))
	}
	return rec, nil
}

func (r *reader) read() (*File, error) {
	if _, err := r.expectHeader("LIBRARY HEADER RECORD"); err != nil {
		return nil, fmt.Errorf("not a SAS XPORT file: %w", err)
	}
	// Two real header records: SAS symbols and library creation timestamp.
	for i := 0; i < 2; i++ {
		if _, err := r.record(); err != nil {
			return nil, err
		}
	}

	memberRec, err := r.expectHeader("MEMBER ")
	if err != nil {
		return nil, err
	}
	nsLen, err := strconv.Atoi(strings.TrimSpace(string(memberRec[68:78])))
	if err != nil || nsLen <= 0 {
		nsLen = 140
	}
	if _, err := r.expectHeader("DSCRPTR HEADER RECORD"); err != nil {
		return nil, err
	}

	// Member descriptor: dataset name lives at bytes 8..16 of the first
	// record; the second carries timestamps and the dataset label.
	descRec, err := r.record()
	if err != nil {
		return nil, err
	}
	datasetName := strings.TrimSpace(string(descRec[8:16]))
	if _, err := r.record(); err != nil {
		return nil, err
	}

	nameRec, err := r.expectHeader("NAMESTR HEADER RECORD")
	if err != nil {
		return nil, err
	}
	nvars, err := strconv.Atoi(strings.TrimSpace(string(nameRec[54:58])))
	if err != nil || nvars <= 0 {
		return nil, fmt.Errorf("xport: bad variable count in NAMESTR header")
	}

	vars, err := r.readNamestrs(nvars, nsLen)
	if err != nil {
		return nil, err
	}

	if _, err := r.expectHeader("OBS "); err != nil {
		return nil, err
	}

	rows, err := r.readObservations(vars)
	if err != nil {
		return nil, err
	}

	return &File{DatasetName: datasetName, Variables: vars, Rows: rows}, nil
}

// readNamestrs decodes nvars fixed-size NAMESTR entries. The block is
// padded with blanks to the 80-byte record boundary.
func (r *reader) readNamestrs(nvars, nsLen int) ([]Variable, error) {
	total := nvars * nsLen
	if pad := total % recordLen; pad != 0 {
		total += recordLen - pad
	}
	if r.off+total > len(r.data) {
		return nil, fmt.Errorf("xport: truncated NAMESTR block")
	}
	block := r.data[r.off : r.off+total]
	r.off += total

	vars := make([]Variable, 0, nvars)
	for i := 0; i < nvars; i++ {
		ns := block[i*nsLen : i*nsLen+nsLen]
		v := Variable{
			Type:   VarType(be16(ns[0:2])),
			Length: int(be16(ns[4:6])),
			Name:   trimPad(ns[8:16]),
			Label:  trimPad(ns[16:56]),
			pos:    int(be32(ns[84:88])),
		}
		if v.Type != Numeric && v.Type != Char {
			return nil, fmt.Errorf("xport: variable %s has unknown type %d", v.Name, v.Type)
		}
		if v.Length <= 0 {
			return nil, fmt.Errorf("xport: variable %s has length %d", v.Name, v.Length)
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// readObservations consumes fixed-width rows until the padding of the final
// 80-byte record (all blanks) or end of data.
func (r *reader) readObservations(vars []Variable) ([][]Value, error) {
	rowLen := 0
	for _, v := range vars {
		if end := v.pos + v.Length; end > rowLen {
			rowLen = end
		}
	}
	if rowLen == 0 {
		return nil, fmt.Errorf("xport: zero-width observation record")
	}

	var rows [][]Value
	for r.off+rowLen <= len(r.data) {
		chunk := r.data[r.off : r.off+rowLen]
		if isBlank(chunk) {
			break
		}
		// A subsequent member would start with a header record.
		if bytes.HasPrefix(chunk, []byte("HEADER RECORD*******")) {
			break
		}
		r.off += rowLen

		row := make([]Value, len(vars))
		for i, v := range vars {
			field := chunk[v.pos : v.pos+v.Length]
			if v.Type == Numeric {
				if isMissing(field) {
					row[i] = Value{Missing: true}
				} else {
					row[i] = Value{Num: ibmToFloat(field)}
				}
			} else {
				s := r.decodeText(field)
				if s == "" {
					row[i] = Value{Missing: true}
				} else {
					row[i] = Value{Str: s}
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *reader) decodeText(field []byte) string {
	raw := bytes.TrimRight(field, " \x00")
	if len(raw) == 0 {
		return ""
	}
	var last string
	for _, name := range r.encodings {
		cm := charmapFor(name)
		if cm == nil {
			continue
		}
		decoded, err := cm.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		last = string(decoded)
		if utf8.ValidString(last) && !strings.ContainsRune(last, utf8.RuneError) {
			return last
		}
	}
	if last != "" {
		return last
	}
	return string(raw)
}

func charmapFor(name string) *charmap.Charmap {
	switch strings.ToLower(name) {
	case "windows-1252", "windows1252", "cp1252":
		return charmap.Windows1252
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1
	}
	return nil
}

func trimPad(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' {
			return false
		}
	}
	return true
}

func be16(b []byte) int16 {
	return int16(b[0])<<8 | int16(b[1])
}

func be32(b []byte) int32 {
	return int32(b[0])<<24 | int32(b[1])<<16 | int32(b[2])<<8 | int32(b[3])
}
