package xport

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Observation is one (bank, field, quarter) data point in the output JSON.
// Exactly one of the *_data fields is set, matching DataType.
type Observation struct {
	RSSD      int64    `json:"rssd"`
	MDRM      string   `json:"mdrm"`
	Quarter   int      `json:"quarter"`
	DataType  string   `json:"data_type"`
	BoolData  *bool    `json:"bool_data,omitempty"`
	IntData   *int64   `json:"int_data,omitempty"`
	FloatData *float64 `json:"float_data,omitempty"`
	StrData   *string  `json:"str_data,omitempty"`
}

// Convert normalizes a decoded transport file into flat observations: the
// DATE column supplies the reporting quarter and is dropped, ENTITY becomes
// the rssd row key, and every remaining column is an MDRM field whose type
// is detected from its data.
func Convert(f *File) ([]Observation, error) {
	if len(f.Rows) == 0 {
		return nil, fmt.Errorf("xport: dataset %s has no observations", f.DatasetName)
	}

	dateIdx, entityIdx := -1, -1
	for i, v := range f.Variables {
		switch strings.ToUpper(v.Name) {
		case "DATE":
			dateIdx = i
		case "ENTITY":
			entityIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("xport: dataset %s has no DATE column", f.DatasetName)
	}
	if entityIdx < 0 {
		return nil, fmt.Errorf("xport: dataset %s has no ENTITY column", f.DatasetName)
	}

	// The archive reports one quarter per file, so the first row's DATE
	// stands for all rows.
	first := f.Rows[0][dateIdx]
	if first.Missing {
		return nil, fmt.Errorf("xport: dataset %s has a missing DATE in its first observation", f.DatasetName)
	}
	quarter := int(first.Num)

	types := make([]string, len(f.Variables))
	for i := range f.Variables {
		if i == dateIdx || i == entityIdx {
			continue
		}
		types[i] = detectType(f, i)
	}

	var out []Observation
	for _, row := range f.Rows {
		rssd, err := rssdOf(row[entityIdx])
		if err != nil {
			return nil, err
		}
		for i, v := range f.Variables {
			if i == dateIdx || i == entityIdx {
				continue
			}
			obs := Observation{
				RSSD:     rssd,
				MDRM:     strings.ToLower(v.Name),
				Quarter:  quarter,
				DataType: types[i],
			}
			cell := row[i]
			switch types[i] {
			case "bool":
				if cell.Missing {
					continue
				}
				b := cell.Num == 1
				obs.BoolData = &b
			case "int":
				if cell.Missing {
					continue
				}
				n := int64(cell.Num)
				obs.IntData = &n
			case "float":
				if cell.Missing {
					continue
				}
				x := cell.Num
				obs.FloatData = &x
			case "str":
				if cell.Missing {
					continue
				}
				s := cell.Str
				obs.StrData = &s
			}
			out = append(out, obs)
		}
	}
	return out, nil
}

// detectType applies the original heuristics. The transport format encodes
// booleans as 0/1 numerics and does not distinguish int from float, so both
// are recovered from the data itself.
func detectType(f *File, idx int) string {
	if f.Variables[idx].Type == Char {
		return "str"
	}

	seen := map[float64]bool{}
	var distinct []float64
	for _, row := range f.Rows {
		cell := row[idx]
		if cell.Missing || seen[cell.Num] {
			continue
		}
		seen[cell.Num] = true
		distinct = append(distinct, cell.Num)
	}

	// Exactly the values {0, 1} reads as boolean. A column of all zeros
	// stays numeric; the heuristic cannot tell those apart.
	if len(distinct) == 2 {
		sort.Float64s(distinct)
		if distinct[0] == 0 && distinct[1] == 1 {
			return "bool"
		}
	}

	var sum float64
	for _, v := range distinct {
		sum += v
	}
	if math.Mod(sum, 1) == 0 {
		return "int"
	}
	return "float"
}

func rssdOf(cell Value) (int64, error) {
	if cell.Missing {
		return 0, fmt.Errorf("xport: observation has a missing ENTITY value")
	}
	if cell.Str != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(cell.Str), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("xport: ENTITY value %q is not an RSSD id", cell.Str)
		}
		return n, nil
	}
	return int64(cell.Num), nil
}
