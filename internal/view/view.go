// Package view prepares a window snapshot for drawing. It knows nothing
// about the schema of the records: columns are whatever keys showed up.
package view

import (
	"math"
	"time"

	"github.com/ghalamif/sensorboard/internal/domain"
)

// Options controls how much of a snapshot ends up in the table.
type Options struct {
	// TableRows is the number of most recent records shown as rows.
	// Zero shows all of them.
	TableRows int
}

type View struct {
	Generated time.Time          `json:"generated"`
	Total     int                `json:"total"`
	Columns   []string           `json:"columns"`
	Rows      []Row              `json:"rows"`
	Series    map[string][]Point `json:"series"`
	Summaries map[string]Summary `json:"summaries"`
	Latest    *domain.Record     `json:"latest,omitempty"`
	Errors    int                `json:"errors"`
}

// Row holds one cell per column. Cells for fields the record lacks are
// nil and should be left blank.
type Row struct {
	Seq      uint64    `json:"seq"`
	Received time.Time `json:"received"`
	Source   string    `json:"source,omitempty"`
	Cells    []any     `json:"cells"`
}

type Point struct {
	Seq   uint64  `json:"seq"`
	Value float64 `json:"value"`
}

type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Last  float64 `json:"last"`
}

// Build turns records (oldest first) into a View.
func Build(records []domain.Record, opts Options) View {
	v := View{
		Generated: time.Now(),
		Total:     len(records),
		Columns:   []string{},
		Rows:      []Row{},
		Series:    map[string][]Point{},
		Summaries: map[string]Summary{},
	}
	if len(records) == 0 {
		return v
	}

	seen := make(map[string]int)
	sums := make(map[string]float64)
	for _, r := range records {
		if r.IsError() {
			v.Errors++
		}
		for _, f := range r.Fields {
			if _, ok := seen[f.Key]; !ok {
				seen[f.Key] = len(v.Columns)
				v.Columns = append(v.Columns, f.Key)
			}
			n, ok := numeric(f.Value)
			if !ok {
				continue
			}
			v.Series[f.Key] = append(v.Series[f.Key], Point{Seq: r.Seq, Value: n})
			s, exists := v.Summaries[f.Key]
			if !exists {
				s.Min, s.Max = n, n
			}
			s.Count++
			s.Min = math.Min(s.Min, n)
			s.Max = math.Max(s.Max, n)
			s.Last = n
			sums[f.Key] += n
			v.Summaries[f.Key] = s
		}
	}
	for k, s := range v.Summaries {
		s.Mean = sums[k] / float64(s.Count)
		v.Summaries[k] = s
	}

	tail := records
	if opts.TableRows > 0 && len(tail) > opts.TableRows {
		tail = tail[len(tail)-opts.TableRows:]
	}
	v.Rows = make([]Row, len(tail))
	for i, r := range tail {
		cells := make([]any, len(v.Columns))
		for _, f := range r.Fields {
			cells[seen[f.Key]] = domain.JSONValue(f.Value)
		}
		v.Rows[i] = Row{Seq: r.Seq, Received: r.Received, Source: r.Source, Cells: cells}
	}

	latest := records[len(records)-1]
	v.Latest = &latest
	return v
}

// numeric accepts real numbers only; booleans and NaN are not charted.
func numeric(v any) (float64, bool) {
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	n, ok := domain.AsNumber(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
