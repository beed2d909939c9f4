package view

import (
	"testing"

	"github.com/ghalamif/sensorboard/internal/domain"
)

func seqRecord(seq uint64, kv ...any) domain.Record {
	r := domain.NewRecord(kv...)
	r.Seq = seq
	return r
}

func TestBuildSchemaFree(t *testing.T) {
	records := []domain.Record{
		seqRecord(1, "temperature", 20.0, "humidity", int64(40)),
		seqRecord(2, "payload", "garbled"),
		seqRecord(3, "temperature", 22.0, "battery_voltage", 3.7, "motion", true),
		seqRecord(4, "error", "connection lost"),
	}

	v := Build(records, Options{TableRows: 3})

	want := []string{"temperature", "humidity", "payload", "battery_voltage", "motion", "error"}
	if len(v.Columns) != len(want) {
		t.Fatalf("expected columns %v, got %v", want, v.Columns)
	}
	for i := range want {
		if v.Columns[i] != want[i] {
			t.Fatalf("expected columns %v, got %v", want, v.Columns)
		}
	}

	if len(v.Rows) != 3 || v.Rows[0].Seq != 2 {
		t.Fatalf("expected last 3 rows starting at seq 2, got %+v", v.Rows)
	}
	if v.Rows[0].Cells[0] != nil {
		t.Fatalf("expected absent temperature to be left blank, got %#v", v.Rows[0].Cells[0])
	}
	if v.Rows[1].Cells[0] != 22.0 || v.Rows[1].Cells[4] != true {
		t.Fatalf("unexpected cells %#v", v.Rows[1].Cells)
	}

	if pts := v.Series["temperature"]; len(pts) != 2 || pts[1].Seq != 3 || pts[1].Value != 22 {
		t.Fatalf("unexpected temperature series %+v", pts)
	}
	if _, ok := v.Series["motion"]; ok {
		t.Fatalf("booleans should not be charted")
	}
	if _, ok := v.Series["payload"]; ok {
		t.Fatalf("text should not be charted")
	}

	s := v.Summaries["temperature"]
	if s.Count != 2 || s.Min != 20 || s.Max != 22 || s.Mean != 21 || s.Last != 22 {
		t.Fatalf("unexpected temperature summary %+v", s)
	}
	if v.Errors != 1 {
		t.Fatalf("expected 1 error record, got %d", v.Errors)
	}
	if v.Latest == nil || v.Latest.Seq != 4 {
		t.Fatalf("expected latest seq 4, got %+v", v.Latest)
	}
}

func TestBuildEmpty(t *testing.T) {
	v := Build(nil, Options{})
	if v.Total != 0 || len(v.Rows) != 0 || v.Latest != nil {
		t.Fatalf("unexpected view for empty window: %+v", v)
	}
}
