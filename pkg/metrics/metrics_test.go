package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.HighlightOutcomes.WithLabelValues("highlighted").Inc()
	m.HighlightOutcomes.WithLabelValues("highlighted").Inc()
	m.CorpusRecords.Set(3)

	if got := testutil.ToFloat64(m.HighlightOutcomes.WithLabelValues("highlighted")); got != 2 {
		t.Errorf("highlight outcomes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CorpusRecords); got != 3 {
		t.Errorf("corpus records = %v, want 3", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}
