package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestStoreOperationsCounter(t *testing.T) {
	StoreOperationsTotal.Reset()

	StoreOperationsTotal.WithLabelValues("sqlite", "put", "success").Inc()
	StoreOperationsTotal.WithLabelValues("sqlite", "put", "success").Inc()
	StoreOperationsTotal.WithLabelValues("sqlite", "get", "error").Inc()

	got := testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("sqlite", "put", "success"))
	if got != 2 {
		t.Errorf("expected 2 successful puts, got %v", got)
	}
	got = testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("sqlite", "get", "error"))
	if got != 1 {
		t.Errorf("expected 1 failed get, got %v", got)
	}
}

func TestSetOperationsCounter(t *testing.T) {
	SetOperationsTotal.Reset()

	SetOperationsTotal.WithLabelValues("union", "success").Inc()
	SetOperationsTotal.WithLabelValues("union", "error").Inc()

	if got := testutil.ToFloat64(SetOperationsTotal.WithLabelValues("union", "success")); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
}

// Verify the msgset metric families appear in the default registry with the
// expected names, the way a scrape would see them.
func TestMetricsRegistered(t *testing.T) {
	BatchChunksTotal.Add(1)
	StoreRecordsTotal.WithLabelValues("sqlite").Set(3)
	IMAPCommandsTotal.WithLabelValues("move", "success").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	want := map[string]dto.MetricType{
		"msgset_batch_chunks_total":  dto.MetricType_COUNTER,
		"msgset_store_records_total": dto.MetricType_GAUGE,
		"msgset_imap_commands_total": dto.MetricType_COUNTER,
		"msgset_batch_chunk_size":    dto.MetricType_HISTOGRAM,
	}

	found := make(map[string]dto.MetricType)
	for _, mf := range families {
		if _, ok := want[mf.GetName()]; ok {
			found[mf.GetName()] = mf.GetType()
		}
	}

	for name, typ := range want {
		got, ok := found[name]
		if !ok {
			t.Errorf("metric family %s not registered", name)
			continue
		}
		if got != typ {
			t.Errorf("metric family %s has type %v, want %v", name, got, typ)
		}
	}
}
