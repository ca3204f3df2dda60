package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterPipelineMetrics_Idempotent(t *testing.T) {
	RegisterPipelineMetrics()
	RegisterPipelineMetrics()

	err := prometheus.Register(QueriesTotal)
	var are prometheus.AlreadyRegisteredError
	if err == nil || !errors.As(err, &are) {
		t.Fatalf("expected QueriesTotal to be registered already, got %v", err)
	}
}

func TestPipelineMetrics_Record(t *testing.T) {
	before := testutil.ToFloat64(QueriesTotal.WithLabelValues("ok"))
	QueriesTotal.WithLabelValues("ok").Inc()
	if got := testutil.ToFloat64(QueriesTotal.WithLabelValues("ok")); got != before+1 {
		t.Errorf("queries_total{ok} = %v, want %v", got, before+1)
	}

	StageDuration.WithLabelValues("retrieve").Observe(0.2)
	if testutil.CollectAndCount(StageDuration) == 0 {
		t.Error("expected stage duration series")
	}
}
