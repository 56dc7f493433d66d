package poller

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/cloudpoll/ec2-fleet-exporter/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error")
}

// gaugeValue reads the current value of an existing series.
func gaugeValue(t *testing.T, set *gaugeSet, labels prometheus.Labels) float64 {
	t.Helper()
	gauge, err := set.vec.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("GetMetricWith(%v) error = %v", labels, err)
	}
	var pb dto.Metric
	if err := gauge.Write(&pb); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return pb.GetGauge().GetValue()
}

// counterValue reads one kind cell of a poll error counter.
func counterValue(t *testing.T, vec *prometheus.CounterVec, kind string) float64 {
	t.Helper()
	var pb dto.Metric
	if err := vec.WithLabelValues(kind).Write(&pb); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return pb.GetCounter().GetValue()
}

func newTestGaugeSet(labelNames, identity []string) *gaugeSet {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "test_family",
		Help: "test family",
	}, labelNames)
	return newGaugeSet(vec, identity)
}

func TestGaugeSet_SnapshotEmptyFamily(t *testing.T) {
	set := newTestGaugeSet([]string{"id"}, []string{"id"})

	snap, err := set.snapshot()
	if err != nil {
		t.Fatalf("snapshot() error = %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("snapshot() = %v, want empty", snap)
	}
}

func TestGaugeSet_SnapshotGroupsByIdentity(t *testing.T) {
	set := newTestGaugeSet([]string{"id", "color"}, []string{"id"})
	mustUpsert(t, set, prometheus.Labels{"id": "a", "color": "red"}, 1)
	mustUpsert(t, set, prometheus.Labels{"id": "a", "color": "blue"}, 1)
	mustUpsert(t, set, prometheus.Labels{"id": "b", "color": "red"}, 1)

	snap, err := set.snapshot()
	if err != nil {
		t.Fatalf("snapshot() error = %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("snapshot() has %d identities, want 2", len(snap))
	}
	if len(snap["a"]) != 2 {
		t.Errorf("identity a owns %d label sets, want 2", len(snap["a"]))
	}
	if len(snap["b"]) != 1 {
		t.Errorf("identity b owns %d label sets, want 1", len(snap["b"]))
	}
}

func TestGaugeSet_CompositeKeyJoinsIdentityInOrder(t *testing.T) {
	set := newTestGaugeSet([]string{"zone", "type"}, []string{"zone", "type"})

	got := set.key(prometheus.Labels{"type": "m5.large", "zone": "eu-west-1a"})
	want := "eu-west-1a" + keySeparator + "m5.large"
	if got != want {
		t.Errorf("key() = %q, want %q", got, want)
	}
}

func TestGaugeSet_UpsertCreatesThenUpdates(t *testing.T) {
	set := newTestGaugeSet([]string{"id"}, []string{"id"})
	labels := prometheus.Labels{"id": "a"}

	mustUpsert(t, set, labels, 1)
	mustUpsert(t, set, labels, 5)

	snap, err := set.snapshot()
	if err != nil {
		t.Fatalf("snapshot() error = %v", err)
	}
	if len(snap["a"]) != 1 {
		t.Fatalf("identity a owns %d label sets, want 1", len(snap["a"]))
	}
	if got := gaugeValue(t, set, labels); got != 5 {
		t.Errorf("series value = %v, want 5", got)
	}
}

func TestGaugeSet_UpsertRejectsUnknownLabelName(t *testing.T) {
	set := newTestGaugeSet([]string{"id"}, []string{"id"})

	if err := set.upsert(prometheus.Labels{"id": "a", "extra": "x"}, 1); err == nil {
		t.Error("upsert() with unknown label = nil error, want error")
	}
}

func TestGaugeSet_DeleteAllCountsExistingOnly(t *testing.T) {
	set := newTestGaugeSet([]string{"id"}, []string{"id"})
	mustUpsert(t, set, prometheus.Labels{"id": "a"}, 1)
	mustUpsert(t, set, prometheus.Labels{"id": "b"}, 1)

	deleted := set.deleteAll([]prometheus.Labels{
		{"id": "a"},
		{"id": "b"},
		{"id": "never-existed"},
	})
	if deleted != 2 {
		t.Errorf("deleteAll() = %d, want 2", deleted)
	}

	snap, err := set.snapshot()
	if err != nil {
		t.Fatalf("snapshot() error = %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("snapshot() after delete = %v, want empty", snap)
	}
}

func mustUpsert(t *testing.T, set *gaugeSet, labels prometheus.Labels, value float64) {
	t.Helper()
	if err := set.upsert(labels, value); err != nil {
		t.Fatalf("upsert(%v) error = %v", labels, err)
	}
}
