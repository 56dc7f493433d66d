package poller

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// keySeparator joins identity label values into snapshot keys. The unit
// separator byte cannot occur in instance ids, zone names or product strings.
const keySeparator = "\x1f"

// gaugeSet wraps a GaugeVec with the snapshot and deletion bookkeeping a
// reconciliation pass needs. Series identity is an ordered subset of the
// family's label names; one identity can temporarily own several label sets
// when a record's non-identity labels change between passes, and all of them
// are retained as long as the identity keeps being seen.
type gaugeSet struct {
	vec      *prometheus.GaugeVec
	identity []string
}

func newGaugeSet(vec *prometheus.GaugeVec, identity []string) *gaugeSet {
	return &gaugeSet{vec: vec, identity: identity}
}

// snapshot returns every label set currently exposed, grouped by identity
// key.
func (s *gaugeSet) snapshot() (map[string][]prometheus.Labels, error) {
	ch := make(chan prometheus.Metric)
	go func() {
		s.vec.Collect(ch)
		close(ch)
	}()

	series := make(map[string][]prometheus.Labels)
	var writeErr error
	for metric := range ch {
		// Keep draining on error or the Collect goroutine blocks forever.
		var pb dto.Metric
		if err := metric.Write(&pb); err != nil {
			writeErr = err
			continue
		}
		labels := make(prometheus.Labels, len(pb.Label))
		for _, pair := range pb.Label {
			labels[pair.GetName()] = pair.GetValue()
		}
		key := s.key(labels)
		series[key] = append(series[key], labels)
	}
	if writeErr != nil {
		return nil, fmt.Errorf("reading gauge family state: %w", writeErr)
	}
	return series, nil
}

// key derives the snapshot key of a full label set.
func (s *gaugeSet) key(labels prometheus.Labels) string {
	values := make([]string, len(s.identity))
	for i, name := range s.identity {
		values[i] = labels[name]
	}
	return strings.Join(values, keySeparator)
}

// upsert sets the series with the given label set to value, creating the
// series if needed.
func (s *gaugeSet) upsert(labels prometheus.Labels, value float64) error {
	gauge, err := s.vec.GetMetricWith(labels)
	if err != nil {
		return err
	}
	gauge.Set(value)
	return nil
}

// deleteAll removes the given label sets from the family and reports how many
// series actually existed.
func (s *gaugeSet) deleteAll(sets []prometheus.Labels) int {
	deleted := 0
	for _, labels := range sets {
		if s.vec.Delete(labels) {
			deleted++
		}
	}
	return deleted
}
