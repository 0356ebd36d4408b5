package obs

import "sync"

// Label is a key/value pair attached to measurements.
type Label struct {
	Key   string
	Value string
}

// Meter is a very small interface for emitting counters/histograms.
// Implementations may no-op or bridge to a metrics system.
type Meter interface {
	Counter(name string, value float64, labels ...Label)
	Histogram(name string, value float64, labels ...Label)
}

// NopMeter is a Meter that discards all measurements.
type NopMeter struct{}

func (NopMeter) Counter(name string, value float64, labels ...Label)   {}
func (NopMeter) Histogram(name string, value float64, labels ...Label) {}

// MemMeter accumulates counters in memory, keyed by name and the first
// label value. Histograms are recorded as observation counts and sums.
type MemMeter struct {
	mu       sync.Mutex
	counters map[string]float64
	obsCount map[string]int
	obsSum   map[string]float64
}

func NewMemMeter() *MemMeter {
	return &MemMeter{
		counters: make(map[string]float64),
		obsCount: make(map[string]int),
		obsSum:   make(map[string]float64),
	}
}

func key(name string, labels []Label) string {
	if len(labels) == 0 {
		return name
	}
	return name + "{" + labels[0].Key + "=" + labels[0].Value + "}"
}

func (m *MemMeter) Counter(name string, value float64, labels ...Label) {
	m.mu.Lock()
	m.counters[key(name, labels)] += value
	m.mu.Unlock()
}

func (m *MemMeter) Histogram(name string, value float64, labels ...Label) {
	k := key(name, labels)
	m.mu.Lock()
	m.obsCount[k]++
	m.obsSum[k] += value
	m.mu.Unlock()
}

// CounterValue returns the accumulated value for name{labelKey=labelValue},
// or for name alone when labelKey is empty.
func (m *MemMeter) CounterValue(name, labelKey, labelValue string) float64 {
	k := name
	if labelKey != "" {
		k = key(name, []Label{{Key: labelKey, Value: labelValue}})
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[k]
}

// Observations returns the number of histogram samples and their sum.
func (m *MemMeter) Observations(name string) (int, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.obsCount[name], m.obsSum[name]
}

// Snapshot copies every counter, keyed as name{key=value}, and every
// histogram as name_count and name_sum entries.
func (m *MemMeter) Snapshot() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.counters)+2*len(m.obsCount))
	for k, v := range m.counters {
		out[k] = v
	}
	for k, n := range m.obsCount {
		out[k+"_count"] = float64(n)
		out[k+"_sum"] = m.obsSum[k]
	}
	return out
}
