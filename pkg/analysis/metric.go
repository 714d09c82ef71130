package analysis

import (
	"encoding/json"
	"math"
)

// Metric is a numeric result that may be Unavailable. The zero value is
// Unavailable.
type Metric struct {
	value float64
	valid bool
}

// Value wraps an available number.
func Value(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{}
	}
	return Metric{value: v, valid: true}
}

// Unavailable returns a metric without a value.
func Unavailable() Metric { return Metric{} }

// MetricFromPtr maps nil to Unavailable.
func MetricFromPtr(v *float64) Metric {
	if v == nil {
		return Metric{}
	}
	return Value(*v)
}

// Available reports whether the metric carries a value.
func (m Metric) Available() bool { return m.valid }

// Get returns the value and whether it is available.
func (m Metric) Get() (float64, bool) { return m.value, m.valid }

// Or returns the value, or fallback when Unavailable.
func (m Metric) Or(fallback float64) float64 {
	if !m.valid {
		return fallback
	}
	return m.value
}

// Ptr returns nil when Unavailable.
func (m Metric) Ptr() *float64 {
	if !m.valid {
		return nil
	}
	v := m.value
	return &v
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = MetricFromPtr(v)
	return nil
}
