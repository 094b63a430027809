package model

import "strconv"

// LatencyMap holds the latest latency sample per point ID in milliseconds.
// A refresh replaces the whole map; a missing ID means "unknown", not zero.
type LatencyMap map[string]int

// UnknownLatency is what displays show for a point without a sample.
const UnknownLatency = "--"

// Lookup returns the sample for id and whether one exists.
func (m LatencyMap) Lookup(id string) (int, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[id]
	return v, ok
}

// Format renders the sample for id as "<n> ms", or the unknown sentinel.
func (m LatencyMap) Format(id string) string {
	v, ok := m.Lookup(id)
	if !ok {
		return UnknownLatency
	}
	return strconv.Itoa(v) + " ms"
}

// Clone returns an independent copy.
func (m LatencyMap) Clone() LatencyMap {
	out := make(LatencyMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LatencyBucket classifies a latency sample for coloring.
type LatencyBucket int

const (
	BucketUnknown LatencyBucket = iota
	BucketGood
	BucketWarn
	BucketBad
)

// Bucket thresholds in milliseconds.
const (
	GoodBelowMs = 50
	WarnBelowMs = 100
)

// BucketFor buckets a sample: <50 good, <100 warn, otherwise bad.
func BucketFor(ms int) LatencyBucket {
	switch {
	case ms < GoodBelowMs:
		return BucketGood
	case ms < WarnBelowMs:
		return BucketWarn
	default:
		return BucketBad
	}
}

func (b LatencyBucket) String() string {
	switch b {
	case BucketGood:
		return "good"
	case BucketWarn:
		return "warn"
	case BucketBad:
		return "bad"
	default:
		return "unknown"
	}
}

// Color is shared by arc rendering and every legend.
func (b LatencyBucket) Color() RGB {
	switch b {
	case BucketGood:
		return Hex(0x00ff00)
	case BucketWarn:
		return Hex(0xffff00)
	case BucketBad:
		return Hex(0xff0000)
	default:
		return Hex(0x808080)
	}
}

// LegendEntry is one row of the latency legend.
type LegendEntry struct {
	Bucket LatencyBucket
	Label  string
	Color  RGB
}

// Legend returns the three latency buckets in display order.
func Legend() []LegendEntry {
	out := make([]LegendEntry, 0, 3)
	for _, e := range []struct {
		b     LatencyBucket
		label string
	}{
		{BucketGood, "<50ms"},
		{BucketWarn, "50–100ms"},
		{BucketBad, ">100ms"},
	} {
		out = append(out, LegendEntry{Bucket: e.b, Label: e.label, Color: e.b.Color()})
	}
	return out
}
