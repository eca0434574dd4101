package model

// TransitEntry is one directed distance of the transit table, in metres.
type TransitEntry struct {
	From     LocationRef `json:"from" yaml:"from"`
	To       LocationRef `json:"to" yaml:"to"`
	Distance float64     `json:"distance" yaml:"distance"`
	// Symmetric also registers the reverse direction.
	Symmetric bool `json:"symmetric,omitempty" yaml:"symmetric,omitempty"`
}

// unreachableEps is the tolerance below zero at which a distance counts as
// the negative "no route" sentinel.
const unreachableEps = 1e-9

type locPair struct{ from, to LocationRef }

// TransitTable holds directed off-field distances between locations.
type TransitTable struct {
	dist map[locPair]float64
}

// NewTransitTable builds a table from entries. Later entries override earlier ones.
func NewTransitTable(entries []TransitEntry) *TransitTable {
	t := &TransitTable{dist: make(map[locPair]float64, len(entries)*2)}
	for _, e := range entries {
		t.Set(e.From, e.To, e.Distance)
		if e.Symmetric {
			t.Set(e.To, e.From, e.Distance)
		}
	}
	return t
}

// Set stores the distance from -> to.
func (t *TransitTable) Set(from, to LocationRef, d float64) {
	if t.dist == nil {
		t.dist = make(map[locPair]float64)
	}
	t.dist[locPair{from, to}] = d
}

// Distance returns the distance from -> to and whether the target is
// reachable. Identical locations are 0 apart; missing entries and negative
// sentinels are unreachable.
func (t *TransitTable) Distance(from, to LocationRef) (float64, bool) {
	if from == to {
		return 0, true
	}
	if t == nil {
		return 0, false
	}
	d, ok := t.dist[locPair{from, to}]
	if !ok || d < -unreachableEps {
		return 0, false
	}
	if d < 0 {
		d = 0
	}
	return d, true
}

// Len returns the number of stored directed entries.
func (t *TransitTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.dist)
}
