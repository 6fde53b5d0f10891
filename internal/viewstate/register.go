// Package viewstate holds the single most recent map viewport reported by a
// client, shared between the HTTP write path and the stats consumer.
package viewstate

import (
	"math"
	"sync/atomic"
)

// View is one reported viewport: WGS84 bounds plus zoom.
type View struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
	Zoom  float64 `json:"zoom"`
}

// Key is a View rounded to a fixed precision. Views whose keys compare equal
// are treated as the same viewport by the stats consumer, so floating-point
// jitter from tiny pans never triggers an aggregate recompute.
type Key struct {
	North, South, East, West, Zoom float64
}

// Key rounds the view to boundsPrec decimal degrees for position and zoomPrec
// decimals for zoom.
func (v View) Key(boundsPrec, zoomPrec int) Key {
	return Key{
		North: roundTo(v.North, boundsPrec),
		South: roundTo(v.South, boundsPrec),
		East:  roundTo(v.East, boundsPrec),
		West:  roundTo(v.West, boundsPrec),
		Zoom:  roundTo(v.Zoom, zoomPrec),
	}
}

func roundTo(x float64, prec int) float64 {
	p := math.Pow10(prec)
	return math.Round(x*p) / p
}

// Register is a process-wide single-slot holder of the latest View. Writes
// swap a complete value atomically, so a concurrent reader sees either the
// old or the new view in full, never a mix of fields. Last write wins; no
// history is kept.
type Register struct {
	view atomic.Pointer[View]
}

// Set unconditionally overwrites the current view.
func (r *Register) Set(v View) {
	r.view.Store(&v)
}

// Get returns the current view, or false if none was ever set.
func (r *Register) Get() (View, bool) {
	p := r.view.Load()
	if p == nil {
		return View{}, false
	}
	return *p, true
}
