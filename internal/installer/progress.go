package installer

import (
	"fmt"
	"strings"
)

// labelFilePrefix starts the label of every per-file download update.
const labelFilePrefix = "Downloaded "

// Progress is one installer status update. Max 0 means indeterminate.
type Progress struct {
	Current int    `json:"current"`
	Max     int    `json:"max"`
	Label   string `json:"label"`
}

// Indeterminate reports whether the total amount of work is unknown.
func (p Progress) Indeterminate() bool {
	return p.Max <= 0
}

// Fraction returns completion in [0,1]; indeterminate progress reports 0.
func (p Progress) Fraction() float64 {
	if p.Indeterminate() {
		return 0
	}
	f := float64(p.Current) / float64(p.Max)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// FileStep reports whether p marks a single finished file download rather
// than an installation phase.
func (p Progress) FileStep() bool {
	return strings.HasPrefix(p.Label, labelFilePrefix)
}

func (p Progress) String() string {
	if p.Indeterminate() {
		return p.Label
	}
	return fmt.Sprintf("%s (%d/%d)", p.Label, p.Current, p.Max)
}

// ProgressFunc receives installer updates in the order they happen.
type ProgressFunc func(Progress)

func (f ProgressFunc) emit(p Progress) {
	if f != nil {
		f(p)
	}
}
