package progress

import "fmt"

// Indeterminate marks a snapshot whose completion fraction is unknown
const Indeterminate = -1.0

// Snapshot is an immutable view of a task's progress at one instant
type Snapshot struct {
	Fraction float64 // [0,1] or Indeterminate
	Message  string  // human-readable status line
	Title    string  // short label, usually the percentage
	Seq      uint64  // publication order within one channel
}

// IsIndeterminate reports whether the completion fraction is unknown
func (s Snapshot) IsIndeterminate() bool {
	return s.Fraction < 0
}

// IsComplete reports whether the snapshot shows full completion
func (s Snapshot) IsComplete() bool {
	return s.Fraction >= 1
}

// PercentLabel renders fraction as "NN%", truncating towards zero
func PercentLabel(fraction float64) string {
	if fraction < 0 {
		return ""
	}
	if fraction > 1 {
		fraction = 1
	}
	return fmt.Sprintf("%d%%", int(fraction*100+1e-9))
}

// Clamp bounds fraction to [0,1], leaving Indeterminate untouched
func Clamp(fraction float64) float64 {
	switch {
	case fraction < 0:
		return Indeterminate
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}

// Reset is the snapshot shown after a run is cancelled or fails
func Reset() Snapshot {
	return Snapshot{Fraction: 0, Title: PercentLabel(0)}
}
