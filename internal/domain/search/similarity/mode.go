package similarity

import "fmt"

// Mode selects which hash drives the similarity score.
type Mode string

// Similarity modes.
const (
	Average    Mode = "average"
	Difference Mode = "difference"
	Wavelet    Mode = "wavelet"
	Perceptual Mode = "perceptual"
	Color      Mode = "color"
	// All averages the five single-hash scores with equal weight.
	All Mode = "all"
)

// SingleModes lists the per-hash modes in fixed order.
var SingleModes = []Mode{Average, Difference, Wavelet, Perceptual, Color}

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	switch m {
	case Average, Difference, Wavelet, Perceptual, Color, All:
		return true
	}
	return false
}

// ParseMode parses a mode name; empty defaults to All.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return All, nil
	}
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid similarity mode: %q", s)
	}
	return m, nil
}
