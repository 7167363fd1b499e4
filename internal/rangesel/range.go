package rangesel

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode says whether a range filter keeps or drops the values inside it.
type Mode string

const (
	Include Mode = "include"
	Exclude Mode = "exclude"
)

// ParseMode accepts both the mode names and the operator values used by the
// criteria form ("range", "exclude:range"). Anything unknown is Include.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exclude", "exclude:range", "-range":
		return Exclude
	default:
		return Include
	}
}

// Operator is the criteria-store spelling of the mode.
func (m Mode) Operator() string {
	if m == Exclude {
		return "exclude:range"
	}
	return "range"
}

// Extremes are the current bounds of the x axis.
type Extremes struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Range is a closed interval with its filter mode.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mode Mode    `json:"mode"`
}

// ErrIncomplete is returned by Parse when an input is empty or not a decimal.
var ErrIncomplete = errors.New("rangesel: range inputs incomplete")

// Round rounds to one decimal place.
func Round(v float64) float64 {
	return math.Round(v*10) / 10
}

// Format renders a bound the way the companion inputs display it.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Normalize orders the bounds and rounds them to one decimal.
func Normalize(r Range) Range {
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	r.Min = Round(r.Min)
	r.Max = Round(r.Max)
	return r
}

// Clamp limits both bounds to the axis extremes, then normalizes. Rounding
// never pushes a bound back outside the extremes.
func Clamp(r Range, ext Extremes) Range {
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	r.Min = math.Min(math.Max(r.Min, ext.Min), ext.Max)
	r.Max = math.Max(math.Min(r.Max, ext.Max), ext.Min)
	r = Normalize(r)
	if r.Min < ext.Min {
		r.Min = math.Ceil(ext.Min*10) / 10
	}
	if r.Max > ext.Max {
		r.Max = math.Floor(ext.Max*10) / 10
	}
	if r.Min > r.Max {
		// extremes narrower than one decimal step
		r.Min, r.Max = ext.Min, ext.Max
	}
	return r
}

// DefaultRange selects the middle third of the axis.
func DefaultRange(ext Extremes) Range {
	third := (ext.Max - ext.Min) / 3
	return Normalize(Range{Min: ext.Min + third, Max: ext.Min + 2*third, Mode: Include})
}

// Parse reads the two input strings. Missing or malformed values yield
// ErrIncomplete.
func Parse(minText, maxText string, mode Mode) (Range, error) {
	lo, err := parseDecimal(minText)
	if err != nil {
		return Range{}, fmt.Errorf("%w: min: %v", ErrIncomplete, err)
	}
	hi, err := parseDecimal(maxText)
	if err != nil {
		return Range{}, fmt.Errorf("%w: max: %v", ErrIncomplete, err)
	}
	return Normalize(Range{Min: lo, Max: hi, Mode: mode}), nil
}

func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %q", s)
	}
	return v, nil
}
