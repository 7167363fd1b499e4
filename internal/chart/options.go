package chart

import "github.com/dgnsrekt/chartsync/internal/dataset"

const (
	DefaultSelectedColor   = "#FF7373"
	DefaultUnselectedColor = "#4572A7"
	DefaultIncludeColor    = "#DCFEC5"
	DefaultExcludeColor    = "#FF7373"
)

// Options are the per-instance visual settings of an adapter.
type Options struct {
	SelectedColor   string  `json:"selected_color"`
	UnselectedColor string  `json:"unselected_color"`
	IncludeColor    string  `json:"include_color"`
	ExcludeColor    string  `json:"exclude_color"`
	MinimumSlice    float64 `json:"minimum_slice"`
}

// DefaultOptions returns the stock colors and slice floor.
func DefaultOptions() Options {
	return Options{
		SelectedColor:   DefaultSelectedColor,
		UnselectedColor: DefaultUnselectedColor,
		IncludeColor:    DefaultIncludeColor,
		ExcludeColor:    DefaultExcludeColor,
		MinimumSlice:    dataset.DefaultMinimumSlice,
	}
}

// WithDefaults fills every zero field from DefaultOptions. A negative
// MinimumSlice disables the slice floor.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.SelectedColor == "" {
		o.SelectedColor = d.SelectedColor
	}
	if o.UnselectedColor == "" {
		o.UnselectedColor = d.UnselectedColor
	}
	if o.IncludeColor == "" {
		o.IncludeColor = d.IncludeColor
	}
	if o.ExcludeColor == "" {
		o.ExcludeColor = d.ExcludeColor
	}
	if o.MinimumSlice == 0 {
		o.MinimumSlice = d.MinimumSlice
	}
	return o
}
