package bus

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dgnsrekt/chartsync/internal/dataset"
	"github.com/dgnsrekt/chartsync/internal/rangesel"
)

// Value is a chart's full selection as carried on the bus. Categorical charts
// fill Categories; range charts fill Range. On the wire a categorical value
// is a JSON array of strings and a range value is an object.
type Value struct {
	Categories []string
	Range      *rangesel.Range
}

// Categories builds a categorical value. A nil slice encodes as [].
func Categories(c ...string) Value {
	if c == nil {
		c = []string{}
	}
	return Value{Categories: c}
}

// RangeValue builds a range value.
func RangeValue(r rangesel.Range) Value {
	return Value{Range: &r}
}

// IsRange reports whether v carries a range.
func (v Value) IsRange() bool { return v.Range != nil }

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Range != nil {
		return json.Marshal(v.Range)
	}
	c := v.Categories
	if c == nil {
		c = []string{}
	}
	return json.Marshal(c)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*v = Value{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		v.Categories = []string{}
		return nil
	}
	switch b[0] {
	case '[':
		var raw []any
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("bus: value: %w", err)
		}
		v.Categories = make([]string, 0, len(raw))
		for _, item := range raw {
			v.Categories = append(v.Categories, dataset.Label(item))
		}
		return nil
	case '{':
		var wire struct {
			Min      *float64 `json:"min"`
			Max      *float64 `json:"max"`
			Mode     string   `json:"mode"`
			Operator string   `json:"operator"`
		}
		if err := json.Unmarshal(b, &wire); err != nil {
			return fmt.Errorf("bus: value: %w", err)
		}
		if wire.Min == nil || wire.Max == nil {
			return fmt.Errorf("bus: value: range needs min and max")
		}
		mode := wire.Mode
		if mode == "" {
			mode = wire.Operator
		}
		v.Range = &rangesel.Range{Min: *wire.Min, Max: *wire.Max, Mode: rangesel.ParseMode(mode)}
		return nil
	default:
		return fmt.Errorf("bus: value: want array or object, got %q", b[0])
	}
}
