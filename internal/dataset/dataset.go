package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// NoData replaces labels that stringify to "null".
const NoData Category = "No Data"

// DefaultMinimumSlice is the smallest fraction of a pie a slice is drawn with.
const DefaultMinimumSlice = 0.07

// Category is the normalized label of a data point and the unit of selection.
type Category string

// Normalize stringifies a raw label and maps the literal "null" to NoData.
func Normalize(label any) Category {
	s := Label(label)
	if s == "null" {
		return NoData
	}
	return Category(s)
}

// Label renders a decoded JSON label the way the page would print it: whole
// numbers without exponent or fraction, nil as "null".
func Label(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// DataPoint is one rendered element. Value is what the backend draws and may
// be raised by AdjustSlices; the display value never changes.
type DataPoint struct {
	Category Category
	Value    float64
	display  float64
}

// NewDataPoint builds a point whose rendered and display values start equal.
func NewDataPoint(c Category, v float64) DataPoint {
	return DataPoint{Category: c, Value: v, display: v}
}

// DisplayValue returns the true value, used for tooltips and labels.
func (p DataPoint) DisplayValue() float64 { return p.display }

// ID is a record primary key. Views send it either as a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("dataset: pk: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Coord is a [label, value] pair as sent by the view endpoint.
type Coord struct {
	Label any
	Value float64
}

func (c *Coord) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("dataset: coord: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("dataset: coord: want [label, value], got %d elements", len(pair))
	}
	var label any
	if err := json.Unmarshal(pair[0], &label); err != nil {
		return fmt.Errorf("dataset: coord label: %w", err)
	}
	var value *float64
	if err := json.Unmarshal(pair[1], &value); err != nil {
		return fmt.Errorf("dataset: coord value: %w", err)
	}
	c.Label = label
	if value != nil {
		c.Value = *value
	}
	return nil
}

func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Label, c.Value})
}

// View is the chart payload of a concept definition.
type View struct {
	PK     ID      `json:"pk"`
	Title  string  `json:"title"`
	XAxis  string  `json:"xaxis"`
	YAxis  string  `json:"yaxis"`
	Coords []Coord `json:"coords"`
}

// Dataset is the normalized, ordered input of one chart instance.
type Dataset struct {
	ConceptID string
	PK        string
	Key       string
	Title     string
	XAxis     string
	YAxis     string
	Points    []DataPoint
}

// IdentityKey addresses every bus message of a chart instance.
func IdentityKey(conceptID, pk string) string {
	return conceptID + "_" + pk
}

// New normalizes every label of the view. It must run before anything else
// reads the points.
func New(conceptID string, v View) *Dataset {
	points := make([]DataPoint, 0, len(v.Coords))
	for _, c := range v.Coords {
		points = append(points, NewDataPoint(Normalize(c.Label), c.Value))
	}
	return &Dataset{
		ConceptID: conceptID,
		PK:        string(v.PK),
		Key:       IdentityKey(conceptID, string(v.PK)),
		Title:     v.Title,
		XAxis:     v.XAxis,
		YAxis:     v.YAxis,
		Points:    points,
	}
}

// Categories returns the categories in point order.
func (d *Dataset) Categories() []Category {
	out := make([]Category, len(d.Points))
	for i, p := range d.Points {
		out[i] = p.Category
	}
	return out
}

// Index returns the position of the first point with category c, or -1.
func (d *Dataset) Index(c Category) int {
	for i, p := range d.Points {
		if p.Category == c {
			return i
		}
	}
	return -1
}

// Total sums the display values.
func (d *Dataset) Total() float64 {
	var sum float64
	for _, p := range d.Points {
		sum += p.display
	}
	return sum
}

// IDOf converts a decoded pk (number or string) to an ID.
func IDOf(v any) ID {
	if v == nil {
		return ""
	}
	return ID(Label(v))
}

// CoordsOf converts already-decoded [label, value] pairs, as produced by a
// generic JSON or YAML decoder, into coords.
func CoordsOf(pairs [][]any) ([]Coord, error) {
	out := make([]Coord, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("dataset: coord[%d]: want [label, value], got %d elements", i, len(pair))
		}
		value, err := toFloat(pair[1])
		if err != nil {
			return nil, fmt.Errorf("dataset: coord[%d] value: %w", i, err)
		}
		out = append(out, Coord{Label: pair[0], Value: value})
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
