package rangesel

import (
	"errors"
	"testing"
)

func TestClampKeepsRangeInsideExtremes(t *testing.T) {
	ext := Extremes{Min: 0, Max: 30}
	inputs := []Range{
		{Min: -5, Max: 40},
		{Min: 40, Max: -5},
		{Min: 3.14159, Max: 12.96},
		{Min: -100, Max: -50},
		{Min: 31, Max: 99},
		{Min: 10, Max: 10},
	}
	for _, in := range inputs {
		got := Clamp(in, ext)
		if !(ext.Min <= got.Min && got.Min <= got.Max && got.Max <= ext.Max) {
			t.Fatalf("Clamp(%+v) = %+v; want inside [%v, %v] with min <= max", in, got, ext.Min, ext.Max)
		}
	}
}

func TestClampDragBeyondAxis(t *testing.T) {
	got := Clamp(Range{Min: -5, Max: 40}, Extremes{Min: 0, Max: 30})
	if got.Min != 0 || got.Max != 30 {
		t.Fatalf("Clamp() = %+v; want [0, 30]", got)
	}
	if Format(got.Min) != "0.0" || Format(got.Max) != "30.0" {
		t.Fatalf("Format() = %q, %q; want 0.0, 30.0", Format(got.Min), Format(got.Max))
	}
}

func TestRoundOneDecimal(t *testing.T) {
	tests := map[float64]float64{
		3.14159: 3.1,
		2.25:    2.3,
		-1.04:   -1,
		10:      10,
	}
	for in, want := range tests {
		if got := Round(in); got != want {
			t.Fatalf("Round(%v) = %v; want %v", in, got, want)
		}
	}
}

func TestDefaultRangeIsMiddleThird(t *testing.T) {
	got := DefaultRange(Extremes{Min: 0, Max: 30})
	if got.Min != 10 || got.Max != 20 || got.Mode != Include {
		t.Fatalf("DefaultRange() = %+v; want [10, 20] include", got)
	}
	got = DefaultRange(Extremes{Min: 3, Max: 4})
	if got.Min != 3.3 || got.Max != 3.7 {
		t.Fatalf("DefaultRange() = %+v; want [3.3, 3.7]", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		min, max string
		ok       bool
		want     Range
	}{
		{name: "valid", min: "1.26", max: "5", ok: true, want: Range{Min: 1.3, Max: 5, Mode: Include}},
		{name: "reversed", min: "9", max: "2", ok: true, want: Range{Min: 2, Max: 9, Mode: Include}},
		{name: "padded", min: " 2 ", max: "\t8\n", ok: true, want: Range{Min: 2, Max: 8, Mode: Include}},
		{name: "garbage min", min: "abc", max: "5"},
		{name: "trailing garbage", min: "5abc", max: "9"},
		{name: "trailing garbage max", min: "1", max: "9px"},
		{name: "missing max", min: "5", max: ""},
		{name: "nan", min: "NaN", max: "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.min, tt.max, Include)
			if !tt.ok {
				if !errors.Is(err, ErrIncomplete) {
					t.Fatalf("Parse() error = %v; want ErrIncomplete", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Parse() = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"exclude:range": Exclude,
		"exclude":       Exclude,
		"range":         Include,
		"include":       Include,
		"":              Include,
	}
	for in, want := range tests {
		if got := ParseMode(in); got != want {
			t.Fatalf("ParseMode(%q) = %q; want %q", in, got, want)
		}
	}
	if got := Exclude.Operator(); got != "exclude:range" {
		t.Fatalf("Exclude.Operator() = %q; want %q", got, "exclude:range")
	}
}

func TestFormNotifiesOnlyUserEdits(t *testing.T) {
	f := NewForm()
	var changes []Change
	unregister := f.OnChange(ChangeFunc(func(c Change) { changes = append(changes, c) }))

	f.SetMin("1")
	f.SetMax("2")
	if len(changes) != 0 {
		t.Fatalf("programmatic set notified %d handlers; want 0", len(changes))
	}

	f.Edit(FieldMode, "exclude:range", false)
	f.Edit(FieldMin, "3", true)
	if len(changes) != 2 {
		t.Fatalf("changes = %d; want 2", len(changes))
	}
	if f.Mode() != Exclude || f.Min() != "3" || !changes[1].Enter {
		t.Fatalf("form state = %q %q, changes = %+v", f.Mode(), f.Min(), changes)
	}

	unregister()
	f.Submit()
	if len(changes) != 2 {
		t.Fatalf("handler called after unregister")
	}
}
