package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/chartsync/internal/dataset"
	"github.com/dgnsrekt/chartsync/internal/render"
)

// PreloadView is a concept view as written in YAML. pk and labels may be
// numbers or strings; a null label becomes "No Data".
type PreloadView struct {
	PK     any     `yaml:"pk"`
	Title  string  `yaml:"title"`
	XAxis  string  `yaml:"xaxis"`
	YAxis  string  `yaml:"yaxis"`
	Coords [][]any `yaml:"coords"`
}

// PreloadEntry describes one chart to mount at startup.
type PreloadEntry struct {
	ConceptID any         `yaml:"concept_id"`
	Kind      string      `yaml:"kind"`
	View      PreloadView `yaml:"view"`
}

// Preload is the top-level YAML document of CHARTSYNC_PRELOAD_FILE.
type Preload struct {
	Charts []PreloadEntry `yaml:"charts"`
}

// PreloadChart is a validated entry ready to mount.
type PreloadChart struct {
	ConceptID string
	Kind      render.Kind
	View      dataset.View
}

// LoadPreload reads and validates a preload file. Returns an
// os.ErrNotExist-wrapped error if the file is absent.
func LoadPreload(path string) ([]PreloadChart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preload config: %w", err)
	}
	return ParsePreload(data)
}

// ParsePreload validates a preload document: every entry needs concept_id,
// a known kind and view.pk, and coords must be [label, value] pairs.
func ParsePreload(data []byte) ([]PreloadChart, error) {
	var doc Preload
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("preload config: %w", err)
	}
	out := make([]PreloadChart, 0, len(doc.Charts))
	for i, e := range doc.Charts {
		conceptID := string(dataset.IDOf(e.ConceptID))
		if conceptID == "" {
			return nil, fmt.Errorf("preload config: charts[%d] missing concept_id", i)
		}
		kind, err := render.ParseKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("preload config: charts[%d]: %w", i, err)
		}
		pk := dataset.IDOf(e.View.PK)
		if pk == "" {
			return nil, fmt.Errorf("preload config: charts[%d] missing view.pk", i)
		}
		coords, err := dataset.CoordsOf(e.View.Coords)
		if err != nil {
			return nil, fmt.Errorf("preload config: charts[%d]: %w", i, err)
		}
		out = append(out, PreloadChart{
			ConceptID: conceptID,
			Kind:      kind,
			View: dataset.View{
				PK:     pk,
				Title:  e.View.Title,
				XAxis:  e.View.XAxis,
				YAxis:  e.View.YAxis,
				Coords: coords,
			},
		})
	}
	return out, nil
}
