// Package export renders a chart view as a standalone ECharts HTML page.
// Pages carry the same colors and range band as the live chart, so a saved
// snapshot shows what the user had selected.
package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/dgnsrekt/chartsync/internal/chart"
	"github.com/dgnsrekt/chartsync/internal/render"
)

const (
	pageWidth  = "900px"
	pageHeight = "500px"
)

type renderer interface {
	Render(w io.Writer) error
}

// Render writes v as an HTML page to w.
func Render(w io.Writer, v chart.View) error {
	var r renderer
	switch v.Kind {
	case render.Pie:
		r = pie(v)
	case render.Bar:
		r = bar(v)
	case render.Line:
		r = line(v)
	default:
		return fmt.Errorf("export: unknown kind %q", v.Kind)
	}
	if err := r.Render(w); err != nil {
		return fmt.Errorf("export: render %s: %w", v.Key, err)
	}
	return nil
}

// HTML is Render into a byte slice.
func HTML(v chart.View) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func globals(v chart.View) []charts.GlobalOpts {
	title := v.Title
	if title == "" {
		title = v.Key
	}
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     pageWidth,
			Height:    pageHeight,
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	}
}

func colorAt(v chart.View, i int) string {
	if i < len(v.Colors) {
		return v.Colors[i]
	}
	return ""
}

// tooltipAt is the per-item hover text. Nil keeps the default tooltip.
func tooltipAt(v chart.View, i int) *opts.Tooltip {
	if i >= len(v.Tooltips) || v.Tooltips[i] == "" {
		return nil
	}
	return &opts.Tooltip{Show: opts.Bool(true), Formatter: types.FuncStr(v.Tooltips[i])}
}

func pie(v chart.View) *charts.Pie {
	c := charts.NewPie()
	c.SetGlobalOptions(globals(v)...)
	data := make([]opts.PieData, len(v.Categories))
	for i, name := range v.Categories {
		data[i] = opts.PieData{
			Name:      name,
			Value:     v.Values[i],
			ItemStyle: &opts.ItemStyle{Color: colorAt(v, i)},
			Tooltip:   tooltipAt(v, i),
		}
	}
	c.AddSeries(v.YAxis, data, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))
	return c
}

func bar(v chart.View) *charts.Bar {
	c := charts.NewBar()
	c.SetGlobalOptions(append(globals(v),
		charts.WithXAxisOpts(opts.XAxis{Name: v.XAxis, AxisLabel: &opts.AxisLabel{Rotate: 90, Interval: "0"}}),
		charts.WithYAxisOpts(opts.YAxis{Name: v.YAxis, Min: 0}),
	)...)
	c.SetXAxis(v.Categories)
	data := make([]opts.BarData, len(v.Values))
	for i, val := range v.Values {
		color := colorAt(v, i)
		data[i] = opts.BarData{
			Name:      v.Categories[i],
			Value:     val,
			ItemStyle: &opts.ItemStyle{Color: color},
			Label:     &opts.Label{Show: opts.Bool(true), Color: color},
			Tooltip:   tooltipAt(v, i),
		}
	}
	c.AddSeries(v.YAxis, data)
	return c
}

func line(v chart.View) *charts.Line {
	c := charts.NewLine()
	c.SetGlobalOptions(append(globals(v),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: v.XAxis}),
		charts.WithYAxisOpts(opts.YAxis{Name: v.YAxis, Min: 0}),
	)...)
	data := make([]opts.LineData, len(v.Points))
	for i, p := range v.Points {
		data[i] = opts.LineData{Value: []float64{p[0], p[1]}}
	}
	series := []charts.SeriesOpts{}
	if len(v.Colors) > 0 {
		series = append(series, charts.WithItemStyleOpts(opts.ItemStyle{Color: v.Colors[0]}))
	}
	if v.Band != nil {
		name := "range"
		if v.Selection.Range != nil {
			name = string(v.Selection.Range.Mode)
		}
		series = append(series, charts.WithMarkAreaData([]opts.MarkAreaData{
			{
				Name:  name,
				XAxis: v.Band.From,
				MarkAreaStyle: opts.MarkAreaStyle{
					ItemStyle: &opts.ItemStyle{Color: v.Band.Color, Opacity: opts.Float(0.6)},
				},
			},
			{XAxis: v.Band.To},
		}))
	}
	c.AddSeries(v.YAxis, data, series...)
	return c
}
