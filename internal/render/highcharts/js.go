package highcharts

import (
	"encoding/json"
	"strconv"

	"github.com/dgnsrekt/chartsync/internal/render"
)

const bandID = "chartsync-range"

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func wrapJSEval(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_message:String(err && err.message || err)});
}
})()`
}

// jsChart resolves the chart of surface id into `chart` or fails the eval.
func jsChart(id string) string {
	return `var reg = window.__chartsync || {};
var chart = reg[` + jsString(id) + `];
if (!chart) return JSON.stringify({ok:false,error_message:"surface not found"});`
}

const jsOK = `return JSON.stringify({ok:true});`

// jsInstall sets up the page registry. Safe to run more than once.
func jsInstall() string {
	return wrapJSEval(`if (typeof Highcharts === "undefined") return JSON.stringify({ok:false,error_message:"Highcharts is not loaded"});
window.__chartsync = window.__chartsync || {};
` + jsOK)
}

// chartConfig is the static part of the Highcharts options. Event callbacks
// are attached in JS by jsBuild.
func chartConfig(spec render.Spec) map[string]any {
	cfg := map[string]any{
		"credits": map[string]any{"enabled": false},
		"legend":  map[string]any{"enabled": false},
		"title":   map[string]any{"text": spec.Title},
	}
	switch spec.Kind {
	case render.Pie:
		data := make([]map[string]any, len(spec.Categories))
		for i, c := range spec.Categories {
			data[i] = map[string]any{"name": c, "y": spec.Values[i], "color": spec.Color, "tooltip": spec.TooltipAt(i)}
		}
		cfg["chart"] = map[string]any{"type": "pie"}
		cfg["series"] = []any{map[string]any{"data": data}}
	case render.Bar:
		data := make([]map[string]any, len(spec.Values))
		for i, v := range spec.Values {
			data[i] = map[string]any{"y": v, "color": spec.Color, "tooltip": spec.TooltipAt(i)}
		}
		cfg["chart"] = map[string]any{"type": "column", "marginLeft": 100, "marginBottom": 50}
		cfg["xAxis"] = map[string]any{
			"categories": spec.Categories,
			"title":      map[string]any{"text": spec.XAxisTitle},
			"labels":     map[string]any{"align": "left", "rotation": 90, "y": 10},
		}
		cfg["yAxis"] = map[string]any{"min": 0, "title": map[string]any{"text": spec.YAxisTitle}}
		cfg["plotOptions"] = map[string]any{"column": map[string]any{
			"dataLabels":     map[string]any{"enabled": spec.DataLabels},
			"cursor":         "pointer",
			"stickyTracking": false,
		}}
		cfg["series"] = []any{map[string]any{"data": data}}
	case render.Line:
		chart := map[string]any{"type": "line"}
		if spec.ZoomX {
			chart["zoomType"] = "x"
		}
		cfg["chart"] = chart
		cfg["xAxis"] = map[string]any{"min": 0, "title": map[string]any{"text": spec.XAxisTitle}}
		cfg["yAxis"] = map[string]any{"min": 0, "title": map[string]any{"text": spec.YAxisTitle}}
		cfg["series"] = []any{map[string]any{"data": spec.Points, "color": spec.Color}}
	}
	return cfg
}

// jsBuild renders spec into a new container and registers it under id. Point
// clicks, hovers, bar label clicks and x selections call the binding.
func jsBuild(id string, spec render.Spec) string {
	return wrapJSEval(`var reg = window.__chartsync;
if (!reg) return JSON.stringify({ok:false,error_message:"page not installed"});
var id = ` + jsString(id) + `;
var el = document.createElement("div");
el.id = "chartsync-" + id;
document.body.appendChild(el);
var emit = function(kind, index, min, max) {
  window.` + BindingName + `(JSON.stringify({surface:id,kind:kind,index:index,min:min||0,max:max||0}));
};
var cfg = ` + jsJSON(chartConfig(spec)) + `;
cfg.plotOptions = cfg.plotOptions || {};
cfg.plotOptions.series = {point:{events:{
  click: function() { emit("click", this.index); return false; },
  mouseOver: function() { emit("hover_in", this.index); },
  mouseOut: function() { emit("hover_out", this.index); }
}}};
if (` + jsJSON(len(spec.Tooltips) > 0) + `) {
  cfg.tooltip = {formatter: function() { return this.point.options.tooltip; }};
}
// Labels are recreated on redraw, so clicks are bound again each time.
var bindLabels = function(chart) {
  if (!` + jsJSON(spec.DataLabels) + `) return;
  chart.series[0].points.forEach(function(p) {
    var dl = p.dataLabel;
    if (!dl || dl.chartsyncBound) return;
    dl.on("click", function() { emit("label_click", p.index); });
    dl.css({color:p.color});
    dl.chartsyncBound = true;
  });
};
cfg.chart.events = {
  load: function() { bindLabels(this); },
  redraw: function() { bindLabels(this); },
  selection: function(e) {
    if (e.xAxis && e.xAxis[0]) emit("range_select", 0, e.xAxis[0].min, e.xAxis[0].max);
    return false;
  }
};
reg[id] = Highcharts.chart(el, cfg);
` + jsOK)
}

func jsPoint(index int) string {
	return `var p = chart.series[0].points[` + strconv.Itoa(index) + `];
if (!p) return JSON.stringify({ok:false,error_message:"point not found"});`
}

func jsSetPointColor(id string, index int, color string) string {
	return wrapJSEval(jsChart(id) + "\n" + jsPoint(index) + `
p.update({color:` + jsString(color) + `}, false);
` + jsOK)
}

func jsSetLabelColor(id string, index int, color string) string {
	return wrapJSEval(jsChart(id) + "\n" + jsPoint(index) + `
if (p.dataLabel) {
  p.dataLabel.css({color:` + jsString(color) + `});
  if (p.dataLabel.element) p.dataLabel.element.setAttribute("fill", ` + jsString(color) + `);
}
` + jsOK)
}

// jsSetHover moves the hover point; a negative index clears hover state.
func jsSetHover(id string, index int) string {
	if index < 0 {
		return wrapJSEval(jsChart(id) + `
chart.series[0].points.forEach(function(p) { p.setState(""); });
chart.hoverPoint = null;
if (chart.tooltip) chart.tooltip.hide(0);
` + jsOK)
	}
	return wrapJSEval(jsChart(id) + "\n" + jsPoint(index) + `
p.setState("hover");
chart.hoverPoint = p;
chart.hoverSeries = chart.series[0];
if (chart.tooltip) chart.tooltip.refresh(p);
` + jsOK)
}

func jsXExtremes(id string) string {
	return wrapJSEval(jsChart(id) + `
var e = chart.xAxis[0].getExtremes();
var min = e.min, max = e.max;
if (min === undefined || min === null) { min = e.dataMin; max = e.dataMax; }
if (min === undefined || min === null) { min = 0; max = 0; }
return JSON.stringify({ok:true,data:{min:min,max:max}});`)
}

func jsAddPlotBand(id string, b render.PlotBand) string {
	return wrapJSEval(jsChart(id) + `
chart.xAxis[0].addPlotBand({id:` + jsString(bandID) + `,from:` + jsNumber(b.From) + `,to:` + jsNumber(b.To) + `,color:` + jsString(b.Color) + `});
` + jsOK)
}

func jsRemovePlotBands(id string) string {
	return wrapJSEval(jsChart(id) + `
chart.xAxis[0].removePlotBand(` + jsString(bandID) + `);
` + jsOK)
}

// jsRedraw sets the requested dirty flags and redraws.
func jsRedraw(id string, parts []render.Dirty) string {
	body := jsChart(id) + "\n"
	for _, p := range parts {
		switch p {
		case render.DirtyChart:
			body += "chart.isDirty = true; chart.isDirtyBox = true;\n"
		case render.DirtyXAxis:
			body += "if (chart.xAxis[0]) chart.xAxis[0].isDirty = true;\n"
		case render.DirtyYAxis:
			body += "if (chart.yAxis[0]) chart.yAxis[0].isDirty = true;\n"
		case render.DirtySeries:
			body += "chart.series[0].isDirty = true;\n"
		}
	}
	return wrapJSEval(body + "chart.redraw();\n" + jsOK)
}

func jsDestroy(id string) string {
	return wrapJSEval(jsChart(id) + `
var el = chart.renderTo;
chart.destroy();
delete reg[` + jsString(id) + `];
if (el && el.parentNode) el.parentNode.removeChild(el);
` + jsOK)
}
