// Package chart renders observation tables as stacked PNG line charts and
// returns them as data URIs ready for an <img src>.
package chart

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/i474232898/plot-weather/internal/dateutil"
	"github.com/i474232898/plot-weather/internal/weather"
)

// DataURIPrefix starts every rendered image.
const DataURIPrefix = "data:image/png;base64,"

const (
	defaultWidth       = 960
	defaultPanelHeight = 320
	defaultDPI         = 92.0
	phoneBaseDPI       = 72.0
	minPanelWidth      = 240
	minPanelHeight     = 120
)

// maxEffectiveDensity caps the DPI scale of dense phone screens.
const maxEffectiveDensity = 2.0

// ErrEmptyTable is returned when asked to plot zero rows.
var ErrEmptyTable = errors.New("chart: no rows to plot")

var (
	colorTempOut      = drawing.ColorFromHex("d62728")
	colorTempIn       = drawing.ColorFromHex("ff7f0e")
	colorHumid        = drawing.ColorFromHex("1f77b4")
	colorPressure     = drawing.ColorFromHex("2ca02c")
	colorPrevious     = drawing.ColorFromHex("7f7f7f")
	colorPrevHumid    = drawing.ColorFromHex("9edae5")
	colorPrevPressure = drawing.ColorFromHex("98df8a")
)

// Renderer draws temperature, humidity and pressure panels stacked
// vertically.
type Renderer struct {
	lang dateutil.Lang
}

// NewRenderer creates a Renderer labelling weekdays in lang.
func NewRenderer(lang dateutil.Lang) *Renderer {
	return &Renderer{lang: lang}
}

type geometry struct {
	width       int
	panelHeight int
	dpi         float64
}

func geometryFor(phone *PhoneImageSize) geometry {
	if phone == nil {
		return geometry{width: defaultWidth, panelHeight: defaultPanelHeight, dpi: defaultDPI}
	}
	width := min(max(phone.Width, minPanelWidth), MaxImageSide)
	height := min(max(phone.Height, 3*minPanelHeight), MaxImageSide)
	density := min(max(phone.Density, 1), maxEffectiveDensity)
	return geometry{
		width:       width,
		panelHeight: height / 3,
		dpi:         phoneBaseDPI * density,
	}
}

type panel struct {
	name   string
	unit   string
	series []gochart.Series
	lo, hi float64
}

// Render plots one table. stat feeds the temperature panel title.
func (r *Renderer) Render(t *weather.Table, stat weather.TemperatureStat, phone *PhoneImageSize) (string, error) {
	if t == nil || t.Len() == 0 {
		return "", ErrEmptyTable
	}
	w := t.Window()
	geo := geometryFor(phone)

	temp := r.newPanel("Temperature", "°C")
	temp.add(t, weather.ColTempOut, "temp_out", colorTempOut, 0, w)
	temp.add(t, weather.ColTempIn, "temp_in", colorTempIn, 0, w)

	humid := r.newPanel("Humidity", "%")
	humid.add(t, weather.ColHumid, "humid", colorHumid, 0, w)

	pressure := r.newPanel("Pressure", "hPa")
	pressure.add(t, weather.ColPressure, "pressure", colorPressure, 0, w)

	title := r.windowTitle(w)
	if summary := r.statSummary(stat, w.SingleDay()); summary != "" {
		title += "  " + summary
	}

	return r.compose(geo, w, []titled{
		{title: title, panel: temp},
		{title: humid.name, panel: humid},
		{title: pressure.name, panel: pressure},
	})
}

// RenderComparison overlays the previous-year table on the current one,
// shifting the older rows forward by one year. Each year also gets a dashed
// line at its mean.
func (r *Renderer) RenderComparison(current, previous *weather.Table, phone *PhoneImageSize) (string, error) {
	if current == nil || current.Len() == 0 {
		return "", ErrEmptyTable
	}
	w := current.Window()
	geo := geometryFor(phone)

	curLabel := r.windowTitle(w)
	temp := r.newPanel("Temperature", "°C")
	temp.addWithMean(current, weather.ColTempOut, curLabel, colorTempOut, 0, w)

	humid := r.newPanel("Humidity", "%")
	humid.addWithMean(current, weather.ColHumid, curLabel, colorHumid, 0, w)

	pressure := r.newPanel("Pressure", "hPa")
	pressure.addWithMean(current, weather.ColPressure, curLabel, colorPressure, 0, w)

	title := curLabel
	if previous != nil && previous.Len() > 0 {
		prevLabel := r.windowTitle(previous.Window())
		temp.addWithMean(previous, weather.ColTempOut, prevLabel, colorPrevious, 1, w)
		humid.addWithMean(previous, weather.ColHumid, prevLabel, colorPrevHumid, 1, w)
		pressure.addWithMean(previous, weather.ColPressure, prevLabel, colorPrevPressure, 1, w)
		title += " / " + prevLabel
	}

	return r.compose(geo, w, []titled{
		{title: title, panel: temp},
		{title: humid.name, panel: humid},
		{title: pressure.name, panel: pressure},
	})
}

type titled struct {
	title string
	panel *panel
}

func (r *Renderer) newPanel(name, unit string) *panel {
	return &panel{name: name, unit: unit, lo: math.Inf(1), hi: math.Inf(-1)}
}

// add appends a column as a time series, shifted forward by shiftYears, and
// returns the plotted values. NaN readings and points falling outside within
// after the shift are left out.
func (p *panel) add(t *weather.Table, column, label string, color drawing.Color, shiftYears int, within weather.TimeWindow) []float64 {
	values, err := t.Column(column)
	if err != nil {
		return nil
	}
	index := t.Index()

	xs := make([]time.Time, 0, len(values))
	ys := make([]float64, 0, len(values))
	for i, v := range values {
		x := index[i].AddDate(shiftYears, 0, 0)
		if math.IsNaN(v) || !within.Contains(x) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, v)
		p.lo = math.Min(p.lo, v)
		p.hi = math.Max(p.hi, v)
	}
	if len(xs) == 0 {
		return nil
	}

	p.series = append(p.series, gochart.TimeSeries{
		Name:    label,
		XValues: xs,
		YValues: ys,
		Style: gochart.Style{
			StrokeColor: color,
			StrokeWidth: 1.5,
		},
	})
	return ys
}

func (p *panel) addWithMean(t *weather.Table, column, label string, color drawing.Color, shiftYears int, within weather.TimeWindow) {
	p.addMean(p.add(t, column, label, color, shiftYears, within), label, color, within)
}

// addMean draws a dashed horizontal line across within at the mean of values.
func (p *panel) addMean(values []float64, label string, color drawing.Color, within weather.TimeWindow) {
	avg, ok := meanOf(values)
	if !ok {
		return
	}
	p.series = append(p.series, gochart.TimeSeries{
		Name:    fmt.Sprintf("%s avg %.1f", label, avg),
		XValues: []time.Time{within.From, within.To},
		YValues: []float64{avg, avg},
		Style: gochart.Style{
			StrokeColor:     color,
			StrokeWidth:     1,
			StrokeDashArray: []float64{5, 3},
		},
	})
}

func meanOf(values []float64) (float64, bool) {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (r *Renderer) compose(geo geometry, w weather.TimeWindow, panels []titled) (string, error) {
	images := make([]image.Image, 0, len(panels))
	for _, tp := range panels {
		img, err := r.renderPanel(geo, w, tp.title, tp.panel)
		if err != nil {
			return "", err
		}
		images = append(images, img)
	}

	var height int
	for _, img := range images {
		height += img.Bounds().Dy()
	}
	canvas := image.NewRGBA(image.Rect(0, 0, geo.width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	var y int
	for _, img := range images {
		b := img.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), img, b.Min, draw.Over)
		y += b.Dy()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return "", fmt.Errorf("encode chart: %w", err)
	}
	return DataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (r *Renderer) renderPanel(geo geometry, w weather.TimeWindow, title string, p *panel) (image.Image, error) {
	lo, hi := p.lo, p.hi
	if len(p.series) == 0 {
		lo, hi = 0, 1
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 1
	}

	graph := gochart.Chart{
		Title:  title,
		Width:  geo.width,
		Height: geo.panelHeight,
		DPI:    geo.dpi,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: gochart.XAxis{
			ValueFormatter: r.timeFormatter(w),
			Range: &gochart.ContinuousRange{
				Min: gochart.TimeToFloat64(w.From),
				Max: gochart.TimeToFloat64(w.To),
			},
		},
		YAxis: gochart.YAxis{
			Name: p.unit,
			Range: &gochart.ContinuousRange{
				Min: lo - pad,
				Max: hi + pad,
			},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1f", f)
				}
				return ""
			},
		},
		Series: p.series,
	}
	if len(p.series) == 0 {
		// go-chart refuses to render a chart without series.
		graph.Series = []gochart.Series{gochart.ContinuousSeries{
			XValues: []float64{gochart.TimeToFloat64(w.From), gochart.TimeToFloat64(w.To)},
			YValues: []float64{lo, lo},
			Style:   gochart.Style{StrokeColor: drawing.ColorWhite},
		}}
	} else {
		graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render %s chart: %w", p.name, err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode %s chart: %w", p.name, err)
	}
	return img, nil
}

// timeFormatter labels the x axis: clock time for a single day, weekday
// labels for day ranges, day of month otherwise.
func (r *Renderer) timeFormatter(w weather.TimeWindow) gochart.ValueFormatter {
	loc := w.From.Location()
	return func(v interface{}) string {
		f, ok := v.(float64)
		if !ok {
			return ""
		}
		t := time.Unix(0, int64(f)).In(loc)
		switch w.Kind.(type) {
		case weather.Today:
			return t.Format(dateutil.LayoutTimeHM)
		case weather.DayRange:
			label, err := dateutil.DayLabel(t.Format(dateutil.LayoutDate), true, r.lang)
			if err != nil {
				return ""
			}
			return label
		default:
			return fmt.Sprintf("%d", t.Day())
		}
	}
}

func (r *Renderer) windowTitle(w weather.TimeWindow) string {
	switch k := w.Kind.(type) {
	case weather.Today:
		return dateutil.DateWithWeekday(w.From, r.lang)
	case weather.DayRange:
		last := w.To.AddDate(0, 0, -1)
		return fmt.Sprintf("%s - %s", w.From.Format(dateutil.LayoutDate), dateutil.DateWithWeekday(last, r.lang))
	case nil:
		return w.String()
	default:
		return k.String()
	}
}

func (r *Renderer) statSummary(stat weather.TemperatureStat, singleDay bool) string {
	if stat.IsEmpty() {
		return ""
	}
	v := stat.View(singleDay)
	return fmt.Sprintf("min %.1f (%s)  max %.1f (%s)  avg %.1f",
		*v.Min.Temper, *v.Min.AppearTime, *v.Max.Temper, *v.Max.AppearTime, *v.Average)
}
