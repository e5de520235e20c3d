package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// Series is an ordered list of labelled values.
type Series struct {
	Labels []string
	Values []int
}

// Len returns the number of points.
func (s Series) Len() int {
	return len(s.Labels)
}

func (s Series) validate() error {
	if len(s.Labels) != len(s.Values) {
		return fmt.Errorf("series has %d labels for %d values", len(s.Labels), len(s.Values))
	}
	return nil
}

func (s Series) max() int {
	m := 0
	for _, v := range s.Values {
		if v > m {
			m = v
		}
	}
	return m
}

// ChartRenderer draws simple single-series charts into landscape PDF pages.
type ChartRenderer struct {
	// MaxBars caps the bar chart; remaining points are omitted. Zero means no cap.
	MaxBars int
}

// NewChartRenderer constructs a renderer.
func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{MaxBars: 40}
}

const (
	chartMargin   = 15.0
	labelColumn   = 55.0
	barGap        = 1.5
	axisFontSize  = 8.0
	titleFontSize = 14.0
)

// BarChart renders horizontal bars, one per label, in series order.
func (r *ChartRenderer) BarChart(title, valueAxis string, series Series) ([]byte, error) {
	if err := series.validate(); err != nil {
		return nil, err
	}
	if r.MaxBars > 0 && series.Len() > r.MaxBars {
		series = Series{Labels: series.Labels[:r.MaxBars], Values: series.Values[:r.MaxBars]}
	}

	pdf, tr := newChartPage(title)
	pageW, pageH := pdf.GetPageSize()
	top := chartMargin + 15
	plotX := chartMargin + labelColumn
	plotW := pageW - plotX - chartMargin - 10
	plotH := pageH - top - chartMargin - 10

	if series.Len() == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Text(plotX, top+10, "no data")
		return output(pdf)
	}

	maxValue := series.max()
	if maxValue == 0 {
		maxValue = 1
	}
	barH := plotH/float64(series.Len()) - barGap

	pdf.SetFont("Arial", "", axisFontSize)
	pdf.SetFillColor(66, 114, 196)
	for i, label := range series.Labels {
		y := top + float64(i)*(barH+barGap)
		w := plotW * float64(series.Values[i]) / float64(maxValue)
		pdf.SetXY(chartMargin, y)
		pdf.CellFormat(labelColumn-2, barH, tr(label), "", 0, "R", false, 0, "")
		if w > 0 {
			pdf.Rect(plotX, y, w, barH, "F")
		}
		pdf.SetXY(plotX+w+1, y)
		pdf.CellFormat(15, barH, strconv.Itoa(series.Values[i]), "", 0, "L", false, 0, "")
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(plotX, top, plotX, top+plotH)
	if valueAxis != "" {
		pdf.Text(plotX+plotW/2-pdf.GetStringWidth(valueAxis)/2, top+plotH+8, tr(valueAxis))
	}
	return output(pdf)
}

// LineChart renders the series as a polyline over evenly spaced labels.
func (r *ChartRenderer) LineChart(title, valueAxis string, series Series) ([]byte, error) {
	if err := series.validate(); err != nil {
		return nil, err
	}

	pdf, tr := newChartPage(title)
	pageW, pageH := pdf.GetPageSize()
	top := chartMargin + 15
	plotX := chartMargin + 15
	plotW := pageW - plotX - chartMargin
	plotH := pageH - top - chartMargin - 20

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.2)
	pdf.Line(plotX, top, plotX, top+plotH)
	pdf.Line(plotX, top+plotH, plotX+plotW, top+plotH)

	if series.Len() == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Text(plotX+5, top+10, "no data")
		return output(pdf)
	}

	maxValue := series.max()
	if maxValue == 0 {
		maxValue = 1
	}

	pdf.SetFont("Arial", "", axisFontSize)
	for _, tick := range []int{0, maxValue / 2, maxValue} {
		y := top + plotH - plotH*float64(tick)/float64(maxValue)
		label := strconv.Itoa(tick)
		pdf.Text(plotX-2-pdf.GetStringWidth(label), y+1, label)
	}
	if valueAxis != "" {
		pdf.TransformBegin()
		pdf.TransformRotate(90, chartMargin, top+plotH/2)
		pdf.Text(chartMargin, top+plotH/2, tr(valueAxis))
		pdf.TransformEnd()
	}

	step := plotW
	if series.Len() > 1 {
		step = plotW / float64(series.Len()-1)
	}
	labelEvery := series.Len()/12 + 1

	pdf.SetDrawColor(66, 114, 196)
	pdf.SetFillColor(66, 114, 196)
	pdf.SetLineWidth(0.6)
	var prevX, prevY float64
	for i, value := range series.Values {
		x := plotX
		if series.Len() > 1 {
			x = plotX + float64(i)*step
		}
		y := top + plotH - plotH*float64(value)/float64(maxValue)
		if i > 0 {
			pdf.Line(prevX, prevY, x, y)
		}
		pdf.Circle(x, y, 0.8, "F")
		if i%labelEvery == 0 {
			label := tr(series.Labels[i])
			pdf.Text(x-pdf.GetStringWidth(label)/2, top+plotH+5, label)
		}
		prevX, prevY = x, y
	}
	return output(pdf)
}

func newChartPage(title string) (*gofpdf.Fpdf, func(string) string) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(chartMargin, chartMargin, chartMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if title != "" {
		pdf.SetFont("Arial", "B", titleFontSize)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	}
	return pdf, tr
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
