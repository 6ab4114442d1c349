package export

import (
	"bytes"
	"cmp"
	"fmt"
	"image/color"
	"math"
	"slices"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/recset/internal/dataset"
)

// Plot geometry.
const (
	plotWidth     = 1400
	plotHeight    = 1000
	histogramBins = 30
	topSegments   = 8
)

// Panel is one chart of the distributions figure.
type Panel struct {
	Title      string
	XLabel     string
	YLabel     string
	Labels     []string
	Values     []float64
	Horizontal bool
	Fill       color.Color
}

var (
	skyBlue    = color.RGBA{0x87, 0xce, 0xeb, 0xff}
	lightGreen = color.RGBA{0x90, 0xee, 0x90, 0xff}
	lightCoral = color.RGBA{0xf0, 0x80, 0x80, 0xff}
	plum       = color.RGBA{0xdd, 0xa0, 0xdd, 0xff}
)

// DistributionPanels computes the four charts of the quality report from
// the train partition: engagement counts, user budget level and item
// popularity histograms, and the most frequent segments.
func DistributionPanels(train *dataset.Dataset) []Panel {
	scores := map[float64]int{}
	for _, v := range train.Numbers(dataset.ColEngagementScore) {
		scores[v]++
	}
	keys := make([]float64, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	engagement := Panel{Title: "Engagement Score Distribution", XLabel: "Engagement Score", YLabel: "Count", Fill: skyBlue}
	for _, k := range keys {
		engagement.Labels = append(engagement.Labels, ScoreKey(k))
		engagement.Values = append(engagement.Values, float64(scores[k]))
	}

	budget := histogramPanel(train, "user_budget_level", "User Budget Level Distribution", "Budget Level [0-1]", lightGreen)
	popularity := histogramPanel(train, dataset.ColItemPopularityScore, "Item Popularity Score Distribution", "Popularity Score", lightCoral)

	segments := Panel{Title: fmt.Sprintf("User Segment Distribution (Top %d)", topSegments), XLabel: "Count", YLabel: "Segment", Horizontal: true, Fill: plum}
	if train.Has(dataset.ColPrimarySegment) {
		for _, c := range topValues(train, dataset.ColPrimarySegment, topSegments) {
			segments.Labels = append(segments.Labels, c.value)
			segments.Values = append(segments.Values, float64(c.count))
		}
	}
	return []Panel{engagement, budget, popularity, segments}
}

func histogramPanel(ds *dataset.Dataset, column, title, xlabel string, fill color.Color) Panel {
	p := Panel{Title: title, XLabel: xlabel, YLabel: "Count", Fill: fill}
	if !ds.Has(column) {
		return p
	}
	values := ds.Numbers(column)
	if len(values) == 0 {
		return p
	}
	slices.Sort(values)
	lo, hi := values[0], values[len(values)-1]
	if hi == lo {
		hi = lo + 1
	}
	dividers := make([]float64, histogramBins+1)
	step := (hi - lo) / histogramBins
	for i := range dividers {
		dividers[i] = lo + float64(i)*step
	}
	// The last bin must include the maximum.
	dividers[histogramBins] = math.Nextafter(hi, math.Inf(1))

	p.Values = stat.Histogram(nil, dividers, values, nil)
	for i := range histogramBins {
		p.Labels = append(p.Labels, fmt.Sprintf("%.2f", dividers[i]))
	}
	return p
}

type valueCount struct {
	value string
	count int
}

// topValues returns the n most frequent non-null values of a string
// column, most frequent first, ties by value.
func topValues(ds *dataset.Dataset, column string, n int) []valueCount {
	col := dataset.MustLookup(column)
	counts := map[string]int{}
	for _, r := range ds.Rows {
		if v, ok := col.Text(r); ok {
			counts[v]++
		}
	}
	out := make([]valueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, valueCount{v, c})
	}
	slices.SortFunc(out, func(a, b valueCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.value, b.value)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type fonts struct {
	regular, bold font.Face
}

func loadFonts() (fonts, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fonts{}, fmt.Errorf("parse font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return fonts{}, fmt.Errorf("parse font: %w", err)
	}
	opts := func(size float64) *truetype.Options {
		return &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone}
	}
	return fonts{regular: truetype.NewFace(regular, opts(13)), bold: truetype.NewFace(bold, opts(17))}, nil
}

// RenderPanels draws panels on a 2×2 grid and returns the PNG bytes.
func RenderPanels(panels []Panel) ([]byte, error) {
	f, err := loadFonts()
	if err != nil {
		return nil, err
	}
	dc := gg.NewContext(plotWidth, plotHeight)
	dc.SetColor(color.White)
	dc.Clear()

	cellW, cellH := float64(plotWidth)/2, float64(plotHeight)/2
	for i, p := range panels {
		x := float64(i%2) * cellW
		y := float64(i/2) * cellH
		drawPanel(dc, f, p, x, y, cellW, cellH)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func drawPanel(dc *gg.Context, f fonts, p Panel, x, y, w, h float64) {
	const (
		marginLeft   = 110.0
		marginRight  = 30.0
		marginTop    = 50.0
		marginBottom = 60.0
	)
	dc.SetColor(color.Black)
	dc.SetFontFace(f.bold)
	dc.DrawStringAnchored(p.Title, x+w/2, y+25, 0.5, 0.5)

	left, top := x+marginLeft, y+marginTop
	plotW, plotH := w-marginLeft-marginRight, h-marginTop-marginBottom

	dc.SetFontFace(f.regular)
	dc.DrawStringAnchored(p.XLabel, left+plotW/2, top+plotH+45, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(-math.Pi/2, x+20, top+plotH/2)
	dc.DrawStringAnchored(p.YLabel, x+20, top+plotH/2, 0.5, 0.5)
	dc.Pop()

	dc.SetLineWidth(1)
	dc.DrawLine(left, top+plotH, left+plotW, top+plotH)
	dc.DrawLine(left, top, left, top+plotH)
	dc.Stroke()

	if len(p.Values) == 0 {
		dc.DrawStringAnchored("no data", left+plotW/2, top+plotH/2, 0.5, 0.5)
		return
	}
	peak := slices.Max(p.Values)
	if peak <= 0 {
		peak = 1
	}

	n := float64(len(p.Values))
	for i, v := range p.Values {
		frac := v / peak
		if p.Horizontal {
			band := plotH / n
			bw := frac * plotW
			by := top + float64(i)*band + band*0.1
			dc.DrawRectangle(left, by, bw, band*0.8)
			fillAndOutline(dc, p.Fill)
			dc.SetColor(color.Black)
			dc.DrawStringAnchored(p.Labels[i], left-8, by+band*0.4, 1, 0.5)
			continue
		}
		band := plotW / n
		bh := frac * plotH
		bx := left + float64(i)*band
		gap := 0.1 * band
		if len(p.Values) >= histogramBins {
			gap = 0
		}
		dc.DrawRectangle(bx+gap, top+plotH-bh, band-2*gap, bh)
		fillAndOutline(dc, p.Fill)
		dc.SetColor(color.Black)
		if len(p.Values) < histogramBins || i%5 == 0 {
			dc.DrawStringAnchored(p.Labels[i], bx+band/2, top+plotH+15, 0.5, 0.5)
		}
	}
	dc.DrawStringAnchored(fmt.Sprintf("%.0f", peak), left-8, top, 1, 0.5)
	dc.DrawStringAnchored("0", left-8, top+plotH, 1, 0.5)
}

func fillAndOutline(dc *gg.Context, fill color.Color) {
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.Stroke()
}
