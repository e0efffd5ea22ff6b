package internal

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	hoverCharBudget = 1024
	noiseColor      = "#9e9e9e"
)

// RenderHTML writes an interactive scatter plot of the projections,
// one series per cluster, with the document text on hover and the
// topic labels pinned at the cluster centers.
func (p *Pipeline) RenderHTML(w io.Writer, title string) error {
	if !p.Fitted() || len(p.projections) == 0 {
		return ErrNotFitted
	}

	if len(p.projections[0]) >= 3 {
		return p.render3D(w, title)
	}
	return p.render2D(w, title)
}

func (p *Pipeline) render2D(w io.Writer, title string) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "800px", PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item", Formatter: "{b}"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)

	for _, label := range p.plotOrder() {
		data := make([]opts.ScatterData, 0, len(p.docsByLabel[label]))
		for _, id := range p.docsByLabel[label] {
			data = append(data, opts.ScatterData{
				Name:       Truncate(p.texts[id], hoverCharBudget),
				Value:      []interface{}{p.projections[id][0], p.projections[id][1]},
				SymbolSize: 5,
			})
		}

		var seriesOpts []charts.SeriesOpts
		if label == NoiseLabel {
			seriesOpts = append(seriesOpts, charts.WithItemStyleOpts(opts.ItemStyle{Color: noiseColor, Opacity: 0.5}))
		}
		scatter.AddSeries(p.seriesName(label), data, seriesOpts...)
	}

	if centers := p.centerPoints(); len(centers) > 0 {
		scatter.AddSeries("topics", centers,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}", Position: "top"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Opacity: 0}),
		)
	}

	return scatter.Render(w)
}

func (p *Pipeline) render3D(w io.Writer, title string) error {
	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "800px", PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item", Formatter: "{b}"}),
	)

	for _, label := range p.plotOrder() {
		data := make([]opts.Chart3DData, 0, len(p.docsByLabel[label]))
		for _, id := range p.docsByLabel[label] {
			proj := p.projections[id]
			data = append(data, opts.Chart3DData{
				Name:  Truncate(p.texts[id], hoverCharBudget),
				Value: []interface{}{proj[0], proj[1], proj[2]},
			})
		}

		var seriesOpts []charts.SeriesOpts
		if label == NoiseLabel {
			seriesOpts = append(seriesOpts, charts.WithItemStyleOpts(opts.ItemStyle{Color: noiseColor, Opacity: 0.5}))
		}
		scatter.AddSeries(p.seriesName(label), data, seriesOpts...)
	}

	return scatter.Render(w)
}

// plotOrder draws noise first so cluster points stay on top of it.
func (p *Pipeline) plotOrder() []int {
	labels := make([]int, 0, len(p.docsByLabel))
	for label := range p.docsByLabel {
		if label == NoiseLabel {
			continue
		}
		labels = append(labels, label)
	}
	sort.Ints(labels)

	if _, ok := p.docsByLabel[NoiseLabel]; ok {
		return append([]int{NoiseLabel}, labels...)
	}
	return labels
}

func (p *Pipeline) seriesName(label int) string {
	if label == NoiseLabel {
		return "noise"
	}
	return fmt.Sprintf("cluster %d", label)
}

func (p *Pipeline) centerPoints() []opts.ScatterData {
	labels := make([]int, 0, len(p.centers))
	for label := range p.centers {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	data := make([]opts.ScatterData, 0, len(labels))
	for _, label := range labels {
		center := p.centers[label]
		if len(center) < 2 {
			continue
		}

		name := p.TopicOf(label)
		if name == "" {
			name = p.seriesName(label)
		}

		data = append(data, opts.ScatterData{
			Name:       name,
			Value:      []interface{}{center[0], center[1]},
			SymbolSize: 1,
		})
	}

	return data
}
