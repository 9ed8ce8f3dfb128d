package noise

import (
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// PlotClassAgreement saves a bar chart with the fraction of verification
// samples of each clean class whose noisy label agrees. The image format
// follows the extension of path (.png, .svg, .pdf).
func PlotClassAgreement(r *Report, path string) error {
	if r.Verification == 0 {
		return errors.Errorf("split %s has no verification samples to plot", r.Split)
	}
	agreement := make(plotter.Values, r.NumClasses)
	for _, cs := range r.Classes {
		agreement[cs.Class] = cs.Agreement
	}

	p := plot.New()
	p.Title.Text = "Noisy label agreement per clean class"
	p.X.Label.Text = "class"
	p.Y.Label.Text = "agreement"
	p.Y.Min, p.Y.Max = 0, 1

	bars, err := plotter.NewBarChart(agreement, barWidth(r.NumClasses))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	bars.LineStyle.Width = 0
	p.Add(bars)

	rate := plotter.NewFunction(func(float64) float64 { return 1 - r.NoiseRate })
	rate.Color = color.RGBA{R: 200, G: 30, B: 30, A: 200}
	rate.Width = vg.Points(1)
	p.Add(rate)
	p.Legend.Add("agreement", bars)
	p.Legend.Add("overall", rate)
	p.Add(plotter.NewGrid())
	p.X.Min, p.X.Max = -1, float64(r.NumClasses)

	return savePlot(p, path)
}

// PlotLabelHistogram saves side by side bar charts with the number of clean
// and noisy labels per class.
func PlotLabelHistogram(r *Report, path string) error {
	clean := make(plotter.Values, r.NumClasses)
	noisy := make(plotter.Values, r.NumClasses)
	for _, cs := range r.Classes {
		clean[cs.Class] = float64(cs.Clean)
		noisy[cs.Class] = float64(cs.Noisy)
	}

	p := plot.New()
	p.Title.Text = "Labels per class: clean (grey), noisy (blue)"
	p.X.Label.Text = "class"
	p.Y.Label.Text = "samples"

	w := barWidth(r.NumClasses)
	cleanBars, err := plotter.NewBarChart(clean, w/2)
	if err != nil {
		return err
	}
	cleanBars.Color = color.RGBA{R: 120, G: 120, B: 120, A: 200}
	cleanBars.LineStyle.Width = 0
	cleanBars.Offset = -w / 4

	noisyBars, err := plotter.NewBarChart(noisy, w/2)
	if err != nil {
		return err
	}
	noisyBars.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	noisyBars.LineStyle.Width = 0
	noisyBars.Offset = w / 4

	p.Add(cleanBars, noisyBars, plotter.NewGrid())
	p.Legend.Add("clean", cleanBars)
	p.Legend.Add("noisy", noisyBars)
	p.X.Min, p.X.Max = -1, float64(r.NumClasses)
	p.Y.Min = 0

	return savePlot(p, path)
}

// barWidth fits numClasses bars in the plot width.
func barWidth(numClasses int) vg.Length {
	w := plotWidth * 0.8 / vg.Length(max(numClasses, 1))
	return max(w, vg.Points(0.5))
}

func savePlot(p *plot.Plot, path string) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}
	return nil
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
