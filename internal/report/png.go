package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	colorEstimate    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorLaser       = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorRadar       = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorGroundTruth = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	colorThreshold   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

func xys(pts []Point) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, p := range pts {
		out[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return out
}

// SaveNISPlot writes a PNG of the NIS trace with its threshold line.
func SaveNISPlot(path string, s NISSeries) error {
	if len(s.Samples) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s NIS (threshold %.3f)", s.Sensor, s.Threshold)
	p.X.Label.Text = "reading"
	p.Y.Label.Text = "NIS"

	pts := make(plotter.XYs, len(s.Samples))
	for i, v := range s.Samples {
		pts[i] = plotter.XY{X: float64(i + 1), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = colorEstimate
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("nis", line)

	threshold := plotter.NewFunction(func(float64) float64 { return s.Threshold })
	threshold.Color = colorThreshold
	threshold.Width = vg.Points(1)
	threshold.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(threshold)
	p.Legend.Add("threshold", threshold)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save NIS plot: %w", err)
	}
	return nil
}

// SaveTrajectoryPlot writes a PNG of the trajectory: readings as points,
// ground truth and estimates as lines.
func SaveTrajectoryPlot(path string, tr Trajectory) error {
	if tr.empty() {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = tr.Title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	for _, s := range []struct {
		name string
		pts  []Point
		c    color.Color
	}{
		{"laser", tr.Laser, colorLaser},
		{"radar", tr.Radar, colorRadar},
	} {
		if len(s.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(xys(s.pts))
		if err != nil {
			return err
		}
		sc.Color = s.c
		sc.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add(s.name, sc)
	}

	for _, s := range []struct {
		name string
		pts  []Point
		c    color.Color
	}{
		{"ground truth", tr.GroundTruth, colorGroundTruth},
		{"estimate", tr.Estimates, colorEstimate},
	} {
		if len(s.pts) == 0 {
			continue
		}
		l, err := plotter.NewLine(xys(s.pts))
		if err != nil {
			return err
		}
		l.Color = s.c
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(s.name, l)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save trajectory plot: %w", err)
	}
	return nil
}
