// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"image/color"
	"io"
	"math"

	"github.com/perfexpert/perfexpert/profile"
	"github.com/perfexpert/perfexpert/rank"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ErrNothingToChart is returned by Chart when no reported hotspot has
// a finite overall LCPI.
var ErrNothingToChart = errors.New("no hotspot with an overall LCPI to chart")

// Chart writes a PNG bar chart of the overall LCPI of rank 0, thread
// 0 of every reported hotspot of p to w, in the order p lists them.
func Chart(w io.Writer, p *profile.Profile, opts Options) error {
	var (
		values plotter.Values
		names  []string
	)
	for _, h := range reported(p, &opts) {
		v := h.Value(rank.Overall, 0, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values = append(values, v)
		names = append(names, h.Name)
	}
	if len(values) == 0 {
		return ErrNothingToChart
	}

	pl := plot.New()
	pl.Title.Text = p.Name
	pl.Y.Label.Text = "overall LCPI"
	pl.Y.Min = 0

	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	pl.Add(grid)

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return errors.Wrap(err, "chart")
	}
	bars.Color = color.NRGBA{0x99, 0, 0xFF, 0xFF}
	bars.LineStyle.Width = vg.Length(0)
	pl.Add(bars)
	pl.NominalX(names...)
	pl.X.Tick.Label.Rotation = -math.Pi / 8
	pl.X.Tick.Label.YAlign = draw.YTop
	pl.X.Tick.Label.XAlign = draw.XLeft

	// Heuristic width and height.
	width := 2 + 1.5*float64(len(values))
	if width < 10 {
		width = 10
	}
	height := 8.0
	c := vgimg.PngCanvas{Canvas: vgimg.NewWith(
		vgimg.UseWH(vg.Length(width)*vg.Centimeter, vg.Length(height)*vg.Centimeter),
		vgimg.UseDPI(96), vgimg.UseBackgroundColor(color.White))}
	pl.Draw(draw.New(c))
	if _, err := c.WriteTo(w); err != nil {
		return errors.Wrap(err, "chart")
	}
	return nil
}
