package features

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/model"
	"fmt"
	"image/color"
	"io"
	"path/filepath"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	figWidth  = 10 * vg.Inch
	figHeight = 4 * vg.Inch
)

// FigureWriter renders PNG figures of every computed feature.
type FigureWriter struct {
	outDir     string
	zThreshold float64
	files      *fsutil.Txn
	logger     *zap.Logger
}

// NewFigureWriter creates a figure writer.
func NewFigureWriter(cfg *config.Config, _ config.WriterDef, files *fsutil.Txn, logger *zap.Logger) (model.Writer, error) {
	return &FigureWriter{outDir: cfg.Analyzer.OutDir, zThreshold: cfg.Analyzer.ZThreshold, files: files, logger: logger}, nil
}

// Kind returns the registry name.
func (w *FigureWriter) Kind() string { return "figures" }

// Close is a no-op.
func (w *FigureWriter) Close() error { return nil }

// FigureName returns the file name of a column figure, e.g. fig_udp_packet_count_psd.png.
func FigureName(column, kind string) string {
	return fmt.Sprintf("fig_%s_%s.png", column, kind)
}

func (w *FigureWriter) save(p *plot.Plot, name string) error {
	wt, err := p.WriterTo(figWidth, figHeight, "png")
	if err != nil {
		return err
	}
	return w.files.Write(filepath.Join(w.outDir, name), func(out io.Writer) error {
		_, err := wt.WriteTo(out)
		return err
	})
}

func linePlot(title, xLabel, yLabel string, xs, ys []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(ys))
	for i := range ys {
		pts[i].X, pts[i].Y = xs[i], ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{B: 200, A: 255}
	p.Add(line)
	return p, nil
}

func hline(p *plot.Plot, y float64) {
	f := plotter.NewFunction(func(float64) float64 { return y })
	f.Color = color.RGBA{R: 200, A: 255}
	f.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(f)
}

// Write expects a *model.AnalysisReport.
func (w *FigureWriter) Write(payload interface{}) error {
	report, ok := payload.(*model.AnalysisReport)
	if !ok {
		return fmt.Errorf("invalid payload type for FigureWriter: expected *model.AnalysisReport, got %T", payload)
	}

	figures := 0
	for i := range report.Features {
		f := &report.Features[i]
		ts := sampleTimes(report, f)

		render := func(kind string, build func() (*plot.Plot, error)) error {
			p, err := build()
			if err != nil {
				return fmt.Errorf("failed to build %s figure of '%s': %w", kind, f.Column, err)
			}
			if p == nil {
				return nil
			}
			if err := w.save(p, FigureName(f.Column, kind)); err != nil {
				return fmt.Errorf("failed to save %s figure of '%s': %w", kind, f.Column, err)
			}
			figures++
			return nil
		}

		if len(f.Raw) > 0 {
			if err := render("series", func() (*plot.Plot, error) {
				return linePlot(f.Column, "window start (s)", "value", ts, f.Raw)
			}); err != nil {
				return err
			}
		}
		if f.OK(model.FeatureZScore) && len(f.ZScore) > 0 {
			if err := render("zscore", func() (*plot.Plot, error) {
				p, err := linePlot(f.Column+" rolling z-score", "window start (s)", "z", ts, f.ZScore)
				if err == nil {
					hline(p, w.zThreshold)
					hline(p, -w.zThreshold)
				}
				return p, err
			}); err != nil {
				return err
			}
		}
		if f.OK(model.FeatureACF) {
			if err := render("acf", func() (*plot.Plot, error) {
				lags := make([]float64, len(f.ACFLags))
				for k, l := range f.ACFLags {
					lags[k] = float64(l)
				}
				return linePlot(f.Column+" autocorrelation", "lag (windows)", "ACF", lags, f.ACFValues)
			}); err != nil {
				return err
			}
		}
		if f.OK(model.FeaturePSD) {
			if err := render("psd", func() (*plot.Plot, error) { return psdPlot(f) }); err != nil {
				return err
			}
		}
		if f.OK(model.FeatureSTFT) {
			if err := render("stft", func() (*plot.Plot, error) { return stftPlot(f) }); err != nil {
				return err
			}
		}
	}
	w.logger.Info("Wrote figures", zap.String("dir", w.outDir), zap.Int("figures", figures))
	return nil
}

// psdPlot draws the PSD on a log power axis. Bins with zero power cannot be shown on a
// log axis and are left out; without any positive bin the axis stays linear.
func psdPlot(f *model.SignalFeatures) (*plot.Plot, error) {
	var xs, ys []float64
	for k, p := range f.PSDPower {
		if k > 0 && p > 0 {
			xs = append(xs, f.PSDFreqs[k])
			ys = append(ys, p)
		}
	}
	if len(xs) < 2 {
		return linePlot(f.Column+" Welch PSD", "frequency (Hz)", "power/Hz", f.PSDFreqs, f.PSDPower)
	}
	p, err := linePlot(f.Column+" Welch PSD", "frequency (Hz)", "power/Hz (log)", xs, ys)
	if err != nil {
		return nil, err
	}
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	return p, nil
}

// spectrogram adapts an STFT power matrix to plotter.GridXYZ.
type spectrogram struct {
	times, freqs []float64
	power        [][]float64
}

func (s spectrogram) Dims() (c, r int)   { return len(s.times), len(s.freqs) }
func (s spectrogram) Z(c, r int) float64 { return s.power[r][c] }
func (s spectrogram) X(c int) float64    { return s.times[c] }
func (s spectrogram) Y(r int) float64    { return s.freqs[r] }

// stftPlot draws the spectrogram. The colour range is clipped at the 99th percentile so
// a single burst does not wash out the rest. Spectrograms with a single segment are not
// drawn.
func stftPlot(f *model.SignalFeatures) (*plot.Plot, error) {
	if len(f.STFTTimes) < 2 || len(f.STFTFreqs) < 2 {
		return nil, nil
	}
	grid := spectrogram{times: f.STFTTimes, freqs: f.STFTFreqs, power: f.STFTPower}
	pal := palette.Heat(64, 1)
	h := plotter.NewHeatMap(grid, pal)

	var all []float64
	for _, row := range f.STFTPower {
		all = append(all, row...)
	}
	if p99, err := stats.Percentile(all, 99); err == nil && p99 > h.Min {
		h.Max = p99
	}
	if h.Max <= h.Min {
		h.Max = h.Min + 1
	}
	colors := pal.Colors()
	h.Overflow = colors[len(colors)-1]

	p := plot.New()
	p.Title.Text = f.Column + " STFT power"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "frequency (Hz)"
	p.Add(h)
	return p, nil
}
