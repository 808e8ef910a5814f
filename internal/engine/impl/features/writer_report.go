package features

import (
	"DDoSpectra/internal/alerter"
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/model"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"go.uber.org/zap"
)

// ReportWriter renders a Markdown summary of the analysis and its HTML version.
type ReportWriter struct {
	outDir string
	files  *fsutil.Txn
	logger *zap.Logger
}

// NewReportWriter creates a report writer.
func NewReportWriter(cfg *config.Config, _ config.WriterDef, files *fsutil.Txn, logger *zap.Logger) (model.Writer, error) {
	return &ReportWriter{outDir: cfg.Analyzer.OutDir, files: files, logger: logger}, nil
}

// Kind returns the registry name.
func (w *ReportWriter) Kind() string { return "report" }

// Close is a no-op.
func (w *ReportWriter) Close() error { return nil }

func si(v float64) string {
	return strings.TrimSpace(humanize.SIWithDigits(v, 3, ""))
}

// Markdown renders the report. Figures already present in outDir are linked.
func Markdown(report *model.AnalysisReport, outDir string) []byte {
	return markdown(report, func(name string) bool {
		_, err := os.Stat(filepath.Join(outDir, name))
		return err == nil
	})
}

// markdown renders the report, linking the figures for which hasFigure is true.
func markdown(report *model.AnalysisReport, hasFigure func(name string) bool) []byte {
	var b bytes.Buffer
	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	fmt.Fprintf(&b, "# DDoSpectra analysis report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- Input: `%s`\n", report.CSVPath)
	fmt.Fprintf(&b, "- Windows: %s\n", humanize.Comma(int64(report.Rows)))
	fmt.Fprintf(&b, "- Sample rate: %s Hz\n", humanize.Ftoa(report.SampleRate))
	fmt.Fprintf(&b, "- Generated: %s\n\n", generated.UTC().Format(time.RFC3339))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Column | P95 | Max abs z | Anomalous windows | Dominant freq (Hz) | Dominant power | Total power | ACF peak |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for i := range report.Features {
		f := &report.Features[i]
		s := f.Summary
		cell := func(feature, v string) string {
			if !f.OK(feature) {
				return "n/a"
			}
			return v
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			f.Column,
			si(s.P95),
			cell(model.FeatureZScore, humanize.FtoaWithDigits(s.MaxAbsZScore, 2)),
			cell(model.FeatureZScore, humanize.Comma(int64(len(s.AnomalousIntervals)))),
			cell(model.FeaturePSD, humanize.FtoaWithDigits(s.DominantFrequency, 4)),
			cell(model.FeaturePSD, si(s.DominantPower)),
			cell(model.FeaturePSD, si(s.TotalPower)),
			cell(model.FeatureACF, fmt.Sprintf("%.3f at lag %d", s.ACFPeakValue, s.ACFPeakLag)),
		)
	}

	b.WriteString("\n## Alerts\n\n")
	if len(report.Alerts) == 0 {
		b.WriteString("No alert rule triggered.\n")
	}
	for _, a := range report.Alerts {
		fmt.Fprintf(&b, "- **%s**\n", alerter.Message(a))
	}

	for i := range report.Features {
		f := &report.Features[i]
		fmt.Fprintf(&b, "\n## %s\n\n", f.Column)
		if len(f.Errors) > 0 {
			names := make([]string, 0, len(f.Errors))
			for name := range f.Errors {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(&b, "- %s not computed: %v\n", name, f.Errors[name])
			}
			b.WriteString("\n")
		}
		if n := len(f.Summary.AnomalousIntervals); n > 0 {
			shown := f.Summary.AnomalousIntervals
			if n > 20 {
				shown = shown[:20]
			}
			parts := make([]string, len(shown))
			for k, idx := range shown {
				parts[k] = fmt.Sprint(idx)
			}
			fmt.Fprintf(&b, "Anomalous window indices: %s", strings.Join(parts, ", "))
			if n > 20 {
				fmt.Fprintf(&b, " and %d more", n-20)
			}
			b.WriteString("\n\n")
		}
		for _, kind := range []string{"series", "zscore", "acf", "psd", "stft"} {
			name := FigureName(f.Column, kind)
			if hasFigure(name) {
				fmt.Fprintf(&b, "![%s %s](%s)\n\n", f.Column, kind, name)
			}
		}
	}
	return b.Bytes()
}

// Write expects a *model.AnalysisReport.
func (w *ReportWriter) Write(payload interface{}) error {
	report, ok := payload.(*model.AnalysisReport)
	if !ok {
		return fmt.Errorf("invalid payload type for ReportWriter: expected *model.AnalysisReport, got %T", payload)
	}

	var md []byte
	if w.files != nil {
		md = markdown(report, func(name string) bool { return w.files.Has(filepath.Join(w.outDir, name)) })
	} else {
		md = Markdown(report, w.outDir)
	}
	if err := w.files.Write(filepath.Join(w.outDir, "report.md"), func(out io.Writer) error {
		_, err := out.Write(md)
		return err
	}); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}

	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "DDoSpectra report " + report.RunID,
	})
	page := gomarkdown.ToHTML(md, p, r)
	if err := w.files.Write(filepath.Join(w.outDir, "report.html"), func(out io.Writer) error {
		_, err := out.Write(page)
		return err
	}); err != nil {
		return fmt.Errorf("failed to write html report: %w", err)
	}
	w.logger.Info("Wrote report", zap.String("dir", w.outDir), zap.Int("alerts", len(report.Alerts)))
	return nil
}
