package reporting

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/veilscan/veilscan/pkg/models"
	"github.com/veilscan/veilscan/pkg/utils"
)

// Report is the rendered view of a profile's stored exposure state.
type Report struct {
	GeneratedAt time.Time                  `json:"generated_at" yaml:"generated_at"`
	Snapshot    models.ProfileRiskSnapshot `json:"snapshot" yaml:"snapshot"`
	Records     []*models.ExposureRecord   `json:"records" yaml:"records"`
}

// Formatter renders a report into one output format.
type Formatter interface {
	Format(report *Report) ([]byte, error)
	Extension() string
}

// Generator renders reports and manages the reports directory.
type Generator struct {
	outputDir  string
	formatters map[string]Formatter
	retention  time.Duration
	compress   bool
	logger     *logrus.Logger
}

func NewGenerator(outputDir string, retention time.Duration, compress bool, logger *logrus.Logger) (*Generator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := utils.EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("create reports directory: %w", err)
	}

	g := &Generator{
		outputDir: outputDir,
		formatters: map[string]Formatter{
			"json": &JSONFormatter{},
			"yaml": &YAMLFormatter{},
			"text": &TextFormatter{},
		},
		retention: retention,
		compress:  compress,
		logger:    logger,
	}
	return g, nil
}

// Formats lists the supported output formats.
func (g *Generator) Formats() []string {
	names := make([]string, 0, len(g.formatters))
	for name := range g.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate renders the report and writes it under the reports directory.
// Returns the written file path.
func (g *Generator) Generate(report *Report, format string) (string, error) {
	formatter, ok := g.formatters[strings.ToLower(format)]
	if !ok {
		return "", fmt.Errorf("unsupported report format %q (have: %s)", format, strings.Join(g.Formats(), ", "))
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	data, err := formatter.Format(report)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	name := fmt.Sprintf("%s_%s.%s",
		sanitize(report.Snapshot.ProfileID),
		report.GeneratedAt.Format("20060102_150405"),
		formatter.Extension())
	path := filepath.Join(g.outputDir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	if g.compress {
		gzPath, err := g.compressReport(path, data)
		if err != nil {
			g.logger.Warnf("Failed to compress report: %v", err)
		} else {
			_ = os.Remove(path)
			path = gzPath
		}
	}

	g.logger.WithFields(logrus.Fields{
		"profile_id": report.Snapshot.ProfileID,
		"format":     format,
		"path":       path,
	}).Info("Report generated")

	if g.retention > 0 {
		g.cleanupExpired()
	}
	return path, nil
}

func (g *Generator) cleanupExpired() {
	cutoff := time.Now().Add(-g.retention)
	entries, err := os.ReadDir(g.outputDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(g.outputDir, e.Name())); err != nil {
				g.logger.Warnf("Failed to remove expired report %s: %v", e.Name(), err)
			}
		}
	}
}

func (g *Generator) compressReport(path string, data []byte) (string, error) {
	gzPath := path + ".gz"
	dst, err := os.OpenFile(gzPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	defer func() { _ = dst.Close() }()

	gw := gzip.NewWriter(dst)
	gw.Name = filepath.Base(path)
	gw.ModTime = time.Now()
	if _, err := gw.Write(data); err != nil {
		_ = gw.Close()
		return "", err
	}
	if err := gw.Close(); err != nil {
		return "", err
	}
	return gzPath, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

type JSONFormatter struct{}

func (f *JSONFormatter) Extension() string { return "json" }
func (f *JSONFormatter) Format(report *Report) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

type YAMLFormatter struct{}

func (f *YAMLFormatter) Extension() string { return "yaml" }
func (f *YAMLFormatter) Format(report *Report) ([]byte, error) {
	return yaml.Marshal(report)
}

// TextFormatter renders the analyst-facing summary: headline risk, category
// counts, then records from highest risk down with sensitive values masked.
type TextFormatter struct{}

func (f *TextFormatter) Extension() string { return "txt" }

func (f *TextFormatter) Format(report *Report) ([]byte, error) {
	var sb strings.Builder
	snap := report.Snapshot

	fmt.Fprintf(&sb, "VeilScan Exposure Report\n")
	fmt.Fprintf(&sb, "========================\n\n")
	fmt.Fprintf(&sb, "Profile:        %s\n", snap.ProfileID)
	fmt.Fprintf(&sb, "Generated:      %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Overall risk:   %d/100\n", snap.OverallRiskScore)
	fmt.Fprintf(&sb, "Exposures:      %d\n\n", snap.ExposureCount)

	fmt.Fprintf(&sb, "Impersonations: %d\n", snap.Impersonations)
	fmt.Fprintf(&sb, "Breaches:       %d\n", snap.Breaches)
	fmt.Fprintf(&sb, "Data brokers:   %d\n", snap.Brokers)
	fmt.Fprintf(&sb, "Social media:   %d\n", snap.Social)
	fmt.Fprintf(&sb, "Court records:  %d\n", snap.Court)
	fmt.Fprintf(&sb, "Other OSINT:    %d\n", snap.OSINT)

	if len(snap.HighRiskCombinations) > 0 {
		sb.WriteString("\nHigh-risk combinations:\n")
		for _, c := range snap.HighRiskCombinations {
			fmt.Fprintf(&sb, "  - %s\n", c)
		}
	}

	if len(report.Records) > 0 {
		sb.WriteString("\nExposures (highest risk first):\n")
		for _, r := range report.Records {
			fmt.Fprintf(&sb, "\n  [%3d] %s (%s)\n", r.RiskScore, r.SourceName, r.SourceType)
			if r.SourceURL != "" {
				fmt.Fprintf(&sb, "        %s\n", r.SourceURL)
			}
			fmt.Fprintf(&sb, "        exposed: %s\n", strings.Join(r.DataExposed, ", "))
			fmt.Fprintf(&sb, "        status: %s  severity: %s\n", r.Status, r.SeverityLabel())
			if r.IsImpersonation() {
				sb.WriteString("        ** possible impersonation **\n")
			}
		}
	}

	return []byte(sb.String()), nil
}
