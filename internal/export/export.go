package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gaiinsights/newswatch/internal/report"
)

// Supported export formats.
const (
	FormatPDF  = "pdf"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Exporter writes report payloads to files under Dir.
type Exporter struct {
	Dir string
	// BaseName is the file name without extension. Zero means "ai_news_report".
	BaseName string
}

// Write renders the payload in the requested format and returns the written
// file path. Unsupported formats are an error.
func (e *Exporter) Write(p report.Payload, format string) (string, error) {
	base := e.BaseName
	if base == "" {
		base = "ai_news_report"
	}
	if e.Dir != "" {
		if err := os.MkdirAll(e.Dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	path := filepath.Join(e.Dir, base+"."+format)

	switch format {
	case FormatJSON:
		if err := writeJSON(p, path); err != nil {
			return "", err
		}
	case FormatCSV:
		if err := writeCSV(p, path); err != nil {
			return "", err
		}
	case FormatPDF:
		if err := writePDF(p, path); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	return path, nil
}

func writeJSON(p report.Payload, path string) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeCSV(p report.Payload, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(p.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range p.Rows {
		rec := []string{
			r.Title,
			r.Source,
			r.URL,
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			r.Takeaway,
			r.PublishedAt,
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}
