package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/ports"
)

// JSONExporter выводит отчеты сверки как JSON-массив.
type JSONExporter struct {
	out    io.Writer
	indent bool
}

// NewJSONExporter создает новый экземпляр JSONExporter. nil означает os.Stdout.
func NewJSONExporter(out io.Writer, indent bool) ports.Exporter {
	if out == nil {
		out = os.Stdout
	}
	return &JSONExporter{out: out, indent: indent}
}

func (e *JSONExporter) Export(reports []domain.ReconciliationReport) error {
	if reports == nil {
		reports = []domain.ReconciliationReport{}
	}
	enc := json.NewEncoder(e.out)
	if e.indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("failed to encode reports: %w", err)
	}
	return nil
}
