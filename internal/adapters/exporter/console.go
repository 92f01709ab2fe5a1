package exporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/ports"
)

// maxListedIDs — сколько недостающих идентификаторов печатается в строке таблицы.
const maxListedIDs = 5

// ConsoleExporter реализует интерфейс Exporter для вывода таблицы сверки в консоль.
type ConsoleExporter struct {
	out io.Writer
}

// NewConsoleExporter создает новый экземпляр ConsoleExporter. nil означает os.Stdout.
func NewConsoleExporter(out io.Writer) ports.Exporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleExporter{out: out}
}

// Export печатает по строке на каждую обработанную папку, включая папки без расхождений.
func (e *ConsoleExporter) Export(reports []domain.ReconciliationReport) error {
	if _, err := fmt.Fprintln(e.out, "--- Folder Reconciliation ---"); err != nil {
		return err
	}
	if len(reports) == 0 {
		_, err := fmt.Fprintln(e.out, "No folders processed.")
		return err
	}

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FOLDER\tTITLE\tEXPECTED\tACTUAL\tDELTA\tMISSING\tEXTRA")
	discrepancies := 0
	for _, r := range reports {
		if r.HasDiscrepancy() {
			discrepancies++
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%+d\t%s\t%s\n",
			r.FolderID,
			r.Title,
			r.ExpectedCount,
			r.ActualCount,
			r.CountDelta,
			idList(r.MissingChatIDs, r.MembershipKnown),
			idList(r.ExtraChatIDs, r.MembershipKnown),
		)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write report table: %w", err)
	}

	_, err := fmt.Fprintf(e.out, "Folders: %d, with discrepancies: %d\n", len(reports), discrepancies)
	return err
}

func idList(ids []string, known bool) string {
	if !known {
		return "n/a"
	}
	if len(ids) == 0 {
		return "-"
	}
	if len(ids) > maxListedIDs {
		return fmt.Sprintf("%s (+%d)", strings.Join(ids[:maxListedIDs], ","), len(ids)-maxListedIDs)
	}
	return strings.Join(ids, ",")
}
