package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"telegram-sync-reconciler/internal/adapters/exporter"
	"telegram-sync-reconciler/internal/app"
	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/pkg/config"
	"telegram-sync-reconciler/internal/ports"
	"telegram-sync-reconciler/internal/telegram"
	"telegram-sync-reconciler/internal/usecase"
)

// Коды завершения.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitDiscrepancy = 3
)

const usage = `Usage: reconciler [-config file] <command> [flags]

Commands:
  check     sync, then reconcile declared folder membership against retrieved dialogs
  messages  sync, then fetch recent messages page by page
  dialogs   show dialogs (with a few messages) of one folder
`

// errDiscrepancy возвращается командой check с флагом -strict.
var errDiscrepancy = errors.New("discrepancies found")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("reconciler", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", config.DefaultConfigFile, "path to YAML config")
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	// 1. Загрузка и валидация конфигурации
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFailure
	}

	// 2. Логи пишутся в stderr, stdout остается для результата
	logger := app.NewLogger(cfg.Logging, stderr, cfg.Secrets()...)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("config validation failed", "error", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, cmdArgs := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "check":
		err = runCheck(ctx, cfg, logger, cmdArgs, stdout, stderr)
	case "messages":
		err = runMessages(ctx, cfg, logger, cmdArgs, stdout, stderr)
	case "dialogs":
		err = runDialogs(ctx, cfg, logger, cmdArgs, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		global.Usage()
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, errDiscrepancy):
		return exitDiscrepancy
	default:
		logger.Error("command failed", "command", cmd, "phase", usecase.PhaseOf(err), "error", err)
		return exitFailure
	}
}

var errUsage = errors.New("usage error")

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) error {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}

func runCheck(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	limit := fs.Int("limit", cfg.Reconcile.FolderLimit, "number of folders to reconcile")
	asJSON := fs.Bool("json", false, "print reports as JSON")
	strict := fs.Bool("strict", false, "exit with code 3 when any folder has a discrepancy")
	useTelegram := fs.Bool("telegram", cfg.TelegramAPI.Enabled, "read folder membership directly from Telegram")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	var membership ports.MembershipSource
	if *useTelegram {
		cfg.TelegramAPI.Enabled = true
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
		client, err := app.StartTelegram(ctx, cfg.TelegramAPI, log)
		if err != nil {
			return err
		}
		membership = telegram.NewMembership(client, log)
	}

	st, err := app.NewStack(cfg, log)
	if err != nil {
		return err
	}

	reports, err := app.NewReconciler(cfg, st, log, nil, membership).Run(ctx, *limit)
	if err != nil {
		return err
	}

	var exp ports.Exporter
	if *asJSON {
		exp = exporter.NewJSONExporter(stdout, true)
	} else {
		exp = exporter.NewConsoleExporter(stdout)
	}
	if err := exp.Export(reports); err != nil {
		return fmt.Errorf("export reports: %w", err)
	}

	if *strict {
		for _, r := range reports {
			if r.HasDiscrepancy() {
				return errDiscrepancy
			}
		}
	}
	return nil
}

func runMessages(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("messages", flag.ContinueOnError)
	pageSize := fs.Int("page-size", cfg.Messages.PageSize, "messages per page")
	maxItems := fs.Int("max", cfg.Messages.MaxItems, "stop after this many messages (0 - no limit)")
	asJSON := fs.Bool("json", false, "print messages as JSON")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	cfg.Messages.PageSize = *pageSize
	cfg.Messages.MaxItems = *maxItems

	st, err := app.NewStack(cfg, log)
	if err != nil {
		return err
	}

	messages, err := app.NewCollector(cfg, st, log).Run(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(stdout, messages)
	}
	return printMessages(stdout, messages)
}

func runDialogs(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dialogs", flag.ContinueOnError)
	folder := fs.Int("folder", 0, "zero-based index of the folder in the folder list")
	asJSON := fs.Bool("json", false, "print dialogs as JSON")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	st, err := app.NewStack(cfg, log)
	if err != nil {
		return err
	}

	preview, err := usecase.NewFolderPreview(st.API, log).Run(ctx, *folder)
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(stdout, preview)
	}
	return printPreview(stdout, preview)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMessages(w io.Writer, messages []domain.Message) error {
	if len(messages) == 0 {
		_, err := fmt.Fprintln(w, "No messages.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCHAT\tSENDER\tTEXT")
	for _, m := range messages {
		ts := "-"
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ts, orDash(m.ChatID), orDash(m.Sender.Name), m.Text)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Messages: %d\n", len(messages))
	return err
}

func printPreview(w io.Writer, p usecase.Preview) error {
	fmt.Fprintln(w, "--- Folders ---")
	for i, f := range p.Folders {
		marker := " "
		if f.ID == p.Folder.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d. %s (id %s)\n", marker, i, f.Title, f.ID)
	}

	fmt.Fprintf(w, "\n--- Dialogs in %q ---\n", p.Folder.Title)
	if len(p.Dialogs) == 0 {
		_, err := fmt.Fprintln(w, "No dialogs.")
		return err
	}
	for _, d := range p.Dialogs {
		fmt.Fprintf(w, "%s [%s] %s, participants: %d\n", d.ChatID, d.Type, d.Title, len(d.Participants))
		for _, m := range d.Messages {
			fmt.Fprintf(w, "    %s: %s\n", orDash(m.Sender.Name), m.Text)
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
