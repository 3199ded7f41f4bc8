package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pdfqa/internal/config"
	"pdfqa/internal/domain"
	"pdfqa/internal/logging"
	"pdfqa/internal/server"
	"pdfqa/internal/tui"
)

const usage = `Usage: pdfqa [--config=config.yaml] <command> [args]

Commands:
  ingest [--reset] file.pdf      extract, embed and store every page
  ask [--top-k n] question...    answer from what is already stored
  run file.pdf question...       ingest then answer in one go
  tui [file.pdf]                 interactive terminal UI
  serve                          HTTP API`

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pdfqa", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/pdfqa/config.yaml if not provided)")
	fs.Usage = func() { fmt.Fprintln(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "ingest", "ask", "run", "tui", "serve":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s\n", cmd, usage)
		return 2
	}
	var logger *zap.Logger
	if cmd == "tui" {
		logger, err = logging.NewTUILogger(cfg.Log.Debug, cfg.Log.File)
	} else {
		logger, err = logging.NewLogger(cfg.Log.Debug, cfg.Log.File)
	}
	if err != nil {
		fmt.Fprintf(stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	a, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialise: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close clients", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "ingest":
		err = runIngest(ctx, a, rest, stdout, stderr)
	case "ask":
		err = runAsk(ctx, a, cfg.Retrieval.TopK, rest, stdout, stderr)
	case "run":
		err = runBatch(ctx, a, rest, stdout, stderr)
	case "tui":
		err = runTUI(a, cfg.Retrieval.TopK, rest)
	case "serve":
		err = runServe(ctx, a, cfg, logger)
	}
	if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func runIngest(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	reset := fs.Bool("reset", false, "clear the vector store before ingesting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: pdfqa ingest [--reset] file.pdf")
		return errUsage
	}
	warnNotPersistent(a, stderr)
	if *reset {
		if err := a.store.Clear(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
	}
	return ingest(ctx, a, fs.Arg(0), stdout, stderr)
}

func ingest(ctx context.Context, a *app, path string, stdout, stderr io.Writer) error {
	report, err := a.pipeline.IngestFile(ctx, path, func(p domain.Progress) {
		if p.Err != nil {
			fmt.Fprintf(stderr, "Processing page %d of %d: skipped (%v)\n", p.Done, p.Total, p.Err)
			return
		}
		fmt.Fprintf(stderr, "Processing page %d of %d\n", p.Done, p.Total)
	})
	if report != nil {
		fmt.Fprintln(stdout, report.Message())
	}
	return err
}

func runAsk(ctx context.Context, a *app, topK int, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&topK, "top-k", topK, "number of pages to retrieve as context")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Usage: pdfqa ask [--top-k n] question...")
		return errUsage
	}
	warnNotPersistent(a, stderr)
	return answer(ctx, a, strings.Join(fs.Args(), " "), topK, "", stdout, stderr)
}

// runBatch ingests one PDF and answers one question from its single best page.
func runBatch(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "Usage: pdfqa run file.pdf question...")
		return errUsage
	}
	if err := ingest(ctx, a, args[0], stdout, stderr); err != nil {
		return err
	}
	return answer(ctx, a, strings.Join(args[1:], " "), 1, "Generated Response:", stdout, stderr)
}

// warnNotPersistent flags ingest and ask runs that cannot share entries.
func warnNotPersistent(a *app, stderr io.Writer) {
	if !a.persistent {
		fmt.Fprintln(stderr, "Warning: the memory vector store is emptied when this command exits; use run, tui or serve, or set vector_store.type to sqlite.")
	}
}

// answer reports retrieval failures inline; only infrastructure errors are returned.
// header, when set, is printed just before a generated answer.
func answer(ctx context.Context, a *app, query string, topK int, header string, stdout, stderr io.Writer) error {
	ans, err := a.pipeline.Answer(ctx, query, topK)
	switch {
	case errors.Is(err, domain.ErrNoMatches):
		fmt.Fprintln(stderr, "No matches found. Ingest a PDF first.")
		return nil
	case errors.Is(err, domain.ErrQueryEmbedding), errors.Is(err, domain.ErrEmptyQuery):
		fmt.Fprintln(stderr, err)
		return nil
	case err != nil:
		return err
	}
	if header != "" {
		fmt.Fprintln(stdout, header)
	}
	fmt.Fprintln(stdout, ans.Text)
	return nil
}

func runTUI(a *app, topK int, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	_, err := tea.NewProgram(tui.New(a.pipeline, topK, path), tea.WithAltScreen()).Run()
	return err
}

func runServe(ctx context.Context, a *app, cfg *config.AppConfig, logger *zap.Logger) error {
	srv := server.NewServer(a.pipeline, &cfg.Server, cfg.Retrieval.TopK, logger.Named("http"))
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
