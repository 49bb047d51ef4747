// Command ingest builds the relationship graph of one book from a URL or a
// local file and prints it as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bookrel/backend/internal/bootstrap"
	"github.com/bookrel/backend/internal/util"
	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/graph"
	"github.com/bookrel/backend/pkg/loader"
	fileio "github.com/bookrel/backend/pkg/loader/io"
	"github.com/bookrel/backend/pkg/logger"
	"github.com/bookrel/backend/pkg/store/memory"
)

// ExitError carries the process exit code of a failed run.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

type options struct {
	URL    string
	File   string
	BookID int64
	Out    string
	Names  []string
}

// parseArgs returns the options, whether to exit cleanly, or an ExitError.
func parseArgs(args []string, output io.Writer) (options, bool, error) {
	var opts options

	flagSet := flag.NewFlagSet("ingest", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
ingest - build the relationship graph of a book.

Usage:
  ingest (--url URL | --file PATH) [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	flagSet.StringVar(&opts.URL, "url", "", "URL of a plain text or HTML book.")
	flagSet.StringVar(&opts.File, "file", "", "Path of a local UTF-8 text file, or - for stdin.")
	flagSet.Int64Var(&opts.BookID, "bookId", graph.SeedBookID, "Book id the graph is stored under.")
	flagSet.StringVar(&opts.Out, "out", "", "Write the graph JSON to this file instead of stdout.")
	names := flagSet.String("names", "", "Comma separated character names to match verbatim.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, true, nil
		}
		return opts, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if (opts.URL == "") == (opts.File == "") {
		flagSet.Usage()
		return opts, false, &ExitError{Code: 2, Message: "exactly one of --url or --file is required"}
	}
	if opts.BookID <= 0 {
		return opts, false, &ExitError{Code: 2, Message: "--bookId must be a positive integer"}
	}

	for _, n := range strings.Split(*names, ",") {
		if n = strings.TrimSpace(n); n != "" {
			opts.Names = append(opts.Names, n)
		}
	}
	return opts, false, nil
}

// run ingests the configured source into a fresh in-memory store and
// writes the resulting graph to stdout or opts.Out.
func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	extractor, err := bootstrap.Extractor(opts.Names)
	if err != nil {
		return err
	}

	gc, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Store:     memory.NewGraphMemoryStorage(),
		Extractor: extractor,
		URLLoader: bootstrap.URLLoader(),
	})
	if err != nil {
		return err
	}

	maxBytes := int64(util.GetEnvNumeric("FETCH_MAX_BYTES", 32<<20))

	var g common.Graph
	switch {
	case opts.URL != "":
		g, err = gc.IngestURL(ctx, opts.BookID, opts.URL)
	case opts.File == "-":
		text, readErr := io.ReadAll(io.LimitReader(stdin, maxBytes))
		if readErr != nil {
			return fmt.Errorf("failed to read stdin: %w", readErr)
		}
		g, err = gc.IngestFile(ctx, opts.BookID, loader.NewGraphTextFile("stdin", string(text)))
	default:
		file := loader.NewGraphLocalFile(loader.NewGraphFileParams{
			ID:       opts.File,
			FilePath: opts.File,
			Loader:   fileio.NewIOGraphFileLoader(maxBytes),
		})
		g, err = gc.IngestFile(ctx, opts.BookID, file)
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	data = append(data, '\n')

	if opts.Out == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.Out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.Out, err)
	}
	logger.Info("[Ingest] Wrote graph", "path", opts.Out, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return nil
}

func main() {
	util.LoadEnv()
	bootstrap.InitLogger()

	opts, exit, err := parseArgs(os.Args[1:], os.Stderr)
	if exit {
		return
	}
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		logger.Error("Ingestion failed", "kind", common.Kind(err), "err", err)
		stop()
		os.Exit(1)
	}
}
