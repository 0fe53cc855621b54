// Command convert turns a CardMarket inventory export into a Moxfield
// collection CSV from the command line.
//
//	convert [-o output.csv] [-interval 100ms] <export.csv>
//
// Diagnostics go to stderr. The exit status is 1 when the run fails or when
// any row needs attention, and 2 for usage errors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/cardconv/internal/config"
	"github.com/JonMunkholm/cardconv/internal/core"
	"github.com/JonMunkholm/cardconv/internal/logging"
	"github.com/JonMunkholm/cardconv/internal/scryfall"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "-", "output file (- for stdout)")
	interval := fs.Duration("interval", cfg.Batch.DispatchInterval, "delay between consecutive card lookups")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: convert [-o output.csv] [-interval 100ms] <export.csv>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	if *interval < 0 {
		fmt.Fprintln(stderr, "-interval must be non-negative")
		return 2
	}

	logger := logging.New(stderr, *logLevel, cfg.Logging.Format)

	client := scryfall.New(scryfall.Options{
		BaseURL:           cfg.Scryfall.BaseURL,
		UserAgent:         cfg.Scryfall.UserAgent,
		Timeout:           cfg.Scryfall.Timeout,
		RequestsPerSecond: cfg.Scryfall.RequestsPerSecond,
	})
	ctrl := core.NewController(client, *interval, logger)

	var input io.Reader
	if f, err := os.Open(fs.Arg(0)); err == nil {
		defer f.Close()
		input = f
	} else {
		input = failingReader{err}
	}

	started := time.Now()
	res, err := ctrl.Run(ctx, uuid.New().String(), input)
	if err != nil {
		printFailure(stderr, err)
		return 1
	}

	if err := writeOutput(*output, stdout, res.Records); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}

	for _, m := range res.Missing {
		fmt.Fprintf(stderr, "%s\t%s\n", m.ID, m.Describe())
	}
	s := res.Stats
	fmt.Fprintf(stderr, "%s export: %d rows, %d converted (%d to double-check), %d missing, %d skipped in %s\n",
		res.Variant, s.Rows, len(res.Records), s.Low, s.Missing, s.Excluded,
		time.Since(started).Round(time.Millisecond))

	if len(res.Missing) > 0 {
		return 1
	}
	return 0
}

// printFailure writes the run error, one line per sentence when the error
// carries them.
func printFailure(w io.Writer, err error) {
	info := core.NewErrorInfo(err)
	if len(info.Lines) > 0 {
		for _, l := range info.Lines {
			fmt.Fprintln(w, l)
		}
		return
	}
	fmt.Fprintf(w, "error: %s\n", info.Message)
	if msg := core.MapError(err); msg.Action != "" {
		fmt.Fprintf(w, "%s (%s)\n", msg.Action, msg.Code)
	}
}

func writeOutput(path string, stdout io.Writer, records []core.OutputRecord) error {
	if path == "" || path == "-" {
		return core.WriteRecords(stdout, records)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := core.WriteRecords(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// failingReader reports an open error as a read failure so the run fails
// the same way an unreadable upload does.
type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }
