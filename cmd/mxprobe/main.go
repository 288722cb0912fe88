// Command mxprobe checks email addresses for deliverability by resolving
// their MX records and probing the mail servers up to RCPT TO.
//
//	mxprobe --emails user@example.com,other@example.org
//	mxprobe --file addresses.txt --format jsonl --log-level debug
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/optimode/mxprobe"
	"github.com/optimode/mxprobe/internal/config"
	"github.com/optimode/mxprobe/internal/di"
	"github.com/optimode/mxprobe/internal/parse"
	"github.com/optimode/mxprobe/internal/render"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("mxprobe", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	emails := fs.StringSlice("emails", nil, "Addresses to check, comma separated (positional arguments are added too)")
	file := fs.String("file", "", "File with one address per line")
	configFile := fs.String("config", "", "YAML config file")
	selfCheck := fs.Bool("self-check", false, "Run internal checks without network access and exit")
	config.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if *selfCheck {
		return runSelfCheck(stdout)
	}

	var fileEmails []string
	if *file != "" {
		lines, err := readAddressFile(*file)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitUsage
		}
		fileEmails = lines
	}

	addresses := parse.Collect(append(*emails, fs.Args()...), fileEmails)
	if len(addresses) == 0 {
		fmt.Fprintln(stderr, "mxprobe: provide addresses via --emails, arguments and/or --file")
		return exitUsage
	}

	container, err := di.BuildContainer(*configFile, fs)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to build dependency container: %v\n", err)
		return exitFailure
	}

	err = container.Invoke(func(c *mxprobe.Checker, format render.Format, logger *zap.Logger) error {
		defer func() { _ = logger.Sync() }()
		return checkAndRender(ctx, c, format, logger, addresses, stdout)
	})
	if err != nil {
		fmt.Fprintf(stderr, "mxprobe: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// checkAndRender writes whatever was checked, even when the batch is interrupted.
func checkAndRender(ctx context.Context, c *mxprobe.Checker, format render.Format, logger *zap.Logger, addresses []string, w io.Writer) error {
	logger.Info("Batch start", zap.Int("addresses", len(addresses)))
	started := time.Now()

	results, checkErr := c.CheckAll(ctx, addresses)
	if err := render.Write(w, format, results); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	deliverable := 0
	for _, r := range results {
		if r.SMTPStatus == mxprobe.SMTPDeliverable {
			deliverable++
		}
	}
	logger.Info("Batch done",
		zap.Int("checked", len(results)),
		zap.Int("deliverable", deliverable),
		zap.Duration("elapsed", time.Since(started)))

	if checkErr != nil {
		return fmt.Errorf("batch interrupted after %d of %d addresses: %w", len(results), len(addresses), checkErr)
	}
	return nil
}

func readAddressFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mxprobe: cannot read address file: %w", err)
	}
	defer f.Close()
	return parse.ReadLines(f)
}
