// Command cession applies a reinsurance program or a treaty book to an .xlsx
// bordereau and prints the per-policy results as JSON.
//
// Usage:
//
//	cession -program program.yaml -bordereau policies.xlsx [-out augmented.xlsx]
//	cession -treaties book.yaml -bordereau policies.xlsx [-date 2025-06-15]
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
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cession/internal/domain"
	"github.com/aristath/cession/internal/modules/application"
	"github.com/aristath/cession/internal/modules/inuring"
	"github.com/aristath/cession/internal/modules/loader"
	"github.com/aristath/cession/pkg/logger"
)

type options struct {
	programPath   string
	treatiesPath  string
	bordereauPath string
	outPath       string
	date          string
	workers       int
	logLevel      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "cession:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("cession", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.programPath, "program", "", "program definition (YAML)")
	fs.StringVar(&opts.treatiesPath, "treaties", "", "treaty book (YAML)")
	fs.StringVar(&opts.bordereauPath, "bordereau", "", "bordereau workbook (.xlsx)")
	fs.StringVar(&opts.outPath, "out", "", "write the augmented bordereau to this .xlsx (program mode only)")
	fs.StringVar(&opts.date, "date", "", "calculation date YYYY-MM-DD for treaty selection (default today)")
	fs.IntVar(&opts.workers, "workers", 0, "rows computed concurrently (default one per CPU)")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case opts.bordereauPath == "":
		return nil, errors.New("-bordereau is required")
	case (opts.programPath == "") == (opts.treatiesPath == ""):
		return nil, errors.New("exactly one of -program and -treaties is required")
	case opts.outPath != "" && opts.programPath == "":
		return nil, errors.New("-out is only supported with -program")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: opts.logLevel, Pretty: true, Output: stderr})
	service := application.NewService(inuring.NewEngine(log), opts.workers, log)

	bordereau, err := loader.LoadBordereau(opts.bordereauPath)
	if err != nil {
		return err
	}

	var results []*domain.PolicyResult
	if opts.programPath != "" {
		results, err = applyProgram(ctx, service, bordereau, opts, log)
	} else {
		results, err = applyTreaties(ctx, service, bordereau, opts)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func applyProgram(
	ctx context.Context,
	service *application.Service,
	bordereau domain.Bordereau,
	opts *options,
	log zerolog.Logger,
) ([]*domain.PolicyResult, error) {
	program, err := loader.LoadProgram(opts.programPath)
	if err != nil {
		return nil, err
	}

	rows, results, err := service.ApplyProgramToBordereau(ctx, bordereau, program)
	if err != nil {
		return nil, err
	}

	if opts.outPath != "" {
		if err := writeAugmented(opts.outPath, rows, program.Dimensions); err != nil {
			return nil, err
		}
		log.Info().Str("path", opts.outPath).Int("rows", len(rows)).Msg("Augmented bordereau written")
	}
	return results, nil
}

func writeAugmented(path string, rows []application.AugmentedRow, dimensions []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := loader.WriteAugmentedBordereau(f, rows, dimensions); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func applyTreaties(
	ctx context.Context,
	service *application.Service,
	bordereau domain.Bordereau,
	opts *options,
) ([]*domain.PolicyResult, error) {
	book, err := loader.LoadTreatyBook(opts.treatiesPath)
	if err != nil {
		return nil, err
	}

	calculationDate := domain.DateOf(time.Now().UTC())
	if opts.date != "" {
		if calculationDate, err = domain.ParseDate(opts.date); err != nil {
			return nil, fmt.Errorf("-date: %w", err)
		}
	}

	return service.ApplyTreatyManagerToBordereau(ctx, bordereau, book, calculationDate)
}
