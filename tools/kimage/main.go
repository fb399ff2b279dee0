// Command kimage prints the physical memory layout of kernel ELF images.
//
// For every image it resolves the section boundary symbols that the kernel
// linker script defines, translates them to physical addresses using the
// fixed kernel base offset and prints one line per image region.
//
//	kimage [-sections] [-prefix runtime.] [-check] [-align 4096] image...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"kzero/kernel/mm"
)

type config struct {
	useSections bool
	prefix      string
	check       bool
	align       uint64
	jobs        int
	verbose     bool
}

var errUnaligned = errors.New("image regions are not aligned")

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       verbose,
		DisableStacktrace: !verbose,
		Encoding:          "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:     "timestamp",
			MessageKey:  "message",
			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,
			NameKey:     "logger",
			EncodeTime:  zapcore.RFC3339TimeEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("error building logger: %w", err)
	}

	return logger.Sugar().Named("kimage"), nil
}

// run resolves every image concurrently and returns the reports in the
// order the paths were given.
func run(ctx context.Context, logger *zap.SugaredLogger, cfg config, paths []string) ([]*imageReport, error) {
	reports := make([]*imageReport, len(paths))

	eg, egCtx := errgroup.WithContext(ctx)
	if cfg.jobs > 0 {
		eg.SetLimit(cfg.jobs)
	}

	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			logger.Debugw("resolving image", "path", path, "sections", cfg.useSections)
			syms, err := resolveImage(path, cfg.useSections, cfg.prefix)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			report := &imageReport{path: path, syms: syms}
			if cfg.align != 0 {
				report.warnings = checkAlignment(&syms, mm.Size(cfg.align))
			}
			for _, w := range report.warnings {
				logger.Warnw(w, "path", path)
			}

			reports[i] = report
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if cfg.check {
		for _, r := range reports {
			if len(r.warnings) != 0 {
				return reports, fmt.Errorf("%s: %w", r.path, errUnaligned)
			}
		}
	}

	return reports, nil
}

func main() {
	var cfg config
	flag.BoolVar(&cfg.useSections, "sections", false, "derive the layout from ELF section headers instead of link symbols")
	flag.StringVar(&cfg.prefix, "prefix", "", "prefix prepended to link symbol names (e.g. runtime.)")
	flag.BoolVar(&cfg.check, "check", false, "exit with an error if any image region is misaligned")
	flag.Uint64Var(&cfg.align, "align", uint64(mm.PageSize), "required region alignment in bytes; 0 disables the check")
	flag.IntVar(&cfg.jobs, "j", 4, "number of images to process concurrently")
	flag.BoolVar(&cfg.verbose, "v", false, "enable debug logging")
	flag.Parse()

	logger, err := newLogger(cfg.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[kimage] error: %s\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if flag.NArg() == 0 {
		logger.Fatal("missing kernel image path")
	}

	if cfg.align != 0 && cfg.align&(cfg.align-1) != 0 {
		logger.Fatalf("alignment 0x%x is not a power of two", cfg.align)
	}

	reports, err := run(context.Background(), logger, cfg, flag.Args())
	if reports != nil {
		writeReport(os.Stdout, reports)
	}
	if err != nil {
		logger.Fatalw("layout check failed", "error", err)
	}
}
