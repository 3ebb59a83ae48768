// Package fileprocessor handles file loading and processing operations
package fileprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/contractcfg/internal/options"
	"github.com/retroenv/contractcfg/internal/pipeline"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/sync/errgroup"
)

// outputExtensions maps the output formats to the file extension of generated output files.
var outputExtensions = map[string]string{
	"text": ".cfg.txt",
	"json": ".cfg.json",
	"dot":  ".cfg.dot",
}

// ProcessFile handles the complete file processing workflow
func ProcessFile(ctx context.Context, logger *log.Logger, opts options.Program, analysis options.Analysis) error {
	writer, err := createWriter(opts)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if closer, ok := writer.(io.Closer); ok && writer != os.Stdout {
			_ = closer.Close()
		}
	}()

	p := pipeline.New(logger)
	if _, err := p.Execute(ctx, opts, analysis, writer); err != nil {
		return fmt.Errorf("analyzing %s: %w", opts.Input, err)
	}
	return nil
}

// ProcessFiles processes all files with up to opts.Jobs files in parallel. Every file
// gets its own output file when more than one file is processed or an output name is
// missing in batch mode. A failing file does not stop the processing of the other files,
// all errors are returned joined.
func ProcessFiles(ctx context.Context, logger *log.Logger, opts options.Program, analysis options.Analysis,
	files []string) error {

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(max(opts.Jobs, 1))

	errs := make([]error, len(files))
	for i, file := range files {
		fileOpts := opts
		fileOpts.Input = file
		if len(files) > 1 || opts.Batch != "" {
			fileOpts.Output = GenerateOutputFilename(file, opts.Format)
		}

		group.Go(func() error {
			err := ProcessFile(ctx, logger, fileOpts, analysis)
			if errors.Is(err, context.Canceled) {
				return err
			}
			errs[i] = err
			if err != nil {
				logger.Error("Analysis failed", log.String("file", file), log.Err(err))
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// GetFilesToProcess returns list of files to process based on options
func GetFilesToProcess(opts *options.Program) ([]string, error) {
	if opts.Batch != "" {
		matches, err := filepath.Glob(opts.Batch)
		if err != nil {
			return nil, fmt.Errorf("globbing batch pattern: %w", err)
		}
		return matches, nil
	}
	return []string{opts.Input}, nil
}

// GenerateOutputFilename generates output filename for a given input file
func GenerateOutputFilename(inputFile, format string) string {
	ext := filepath.Ext(inputFile)
	outputExt, ok := outputExtensions[format]
	if !ok {
		outputExt = outputExtensions["text"]
	}
	return inputFile[:len(inputFile)-len(ext)] + outputExt
}

func createWriter(opts options.Program) (io.Writer, error) {
	if opts.Output == "" {
		return os.Stdout, nil
	}

	file, err := os.Create(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("creating output file %s: %w", opts.Output, err)
	}
	return file, nil
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	logger.Info("contractcfg", log.String("version", buildinfo.Version(version, commit, date)))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}
