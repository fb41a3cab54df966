// =============================================================================
// NRML to HDF5 Converter - Batch Command
// =============================================================================
//
// This file defines the 'batch' command, which converts every NRML file
// matching one or more glob patterns.
//
// COMMAND USAGE:
//   nrml2hdf5 batch <glob>... [flags]
//
// FLAGS:
//   --concurrency : Number of files converted at once (default from config)
//   --summary     : Write a processing summary to this file
//
// PROCESSING PIPELINE:
//   1. Expand the patterns (doublestar syntax, "**" matches directories)
//   2. Reject the batch if two inputs map to the same output file
//   3. Convert the files on a bounded worker pool
//   4. Print one "Saved" line per success, in input order
//   5. Print the summary and optionally write the summary log
//
// When batch.continue_on_error is false, no new file is started after the
// first failure. Files already running are finished.
//
// =============================================================================

package cmd

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/nrml2hdf5/internal/converter"
	"github.com/ginjaninja78/nrml2hdf5/pkg/utils"
)

// =============================================================================
// BATCH COMMAND DEFINITION
// =============================================================================

func newBatchCommand(a *app) *cobra.Command {
	var concurrency int
	var summaryPath string

	batchCmd := &cobra.Command{
		Use:   "batch <glob>...",
		Short: "Convert every NRML file matching the given patterns",
		Long: `The batch command expands the given glob patterns and converts each
matching file to HDF5. Files are processed concurrently and independently.

Patterns use doublestar syntax, so "models/**/*.xml" matches files in every
subdirectory of models. Quote the patterns so the shell does not expand them.`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 0 {
				return usageError{err: fmt.Errorf("--concurrency must not be negative")}
			}
			if concurrency == 0 {
				concurrency = a.cfg.Batch.MaxConcurrency
			}
			return a.runBatch(args, concurrency, summaryPath)
		},
	}

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0,
		"Number of files converted at once (default from config)")
	batchCmd.Flags().StringVar(&summaryPath, "summary", "",
		"Write a processing summary to this file")
	return batchCmd
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func (a *app) runBatch(patterns []string, concurrency int, summaryPath string) error {
	startTime := time.Now()

	files, err := utils.DiscoverSourceFiles(patterns)
	if err != nil {
		return fmt.Errorf("failed to discover input files: %w", err)
	}
	if err := a.checkOutputCollisions(files); err != nil {
		return err
	}

	runID := uuid.NewString()
	a.logger.Info("batch.started", "run_id", runID, "files", len(files), "concurrency", concurrency)

	results, skipped := a.convertAll(files, concurrency)

	summary := utils.ProcessingSummary{
		RunID:      runID,
		StartTime:  startTime,
		TotalFiles: len(files),
	}
	for _, result := range results {
		if result == nil {
			continue
		}
		if result.Success {
			summary.SuccessfulFiles++
			summary.TotalSources += result.Stats.Sources
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   result.FilePath,
				OutputFile:  result.OutputFile,
				Groups:      result.Stats.Groups,
				Sources:     result.Stats.Sources,
				ProcessTime: result.Stats.ProcessingTime,
			})
			fmt.Fprintf(a.stdout, "Saved %s\n", result.OutputFile)
			continue
		}
		summary.FailedFiles++
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    result.FilePath,
			ErrorMessage: result.Cause.Error(),
			ErrorType:    result.Code,
		})
		errorColor.Fprintf(a.stderr, "  ✗ %s: %v\n", result.FilePath, result.Cause)
	}
	summary.EndTime = time.Now()

	a.printSummary(summary, skipped)
	a.logger.Info("batch.finished", "run_id", runID, "succeeded", summary.SuccessfulFiles,
		"failed", summary.FailedFiles, "skipped", skipped)

	if summaryPath != "" {
		if err := utils.WriteSummaryLog(summary, summaryPath); err != nil {
			return err
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d files failed", summary.FailedFiles, len(files))
	}
	return nil
}

// convertAll runs the conversions on a pool of workers. The returned slice is
// in the order of files; entries for skipped files are nil.
func (a *app) convertAll(files []string, concurrency int) ([]*converter.Result, int) {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(files) {
		concurrency = len(files)
	}

	conv := a.converter()
	continueOnError := a.cfg.Batch.ShouldContinueOnError()

	results := make([]*converter.Result, len(files))
	jobs := make(chan int)
	var failed atomic.Bool
	var skipped atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if !continueOnError && failed.Load() {
					skipped.Add(1)
					continue
				}
				result := conv.Run(files[i])
				if !result.Success {
					failed.Store(true)
				}
				results[i] = &result
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, int(skipped.Load())
}

// checkOutputCollisions rejects inputs whose output paths coincide. Inputs
// whose output path cannot be derived are left to fail on their own.
func (a *app) checkOutputCollisions(files []string) error {
	owners := make(map[string]string, len(files))
	for _, file := range files {
		out, err := converter.OutputPath(file, a.cfg.Output.Naming)
		if err != nil {
			continue
		}
		if first, ok := owners[out]; ok {
			return fmt.Errorf("%s and %s would both be saved as %s", first, file, out)
		}
		owners[out] = file
	}
	return nil
}

func (a *app) printSummary(summary utils.ProcessingSummary, skipped int) {
	fmt.Fprintln(a.stderr)
	stepColor.Fprintln(a.stderr, "=== Processing Complete ===")
	fmt.Fprintf(a.stderr, "Total files:     %d\n", summary.TotalFiles)
	successColor.Fprintf(a.stderr, "Successful:      %d\n", summary.SuccessfulFiles)
	if summary.FailedFiles > 0 {
		errorColor.Fprintf(a.stderr, "Errors:          %d\n", summary.FailedFiles)
	} else {
		fmt.Fprintf(a.stderr, "Errors:          %d\n", summary.FailedFiles)
	}
	if skipped > 0 {
		fmt.Fprintf(a.stderr, "Skipped:         %d\n", skipped)
	}
	fmt.Fprintf(a.stderr, "Sources:         %d\n", summary.TotalSources)
	dimColor.Fprintf(a.stderr, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))
}
