// =============================================================================
// NRML to HDF5 Converter - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the converter, including:
//   - Source file discovery (doublestar globs)
//   - Atomic writes through a temporary sibling file
//   - Batch summary log generation
//
// ATOMIC WRITE STRATEGY:
//   - Output is written to "<dir>/.<name>.<uuid>.tmp" next to the destination
//   - The temporary file is renamed over the destination only on success
//   - On any failure the temporary file is removed and the destination is
//     left untouched
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
)

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverSourceFiles expands each pattern with doublestar glob semantics
// ("**" matches any number of directories).
//
// PARAMETERS:
//   - patterns: Glob patterns or plain file paths.
//
// RETURNS:
//   - The matching regular files, deduplicated and sorted.
//   - An error if a pattern is malformed or matches nothing.
func DiscoverSourceFiles(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			clean := filepath.Clean(match)
			if !seen[clean] {
				seen[clean] = true
				files = append(files, clean)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureParentDir creates the directory that will contain path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// =============================================================================
// ATOMIC WRITES
// =============================================================================

// TempPath returns a unique temporary sibling of dest.
func TempPath(dest string) string {
	dir, name := filepath.Split(dest)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", name, uuid.New().String()))
}

// AtomicWrite calls write with a temporary path next to dest and renames the
// result over dest once write returns nil.
//
// PARAMETERS:
//   - dest: The final destination path.
//   - write: Creates and fully writes the file at the path it is given. It
//     must close every handle it opens before returning.
//
// RETURNS:
//   - An error from write or from the rename. In both cases the temporary
//     file has been removed and dest is unchanged.
func AtomicWrite(dest string, write func(tmpPath string) error) (err error) {
	tmp := TempPath(dest)

	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = errors.Join(err, fmt.Errorf("failed to remove temporary file: %w", rmErr))
			}
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if _, err = os.Stat(tmp); err != nil {
		return fmt.Errorf("temporary file was not created: %w", err)
	}
	if err = os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dest, err)
	}
	return nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a batch run.
type ProcessingSummary struct {
	RunID           string
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalSources    int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully converted file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFile  string
	Groups      int
	Sources     int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
}

// WriteSummaryLog writes a processing summary to path.
//
// RETURNS:
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, path string) error {
	if err := EnsureParentDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	rule := strings.Repeat("=", 80) + "\n"
	thin := strings.Repeat("-", 80) + "\n"

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "NRML to HDF5 Converter - Processing Summary\n"+rule+"\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:    %d\n"+
		"  Successful:     %d\n"+
		"  Failed:         %d\n"+
		"  Total Sources:  %d\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalSources)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n" + thin)
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Output:       %s\n", pf.OutputFile)
			fmt.Fprintf(writer, "  Groups:       %d\n", pf.Groups)
			fmt.Fprintf(writer, "  Sources:      %d\n", pf.Sources)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n" + thin)
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			if ff.ErrorType != "" {
				fmt.Fprintf(writer, "  Type:  %s\n", ff.ErrorType)
			}
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString(rule + "End of Summary\n")

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush summary file: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
