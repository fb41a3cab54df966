package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ginjaninja78/nrml2hdf5/internal/converter"
	"github.com/ginjaninja78/nrml2hdf5/internal/nrml"
	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

// fakeWriter stands in for the HDF5 store.
type fakeWriter struct {
	mu    sync.Mutex
	paths []string
}

func (w *fakeWriter) Write(path string, model *sourcemodel.SourceModel) (int, error) {
	w.mu.Lock()
	w.paths = append(w.paths, path)
	w.mu.Unlock()
	return 3, os.WriteFile(path, []byte("hdf5"), 0644)
}

func withWriter(w converter.Writer) func(*app) {
	return func(a *app) {
		a.convOpts = append(a.convOpts, converter.WithWriter(w))
	}
}

func withContainerReader(read func(string) (*sourcemodel.SourceModel, error)) func(*app) {
	return func(a *app) { a.readContainer = read }
}

type run struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args []string, hooks ...func(*app)) run {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr, hooks...)
	return run{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func fixture(t *testing.T, name, dest string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "internal", "nrml", "testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return dest
}

// =============================================================================
// SINGLE FILE CONVERSION
// =============================================================================

func TestConvert_PrintsSavedPath(t *testing.T) {
	dir := t.TempDir()
	fixture(t, "area_source.xml", filepath.Join(dir, "quakes", "area_source.xml"))
	t.Chdir(dir)

	writer := &fakeWriter{}
	got := runCLI(t, []string{"quakes/area_source.xml"}, withWriter(writer))

	if got.code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", got.code, got.stderr)
	}
	if got.stdout != "Saved quakes/area_source.hdf5\n" {
		t.Fatalf("unexpected stdout %q", got.stdout)
	}
	if len(writer.paths) != 1 || writer.paths[0] != "quakes/area_source.hdf5" {
		t.Fatalf("unexpected writes %v", writer.paths)
	}
}

func TestConvert_UsageErrors(t *testing.T) {
	cases := [][]string{
		{},
		{"a.xml", "b.xml"},
		{"--no-such-flag", "a.xml"},
	}
	for _, args := range cases {
		got := runCLI(t, args, withWriter(&fakeWriter{}))
		if got.code != exitUsage {
			t.Fatalf("%v: expected exit %d, got %d", args, exitUsage, got.code)
		}
		if !strings.Contains(got.stderr, "Error:") || !strings.Contains(got.stderr, "Usage:") {
			t.Fatalf("%v: expected error and usage on stderr, got %q", args, got.stderr)
		}
		if got.stdout != "" {
			t.Fatalf("%v: expected empty stdout, got %q", args, got.stdout)
		}
	}
}

func TestConvert_MissingFile(t *testing.T) {
	input := filepath.Join(t.TempDir(), "missing.xml")

	got := runCLI(t, []string{input})

	if got.code != exitFailure {
		t.Fatalf("expected exit 1, got %d", got.code)
	}
	if !strings.Contains(got.stderr, "Error:") || !strings.Contains(got.stderr, "missing.xml") {
		t.Fatalf("unexpected stderr %q", got.stderr)
	}
	if got.stdout != "" {
		t.Fatalf("expected empty stdout, got %q", got.stdout)
	}
	if _, err := os.Stat(strings.Replace(input, ".xml", ".hdf5", 1)); !os.IsNotExist(err) {
		t.Fatalf("no output file may be created")
	}
}

func TestConvert_FailureReportedOnce(t *testing.T) {
	got := runCLI(t, []string{filepath.Join(t.TempDir(), "missing.xml")})

	if n := strings.Count(got.stderr, "Error:"); got.code != exitFailure || n != 1 {
		t.Fatalf("expected the failure once on stderr, got %d times:\n%s", n, got.stderr)
	}
	if strings.Contains(got.stderr, "conversion.failed") {
		t.Fatalf("failure log must stay below the default level:\n%s", got.stderr)
	}

	verbose := runCLI(t, []string{"--verbose", filepath.Join(t.TempDir(), "missing.xml")})
	if !strings.Contains(verbose.stderr, "conversion.failed") {
		t.Fatalf("expected the failure log with --verbose:\n%s", verbose.stderr)
	}
}

func TestConvert_MalformedXML(t *testing.T) {
	input := filepath.Join(t.TempDir(), "broken.xml")
	if err := os.WriteFile(input, []byte("<nrml><sourceModel"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := runCLI(t, []string{input}, withWriter(&fakeWriter{}))

	if got.code != exitFailure || !strings.Contains(got.stderr, "malformed XML") {
		t.Fatalf("expected malformed XML failure, got %d %q", got.code, got.stderr)
	}
}

func TestConvert_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("output:\n  naming: last\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	input := fixture(t, "area_source.xml", filepath.Join(dir, "area_source.xml"))

	got := runCLI(t, []string{"--config", cfgPath, input}, withWriter(&fakeWriter{}))

	if got.code != exitFailure || !strings.Contains(got.stderr, "invalid configuration") {
		t.Fatalf("expected configuration failure, got %d %q", got.code, got.stderr)
	}
}

func TestConvert_VerboseLogsToStderr(t *testing.T) {
	input := fixture(t, "area_source.xml", filepath.Join(t.TempDir(), "area_source.xml"))

	got := runCLI(t, []string{"--verbose", input}, withWriter(&fakeWriter{}))

	if got.code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", got.code, got.stderr)
	}
	if !strings.Contains(got.stderr, "nrml.parsed") || strings.Contains(got.stdout, "nrml.parsed") {
		t.Fatalf("expected debug logs on stderr only, stdout=%q stderr=%q", got.stdout, got.stderr)
	}
	if !strings.HasPrefix(got.stdout, "Saved ") {
		t.Fatalf("unexpected stdout %q", got.stdout)
	}
}

// =============================================================================
// BATCH
// =============================================================================

func TestBatch_ConvertsAllMatches(t *testing.T) {
	dir := t.TempDir()
	fixture(t, "area_source.xml", filepath.Join(dir, "models", "b", "area.xml"))
	fixture(t, "mixed_04.xml", filepath.Join(dir, "models", "a", "mixed.xml"))
	fixture(t, "multi_point.xml", filepath.Join(dir, "models", "c", "d", "multi.xml"))
	summary := filepath.Join(dir, "logs", "summary.log")
	t.Chdir(dir)

	got := runCLI(t, []string{"batch", "models/**/*.xml", "--summary", summary}, withWriter(&fakeWriter{}))

	if got.code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", got.code, got.stderr)
	}
	want := "Saved models/a/mixed.hdf5\nSaved models/b/area.hdf5\nSaved models/c/d/multi.hdf5\n"
	if got.stdout != want {
		t.Fatalf("expected %q, got %q", want, got.stdout)
	}

	data, err := os.ReadFile(summary)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(data), "Successful:     3") || strings.Contains(string(data), "Failed Files:") {
		t.Fatalf("unexpected summary:\n%s", data)
	}
}

func TestBatch_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	fixture(t, "area_source.xml", filepath.Join(dir, "area.xml"))
	fixture(t, "mixed_04.xml", filepath.Join(dir, "mixed.xml"))
	if err := os.WriteFile(filepath.Join(dir, "broken.xml"), []byte("<nrml>"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := runCLI(t, []string{"batch", filepath.Join(dir, "*.xml")}, withWriter(&fakeWriter{}))

	if got.code != exitFailure {
		t.Fatalf("expected exit 1, got %d", got.code)
	}
	if strings.Count(got.stdout, "Saved ") != 2 {
		t.Fatalf("expected two saved files, got %q", got.stdout)
	}
	if !strings.Contains(got.stderr, "broken.xml") || !strings.Contains(got.stderr, "1 of 3 files failed") {
		t.Fatalf("unexpected stderr %q", got.stderr)
	}
}

func TestBatch_StopsAfterFailure(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a_broken.xml"), []byte("<nrml>"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fixture(t, "area_source.xml", filepath.Join(dir, "b_area.xml"))
	fixture(t, "mixed_04.xml", filepath.Join(dir, "c_mixed.xml"))
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("batch:\n  continue_on_error: false\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	writer := &fakeWriter{}
	got := runCLI(t, []string{"--config", cfgPath, "batch", "--concurrency", "1", filepath.Join(dir, "*.xml")}, withWriter(writer))

	if got.code != exitFailure {
		t.Fatalf("expected exit 1, got %d", got.code)
	}
	if got.stdout != "" || len(writer.paths) != 0 {
		t.Fatalf("expected no conversions after the failure, stdout=%q writes=%v", got.stdout, writer.paths)
	}
	if !strings.Contains(got.stderr, "Skipped:         2") {
		t.Fatalf("expected skipped count, got %q", got.stderr)
	}
}

func TestBatch_RejectsOutputCollisions(t *testing.T) {
	dir := t.TempDir()
	fixture(t, "area_source.xml", filepath.Join(dir, "a.hdf5.xml"))
	fixture(t, "area_source.xml", filepath.Join(dir, "a.xml.hdf5"))

	writer := &fakeWriter{}
	got := runCLI(t, []string{"batch", filepath.Join(dir, "a.*")}, withWriter(writer))

	if got.code != exitFailure || !strings.Contains(got.stderr, "would both be saved as") {
		t.Fatalf("expected collision failure, got %d %q", got.code, got.stderr)
	}
	if len(writer.paths) != 0 {
		t.Fatalf("no file may be converted, got %v", writer.paths)
	}
}

func TestBatch_NoMatches(t *testing.T) {
	got := runCLI(t, []string{"batch", filepath.Join(t.TempDir(), "*.xml")})

	if got.code != exitFailure || !strings.Contains(got.stderr, "no files match") {
		t.Fatalf("expected discovery failure, got %d %q", got.code, got.stderr)
	}
}

// =============================================================================
// OTHER COMMANDS
// =============================================================================

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	input := fixture(t, "mixed_04.xml", filepath.Join(dir, "mixed.xml"))

	got := runCLI(t, []string{"validate", input})
	if got.code != exitOK || got.stdout != "Valid "+input+": 2 groups, 3 sources\n" {
		t.Fatalf("unexpected result %d %q %q", got.code, got.stdout, got.stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "mixed.hdf5")); !os.IsNotExist(err) {
		t.Fatalf("validate must not write a container")
	}

	bad := fixture(t, "area_source.xml", filepath.Join(dir, "bad.xml"))
	data, _ := os.ReadFile(bad)
	data = []byte(strings.Replace(string(data), `probability="0.7"`, `probability="0.9"`, 1))
	if err := os.WriteFile(bad, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got = runCLI(t, []string{"validate", bad})
	if got.code != exitFailure || !strings.Contains(got.stderr, "invalid source model") {
		t.Fatalf("expected validation failure, got %d %q", got.code, got.stderr)
	}
}

func TestInspect(t *testing.T) {
	model, err := nrml.Parse(filepath.Join("..", "internal", "nrml", "testdata", "area_source.xml"), nrml.DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var requested string
	read := func(path string) (*sourcemodel.SourceModel, error) {
		requested = path
		return model, nil
	}

	got := runCLI(t, []string{"inspect", "quakes/area_source.hdf5"}, withContainerReader(read))

	if got.code != exitOK || requested != "quakes/area_source.hdf5" {
		t.Fatalf("unexpected result %d %q (read %q)", got.code, got.stderr, requested)
	}
	for _, want := range []string{"Area Source Model", "areaSource", "Active Shallow Crust", "group 1"} {
		if !strings.Contains(got.stdout, want) {
			t.Fatalf("expected %q in output:\n%s", want, got.stdout)
		}
	}
}

func TestConvertThenInspect(t *testing.T) {
	for _, tc := range []struct {
		file  string
		wants []string
	}{
		{"area_source.xml", []string{"Area Source Model", "group 1", "Active Shallow Crust", "areaSource"}},
		{"mixed_04.xml", []string{"Stable Continental Crust", "Active Shallow Crust", "simpleFaultSource", "complexFaultSource"}},
		{"multi_point.xml", []string{"multiPointSource"}},
	} {
		t.Run(tc.file, func(t *testing.T) {
			input := fixture(t, tc.file, filepath.Join(t.TempDir(), tc.file))
			output := strings.Replace(input, ".xml", ".hdf5", 1)

			converted := runCLI(t, []string{input})
			if converted.code != exitOK || converted.stdout != "Saved "+output+"\n" {
				t.Fatalf("convert: exit %d stdout %q stderr %q", converted.code, converted.stdout, converted.stderr)
			}

			got := runCLI(t, []string{"inspect", output})
			if got.code != exitOK {
				t.Fatalf("inspect: exit %d: %s", got.code, got.stderr)
			}
			for _, want := range tc.wants {
				if !strings.Contains(got.stdout, want) {
					t.Fatalf("expected %q in output:\n%s", want, got.stdout)
				}
			}
		})
	}
}

func TestInspect_MissingContainer(t *testing.T) {
	got := runCLI(t, []string{"inspect", filepath.Join(t.TempDir(), "absent.hdf5")})
	if got.code != exitFailure || !strings.Contains(got.stderr, "Error:") {
		t.Fatalf("expected failure, got %d %q", got.code, got.stderr)
	}
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	input := fixture(t, "mixed_04.xml", filepath.Join(dir, "mixed.xml"))

	got := runCLI(t, []string{"report", input})

	want := filepath.Join(dir, "mixed.xlsx")
	if got.code != exitOK || got.stdout != "Saved "+want+"\n" {
		t.Fatalf("unexpected result %d %q %q", got.code, got.stdout, got.stderr)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected workbook: %v", err)
	}

	got = runCLI(t, []string{"report", input, "--out", filepath.Join(dir, "out", "inventory.xlsx")})
	if got.code != exitOK {
		t.Fatalf("expected exit 0 with --out, got %d %q", got.code, got.stderr)
	}
}

func TestVersion(t *testing.T) {
	got := runCLI(t, []string{"version"})
	if got.code != exitOK || !strings.Contains(got.stdout, "Version:        "+Version) {
		t.Fatalf("unexpected version output %q", got.stdout)
	}
}
