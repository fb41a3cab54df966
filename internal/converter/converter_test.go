package converter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/ginjaninja78/nrml2hdf5/internal/config"
	"github.com/ginjaninja78/nrml2hdf5/internal/nrml"
	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
	"github.com/ginjaninja78/nrml2hdf5/pkg/utils"
)

type recordingWriter struct {
	paths []string
	model *sourcemodel.SourceModel
	err   error
}

func (w *recordingWriter) Write(path string, model *sourcemodel.SourceModel) (int, error) {
	w.paths = append(w.paths, path)
	w.model = model
	if w.err != nil {
		return 0, w.err
	}
	return 7, os.WriteFile(path, []byte("hdf5"), 0644)
}

func copyFixture(t *testing.T, name, dest string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "nrml", "testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if err := utils.EnsureParentDir(dest); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	cases := []struct {
		in, naming, want string
		wantErr          bool
	}{
		{"quakes/area_source.xml", config.NamingFirst, "quakes/area_source.hdf5", false},
		{"model.v1.xml.xml", config.NamingFirst, "model.v1.hdf5.xml", false},
		{"model.v1.xml.xml", config.NamingSuffix, "model.v1.xml.hdf5", false},
		{"quakes/area_source.xml", config.NamingSuffix, "quakes/area_source.hdf5", false},
		{"model.xml.backup", config.NamingFirst, "model.hdf5.backup", false},
		{"model.xml.backup", config.NamingSuffix, "", true},
		{"model.nrml", config.NamingFirst, "", true},
		{"model.xml", "last", "", true},
	}

	for _, tc := range cases {
		got, err := OutputPath(tc.in, tc.naming)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("OutputPath(%q, %q): expected error, got %q", tc.in, tc.naming, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("OutputPath(%q, %q): expected %q, got %q (%v)", tc.in, tc.naming, tc.want, got, err)
		}
	}
}

func TestRun_AreaSource(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "quakes", "area_source.xml")
	copyFixture(t, "area_source.xml", input)

	writer := &recordingWriter{}
	result := New(nil, WithWriter(writer)).Run(input)

	if !result.Success {
		t.Fatalf("expected success, got %v", result.Error)
	}
	want := filepath.Join(dir, "quakes", "area_source.hdf5")
	if result.OutputFile != want {
		t.Fatalf("expected output %s, got %s", want, result.OutputFile)
	}
	if len(writer.paths) != 1 || writer.paths[0] != want {
		t.Fatalf("expected one write to %s, got %v", want, writer.paths)
	}
	if result.Stats.Groups != 1 || result.Stats.Sources != 1 || result.Stats.Datasets != 7 {
		t.Fatalf("unexpected stats %+v", result.Stats)
	}
	if writer.model.Settings.AreaSourceDiscretization != 10 || writer.model.Settings.MFDBinWidth != 0.1 {
		t.Fatalf("expected default discretization policy, got %+v", writer.model.Settings)
	}
}

func TestRun_PassesConfiguredSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Converter.AreaSourceDiscretization = 5
	cfg.Converter.MFDBinWidth = 0.2

	var got nrml.Options
	parse := func(path string, opts nrml.Options) (*sourcemodel.SourceModel, error) {
		got = opts
		return nil, errors.New("stop")
	}

	New(cfg, WithParser(parse), WithWriter(&recordingWriter{})).Run("model.xml")
	if got.AreaSourceDiscretization != 5 || got.MFDBinWidth != 0.2 {
		t.Fatalf("expected configured settings, got %+v", got)
	}
}

func TestRun_NonexistentInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "missing.xml")

	result := New(nil).Run(input)

	if result.Success || result.Code != CodeParseFailed {
		t.Fatalf("expected parse failure, got %+v", result)
	}
	if !errors.Is(result.Cause, os.ErrNotExist) {
		t.Fatalf("expected not-exist cause, got %v", result.Cause)
	}
	if !goerrors.IsCategory(result.Error, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", result.Error)
	}
	if utils.FileExists(filepath.Join(dir, "missing.hdf5")) {
		t.Fatalf("no output file may be created")
	}
}

func TestRun_MalformedXML(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.xml")
	if err := os.WriteFile(input, []byte("<nrml><sourceModel>"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := New(nil).Run(input)

	if result.Success || result.Code != CodeParseFailed {
		t.Fatalf("expected parse failure, got %+v", result)
	}
	if !strings.Contains(result.Cause.Error(), "malformed XML") {
		t.Fatalf("expected malformed XML cause, got %v", result.Cause)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the input file in %s, got %d entries", dir, len(entries))
	}
}

func TestRun_InvalidModelIsNotWritten(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.xml")
	copyFixture(t, "area_source.xml", input)
	data, _ := os.ReadFile(input)
	data = []byte(strings.Replace(string(data), `probability="0.7"`, `probability="0.9"`, 1))
	if err := os.WriteFile(input, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	writer := &recordingWriter{}
	result := New(nil, WithWriter(writer)).Run(input)

	if result.Code != CodeModelInvalid {
		t.Fatalf("expected %s, got %q (%v)", CodeModelInvalid, result.Code, result.Error)
	}
	var modelErr *sourcemodel.ModelError
	if !errors.As(result.Cause, &modelErr) {
		t.Fatalf("expected *ModelError cause, got %T", result.Cause)
	}
	if len(writer.paths) != 0 {
		t.Fatalf("writer must not be called for an invalid model")
	}
}

func TestRun_WriteFailure(t *testing.T) {
	input := filepath.Join(t.TempDir(), "area_source.xml")
	copyFixture(t, "area_source.xml", input)

	diskFull := errors.New("no space left on device")
	result := New(nil, WithWriter(&recordingWriter{err: diskFull})).Run(input)

	if result.Success || result.Code != CodeWriteFailed {
		t.Fatalf("expected write failure, got %+v", result)
	}
	if !errors.Is(result.Cause, diskFull) {
		t.Fatalf("expected cause to be kept, got %v", result.Cause)
	}
	if !goerrors.IsCategory(result.Error, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", result.Error)
	}
}

func TestRun_RejectsInputWithoutXML(t *testing.T) {
	called := false
	parse := func(string, nrml.Options) (*sourcemodel.SourceModel, error) {
		called = true
		return nil, nil
	}

	result := New(nil, WithParser(parse)).Run("model.nrml")

	if result.Code != CodeOutputInvalid || called {
		t.Fatalf("expected rejection before parsing, got code %q parsed=%v", result.Code, called)
	}
}

func TestLoad(t *testing.T) {
	input := filepath.Join(t.TempDir(), "mixed.xml")
	copyFixture(t, "mixed_04.xml", input)

	result := New(nil).Load(input)
	if !result.Success {
		t.Fatalf("load: %v", result.Cause)
	}
	if result.Model == nil || result.Stats.Sources != 3 || result.Stats.Groups != 2 {
		t.Fatalf("unexpected load result %+v", result.Stats)
	}
	if utils.FileExists(filepath.Join(filepath.Dir(input), "mixed.hdf5")) {
		t.Fatalf("load must not write a container")
	}

	missing := New(nil).Load(filepath.Join(t.TempDir(), "absent.xml"))
	if missing.Success || missing.Model != nil || !goerrors.IsCategory(missing.Error, goerrors.CategoryValidation) {
		t.Fatalf("expected categorized failure, got %+v", missing)
	}
}
