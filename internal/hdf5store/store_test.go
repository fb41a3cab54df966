package hdf5store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ginjaninja78/nrml2hdf5/internal/nrml"
	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

func parseFixture(t *testing.T, name string) *sourcemodel.SourceModel {
	t.Helper()
	model, err := nrml.Parse(filepath.Join("..", "nrml", "testdata", name), nrml.DefaultOptions())
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return model
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, name := range []string{"area_source.xml", "mixed_04.xml", "multi_point.xml"} {
		t.Run(name, func(t *testing.T) {
			model := parseFixture(t, name)

			decoded, err := Decode(Encode(model))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(model, decoded) {
				t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", model, decoded)
			}
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	model := parseFixture(t, "mixed_04.xml")
	if !reflect.DeepEqual(Encode(model), Encode(model)) {
		t.Fatalf("expected identical trees for the same model")
	}
}

func TestEncode_Layout(t *testing.T) {
	tree := Encode(parseFixture(t, "area_source.xml"))
	root := tree.Root

	if root.Name != RootName {
		t.Fatalf("expected root %q, got %q", RootName, root.Name)
	}
	if format, _ := root.String("format"); format != FormatName {
		t.Fatalf("expected format attribute %q, got %q", FormatName, format)
	}
	if n, _ := root.Int("num_groups"); n != 1 {
		t.Fatalf("expected num_groups=1, got %d", n)
	}
	if d, _ := root.Float("settings_area_source_discretization"); d != 10 {
		t.Fatalf("expected settings attribute 10, got %g", d)
	}

	src := root.Group("grp-000").Group("src-0000")
	if src == nil {
		t.Fatalf("expected /sourceModel/grp-000/src-0000")
	}
	if kind, _ := src.String("kind"); kind != string(sourcemodel.KindArea) {
		t.Fatalf("unexpected kind %q", kind)
	}
	if got := len(src.Dataset("points")); got != 8 {
		t.Fatalf("expected 4 flattened lon/lat pairs, got %d values", got)
	}
	if got := len(src.Dataset("nodal_planes")); got != 8 {
		t.Fatalf("expected 2 flattened nodal planes, got %d values", got)
	}
	if src.Dataset("edge-000") != nil {
		t.Fatalf("did not expect edges on an area source")
	}
	if _, ok := src.Attr("rake"); ok {
		t.Fatalf("did not expect a rake attribute on an area source")
	}

	mfd := src.Group("mfd")
	if got := len(mfd.Dataset("binned_rates")); got != 20 {
		t.Fatalf("expected 10 binned (mag, rate) pairs, got %d values", got)
	}
	if mfd.Dataset("occur_rates") != nil {
		t.Fatalf("empty datasets must not be written")
	}
}

func TestEncode_MultiPointArrays(t *testing.T) {
	mfd := Encode(parseFixture(t, "multi_point.xml")).Root.Group("grp-000").Group("src-0000").Group("mfd")

	if size, _ := mfd.Int("size"); size != 2 {
		t.Fatalf("expected size 2, got %d", size)
	}
	if got := mfd.Dataset("lengths"); !reflect.DeepEqual(got, []float64{3, 3}) {
		t.Fatalf("unexpected lengths %v", got)
	}
	if got := len(mfd.Dataset("occur_rates")); got != 6 {
		t.Fatalf("expected 6 concatenated rates, got %d", got)
	}
}

func TestDecode_RejectsForeignTrees(t *testing.T) {
	cases := []struct {
		name string
		tree *Tree
		want string
	}{
		{"nil", nil, "no root entry"},
		{"wrong root", &Tree{Root: NewGroup("data")}, `root entry is "data"`},
		{"no format", &Tree{Root: NewGroup(RootName)}, "unknown container format"},
	}

	newer := NewGroup(RootName)
	newer.SetAttr("format", FormatName)
	newer.SetAttr("format_version", int64(FormatVersion+1))
	cases = append(cases, struct {
		name string
		tree *Tree
		want string
	}{"newer version", &Tree{Root: newer}, "is newer than"})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.tree)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDecode_ToleratesAttributeWidths(t *testing.T) {
	tree := Encode(parseFixture(t, "area_source.xml"))
	tree.Root.SetAttr("investigation_time", float32(1))
	tree.Root.SetAttr("num_groups", int32(1))
	tree.Root.SetAttr("name", []byte("Area Source Model\x00"))

	model, err := Decode(tree)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if model.InvestigationTime != 1 || model.Name != "Area Source Model" {
		t.Fatalf("unexpected header %q %g", model.Name, model.InvestigationTime)
	}
}

func TestStore_WriteRejectsNilModel(t *testing.T) {
	if _, err := (Store{Atomic: true}).Write(filepath.Join(t.TempDir(), "out.hdf5"), nil); err == nil {
		t.Fatalf("expected error for nil model")
	}
}

func TestGroup_Count(t *testing.T) {
	root := NewGroup(RootName)
	root.AddDataset("a", []float64{1})
	child := root.AddGroup("child")
	child.AddDataset("b", []float64{1, 2})
	child.AddDataset("empty", nil)

	groups, datasets := root.Count()
	if groups != 2 || datasets != 2 {
		t.Fatalf("expected 2 groups and 2 datasets, got %d and %d", groups, datasets)
	}
}

var fixtures = []string{"area_source.xml", "mixed_04.xml", "multi_point.xml"}

func TestWriteFile_ReadFileRoundTrip(t *testing.T) {
	for _, name := range fixtures {
		t.Run(name, func(t *testing.T) {
			model := parseFixture(t, name)
			path := filepath.Join(t.TempDir(), "model.hdf5")

			if err := WriteFile(path, model); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !reflect.DeepEqual(model, got) {
				t.Fatalf("file round trip mismatch\nwant %+v\ngot  %+v", model, got)
			}
		})
	}
}

func TestWriteFile_ByteIdentical(t *testing.T) {
	for _, name := range fixtures {
		t.Run(name, func(t *testing.T) {
			model := parseFixture(t, name)
			dir := t.TempDir()
			first, second := filepath.Join(dir, "a.hdf5"), filepath.Join(dir, "b.hdf5")

			for _, path := range []string{first, second} {
				if err := WriteFile(path, model); err != nil {
					t.Fatalf("write %s: %v", path, err)
				}
			}
			a, err := os.ReadFile(first)
			if err != nil {
				t.Fatal(err)
			}
			b, err := os.ReadFile(second)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(a, b) {
				t.Fatalf("expected identical files, got %d and %d bytes", len(a), len(b))
			}
		})
	}
}

// A model with more groups and sources than one symbol table group can link.
func TestWriteFile_ReadFileRoundTrip_ManyEntries(t *testing.T) {
	base := parseFixture(t, "area_source.xml")
	model := *base
	model.Groups = nil
	for i := 0; i < 40; i++ {
		group := *base.Groups[0]
		group.Name = fmt.Sprintf("group %d", i)
		group.Sources = nil
		for j := 0; j < 3+i*2; j++ {
			src := *base.Groups[0].Sources[0]
			src.ID = fmt.Sprintf("%d-%d", i, j)
			group.Sources = append(group.Sources, &src)
		}
		model.Groups = append(model.Groups, &group)
	}

	path := filepath.Join(t.TempDir(), "many.hdf5")
	if err := WriteFile(path, &model); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(&model, got) {
		t.Fatalf("file round trip mismatch for %d groups", len(model.Groups))
	}
}

func TestLoadTree_StoresScalarsAsDatasets(t *testing.T) {
	model := parseFixture(t, "mixed_04.xml")
	path := filepath.Join(t.TempDir(), "model.hdf5")
	if err := WriteFile(path, model); err != nil {
		t.Fatalf("write: %v", err)
	}

	tree, err := LoadTree(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	src := tree.Root.Group("grp-001").Group("src-0000")
	if src == nil {
		t.Fatalf("expected /sourceModel/grp-001/src-0000")
	}
	if kind, _ := src.String("kind"); kind != string(sourcemodel.KindSimpleFault) {
		t.Fatalf("unexpected kind %q", kind)
	}
	if kind, _ := src.Group("mfd").String("kind"); kind == "" {
		t.Fatalf("expected the mfd kind to survive the file")
	}
	if n, _ := tree.Root.Int("num_groups"); n != 2 {
		t.Fatalf("expected num_groups=2, got %d", n)
	}
	for _, d := range src.Datasets {
		if strings.HasPrefix(d.Name, "_") {
			t.Fatalf("reserved dataset %q leaked into the tree", d.Name)
		}
	}
}

func TestPaginate(t *testing.T) {
	var children []*Group
	for i := 0; i < 100; i++ {
		children = append(children, NewGroup(sourceName(i)))
	}

	top, err := paginate(children, maxLinks-4, maxNameBytes-28)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(top) >= len(children) || !isPage(top[0].Name) {
		t.Fatalf("expected pages, got %d top level groups", len(top))
	}

	var flat []*Group
	for _, page := range top {
		if !fits(page.Groups, maxLinks, maxNameBytes) {
			t.Fatalf("page %s overflows a group", page.Name)
		}
		flat = append(flat, page.Groups...)
	}
	if !reflect.DeepEqual(flat, children) {
		t.Fatalf("pages must keep the children in order")
	}

	few := children[:3]
	if got, _ := paginate(few, maxLinks, maxNameBytes); !reflect.DeepEqual(got, few) {
		t.Fatalf("expected children that fit to be linked directly")
	}
}

func TestPaginate_RejectsOversizedNames(t *testing.T) {
	huge := NewGroup(strings.Repeat("x", maxNameBytes))
	if _, err := paginate([]*Group{huge}, maxLinks, maxNameBytes); err == nil {
		t.Fatalf("expected error for a name longer than a group can hold")
	}
}

func TestColumns_RejectsReservedNames(t *testing.T) {
	g := NewGroup("g")
	g.AddDataset(numValues, []float64{1})
	if _, err := columns(g); err == nil {
		t.Fatalf("expected error for reserved dataset name")
	}
}

func TestTreePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/", ""},
		{"/sourceModel/", "sourceModel"},
		{"/sourceModel/_p0001/grp-040/", "sourceModel/grp-040"},
		{"/sourceModel/grp-000/_p0000/src-0031/mfd/binned_rates", "sourceModel/grp-000/src-0031/mfd/binned_rates"},
	}
	for _, tc := range cases {
		if got := treePath(tc.in); got != tc.want {
			t.Fatalf("treePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
