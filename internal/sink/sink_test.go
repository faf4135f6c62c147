package sink

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ulikunitz/xz"

	kerrors "github.com/FocuswithJustin/kbdgen/core/errors"
)

func testFiles() []File {
	return []File{
		{Path: "manifest.json", Data: []byte(`{"name":"__MSG_name__"}`)},
		{Path: "_locales/en/messages.json", Data: []byte(`{"name":{"message":"Keyboards"}}`)},
		{Path: "_locales/nb/messages.json", Data: []byte(`{"name":{"message":"Tastatur"}}`)},
		{Path: "background.js", Data: []byte("Keyboard.install({});\n")},
	}
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() == MarkerFile {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	return out
}

func treeOf(files []File) map[string]string {
	out := map[string]string{}
	for _, f := range files {
		out[f.Path] = string(f.Data)
	}
	return out
}

func TestDirSinkWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "chromeos")
	s := NewDirSink(dir)

	report, err := s.Write(context.Background(), testFiles())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if report.Unchanged {
		t.Error("first write reported unchanged")
	}
	if len(report.Files) != 4 || report.Files[0].Digest != Digest(testFiles()[0].Data) {
		t.Errorf("report = %+v", report)
	}
	if diff := cmp.Diff(treeOf(testFiles()), readTree(t, dir)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(dir))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("staging directories left behind: %v", entries)
	}
}

func TestDirSinkSkipsUnchanged(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewDirSink(dir)

	if _, err := s.Write(context.Background(), testFiles()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	report, err := s.Write(context.Background(), testFiles())
	if err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	if !report.Unchanged {
		t.Error("identical output should be reported unchanged")
	}
	again, err := os.Stat(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !os.SameFile(info, again) {
		t.Error("unchanged output was rewritten")
	}
}

func TestDirSinkReplacesStaleFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewDirSink(dir)

	if _, err := s.Write(context.Background(), testFiles()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	next := testFiles()[:2]
	next[0] = File{Path: "manifest.json", Data: []byte(`{"version":"2"}`)}
	report, err := s.Write(context.Background(), next)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if report.Unchanged {
		t.Error("changed output reported unchanged")
	}
	if diff := cmp.Diff(treeOf(next), readTree(t, dir)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDirSinkFailureKeepsPreviousOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewDirSink(dir)
	if _, err := s.Write(context.Background(), testFiles()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	tests := []struct {
		name  string
		files []File
	}{
		{"traversal", []File{{Path: "../escape.json", Data: []byte("x")}}},
		{"absolute", []File{{Path: "/etc/passwd", Data: []byte("x")}}},
		{"duplicate", []File{{Path: "a.json", Data: []byte("1")}, {Path: "a.json", Data: []byte("2")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Write(context.Background(), tt.files)
			var ve *kerrors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if diff := cmp.Diff(treeOf(testFiles()), readTree(t, dir)); diff != "" {
				t.Errorf("previous output changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDirSinkCancelled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewDirSink(dir).Write(ctx, testFiles()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("cancelled write created the output directory")
	}
}

func TestDirSinkRefusesForeignDirectory(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "bundle", "project.yaml")
	notes := filepath.Join(root, "notes.txt")
	for _, p := range []string{project, notes} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("keep me"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	_, err := NewDirSink(root).Write(context.Background(), []File{{Path: "manifest.json", Data: []byte("{}")}})
	var ve *kerrors.ValidationError
	if !errors.As(err, &ve) || ve.Field != "output" {
		t.Fatalf("expected output ValidationError, got %v", err)
	}
	for _, p := range []string{project, notes} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s lost: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "manifest.json")); !os.IsNotExist(err) {
		t.Error("refused write still produced output")
	}
}

func TestDirSinkMarker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	s := NewDirSink(dir)

	// An empty directory may be taken over.
	if _, err := s.Write(context.Background(), testFiles()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		t.Fatalf("marker not written: %v", err)
	}
	want := Digest(testFiles()[0].Data) + "  manifest.json\n"
	if !bytes.HasPrefix(data, []byte(want)) {
		t.Errorf("marker = %q", data)
	}

	// Files added by hand to a marked directory do not block the next run.
	if err := os.WriteFile(filepath.Join(dir, "extra.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(context.Background(), testFiles()); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	if diff := cmp.Diff(treeOf(testFiles()), readTree(t, dir)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDirSinkRefusesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := NewDirSink(path).Write(context.Background(), testFiles())
	var ve *kerrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "x" {
		t.Error("file was replaced")
	}
}

func readArchive(t *testing.T, path string) ([]string, map[string]string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		t.Fatalf("xz.NewReader() error = %v", err)
	}
	tr := tar.NewReader(xr)

	var names []string
	contents := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar Next() error = %v", err)
		}
		names = append(names, hdr.Name)
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			contents[hdr.Name] = string(data)
		}
	}
	return names, contents
}

func TestArchiveSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dist", "sami-keyboards.tar.xz")
	s := NewArchiveSink(path)
	if s.Root != "sami-keyboards" {
		t.Fatalf("Root = %q", s.Root)
	}

	if _, err := s.Write(context.Background(), testFiles()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	names, contents := readArchive(t, path)
	wantNames := []string{
		"sami-keyboards/",
		"sami-keyboards/_locales/",
		"sami-keyboards/_locales/en/",
		"sami-keyboards/_locales/en/messages.json",
		"sami-keyboards/_locales/nb/",
		"sami-keyboards/_locales/nb/messages.json",
		"sami-keyboards/background.js",
		"sami-keyboards/manifest.json",
	}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("archive entries mismatch (-want +got):\n%s", diff)
	}
	if contents["sami-keyboards/background.js"] != "Keyboard.install({});\n" {
		t.Errorf("background.js = %q", contents["sami-keyboards/background.js"])
	}
}

func TestArchiveSinkDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "kbd.tar.xz")
	b := filepath.Join(dir, "b", "kbd.tar.xz")

	if _, err := NewArchiveSink(a).Write(context.Background(), testFiles()); err != nil {
		t.Fatalf("Write(a) error = %v", err)
	}
	reversed := testFiles()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	if _, err := NewArchiveSink(b).Write(context.Background(), reversed); err != nil {
		t.Fatalf("Write(b) error = %v", err)
	}

	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if !bytes.Equal(da, db) {
		t.Error("archives of the same files differ")
	}
}

func TestArchiveSinkBadPath(t *testing.T) {
	_, err := NewArchiveSink(filepath.Join(t.TempDir(), "kbd.zip")).Write(context.Background(), testFiles())
	var ve *kerrors.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestArchiveSinkXZWriterError(t *testing.T) {
	orig := xzNewWriter
	defer func() { xzNewWriter = orig }()
	xzNewWriter = func(w io.Writer) (*xz.Writer, error) {
		return nil, errors.New("xz unavailable")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "kbd.tar.xz")
	if _, err := NewArchiveSink(path).Write(context.Background(), testFiles()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed write left an archive behind")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestDigest(t *testing.T) {
	d := Digest([]byte("kbdgen"))
	if len(d) != 64 {
		t.Errorf("Digest() length = %d, want 64", len(d))
	}
	if d != Digest([]byte("kbdgen")) || d == Digest([]byte("kbdgen2")) {
		t.Error("Digest() is not a function of its input")
	}
}
