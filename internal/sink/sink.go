// Package sink writes generated package files to their destination: a
// directory that is replaced as a whole, or a tar.xz archive.
package sink

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
	"github.com/FocuswithJustin/kbdgen/internal/validation"
)

// File is one generated file. Path is slash separated and relative to the
// package root.
type File struct {
	Path string
	Data []byte
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileReport describes one written file.
type FileReport struct {
	Path   string
	Size   int
	Digest string
}

// Report is the outcome of a Write.
type Report struct {
	Dest  string
	Files []FileReport

	// Unchanged is set when the destination already held exactly these
	// files and nothing was written.
	Unchanged bool
}

// Sink receives the files of one generation run.
type Sink interface {
	Write(ctx context.Context, files []File) (*Report, error)
}

// MarkerFile is written at the root of every directory a DirSink produces.
// A DirSink only replaces a non-empty directory that carries it.
const MarkerFile = ".kbdgen"

// DirSink writes into a directory. The previous contents are replaced only
// once every new file has been written, so a failed run leaves them intact.
type DirSink struct {
	Dir string
}

// NewDirSink returns a DirSink for dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Write implements Sink.
func (s *DirSink) Write(ctx context.Context, files []File) (*Report, error) {
	report, err := check(s.Dir, files)
	if err != nil {
		return nil, err
	}

	if same, err := sameContents(s.Dir, report.Files); err != nil {
		return nil, err
	} else if same {
		report.Unchanged = true
		logging.LoggerFromContext(ctx).Info("output_unchanged", "dir", s.Dir, "files", len(files))
		return report, nil
	}

	if err := checkOwned(s.Dir); err != nil {
		return nil, err
	}

	parent := filepath.Dir(filepath.Clean(s.Dir))
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, errors.NewIO("create directory", parent, err)
	}
	stage, err := os.MkdirTemp(parent, "."+filepath.Base(s.Dir)+"-stage-*")
	if err != nil {
		return nil, errors.NewIO("create staging directory", parent, err)
	}
	defer os.RemoveAll(stage)

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dst := filepath.Join(stage, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return nil, errors.NewIO("create directory", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, f.Data, 0644); err != nil {
			return nil, errors.NewIO("write", dst, err)
		}
		r := report.Files[i]
		logging.ArtifactWritten(f.Path, r.Size, r.Digest)
	}

	if err := os.WriteFile(filepath.Join(stage, MarkerFile), marker(report.Files), 0644); err != nil {
		return nil, errors.NewIO("write", MarkerFile, err)
	}

	if err := swap(stage, s.Dir); err != nil {
		return nil, err
	}
	return report, nil
}

// swap moves stage into place at dir, keeping the old dir until the move
// has succeeded.
func swap(stage, dir string) error {
	var old string
	if _, err := os.Stat(dir); err == nil {
		old = stage + ".old"
		if err := os.Rename(dir, old); err != nil {
			return errors.NewIO("move aside", dir, err)
		}
	} else if !os.IsNotExist(err) {
		return errors.NewIO("stat", dir, err)
	}

	if err := os.Rename(stage, dir); err != nil {
		if old != "" {
			os.Rename(old, dir)
		}
		return errors.NewIO("rename", stage, err)
	}
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			return errors.NewIO("remove", old, err)
		}
	}
	return nil
}

// checkOwned refuses to replace anything but a missing or empty directory,
// or one written by an earlier run.
func checkOwned(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewIO("stat", dir, err)
	}
	if !info.IsDir() {
		return &errors.ValidationError{Field: "output", Value: dir, Message: "not a directory"}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.NewIO("read directory", dir, err)
	}
	if len(entries) == 0 {
		return nil
	}
	if _, err := os.Stat(filepath.Join(dir, MarkerFile)); err == nil {
		return nil
	}
	return &errors.ValidationError{Field: "output", Value: dir, Message: "directory is not empty and has no " + MarkerFile + " marker; refusing to replace it"}
}

func marker(files []FileReport) []byte {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "%s  %s\n", f.Digest, f.Path)
	}
	return []byte(b.String())
}

// check validates the file set and computes its report.
func check(dest string, files []File) (*Report, error) {
	report := &Report{Dest: dest}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if err := validation.ValidateArtifactPath(f.Path); err != nil {
			return nil, &errors.ValidationError{Field: "artifact", Value: f.Path, Message: "bad path", Err: err}
		}
		if err := validation.CheckSize(f.Path, len(f.Data)); err != nil {
			return nil, &errors.ValidationError{Field: "artifact", Value: f.Path, Message: "too large", Err: err}
		}
		if seen[f.Path] {
			return nil, errors.NewValidation("artifact", fmt.Sprintf("duplicate path %s", f.Path))
		}
		seen[f.Path] = true
		report.Files = append(report.Files, FileReport{Path: f.Path, Size: len(f.Data), Digest: Digest(f.Data)})
	}
	return report, nil
}

// sameContents reports whether dir holds exactly the given files.
func sameContents(dir string, want []FileReport) (bool, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}

	var have []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == MarkerFile {
			return nil
		}
		have = append(have, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return false, errors.NewIO("walk", dir, err)
	}
	if len(have) != len(want) {
		return false, nil
	}

	byPath := make(map[string]string, len(want))
	for _, f := range want {
		byPath[f.Path] = f.Digest
	}
	for _, p := range have {
		digest, ok := byPath[p]
		if !ok {
			return false, nil
		}
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
		if err != nil {
			return false, errors.NewIO("read", p, err)
		}
		if Digest(data) != digest {
			return false, nil
		}
	}
	return true, nil
}
