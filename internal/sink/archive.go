package sink

import (
	"archive/tar"
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
	"github.com/FocuswithJustin/kbdgen/internal/validation"
)

// archiveModTime is stamped on every entry so that equal inputs give
// byte-identical archives.
var archiveModTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Injectable for tests.
var xzNewWriter = xz.NewWriter

// ArchiveSink writes the files into a tar.xz archive under a single root
// directory.
type ArchiveSink struct {
	Path string
	Root string
}

// NewArchiveSink returns an ArchiveSink writing to path. The root directory
// inside the archive is the archive's base name without ".tar.xz".
func NewArchiveSink(path string) *ArchiveSink {
	return &ArchiveSink{
		Path: path,
		Root: strings.TrimSuffix(filepath.Base(path), validation.ArchiveExt),
	}
}

// Write implements Sink. The archive is written to a temporary file and
// renamed into place.
func (s *ArchiveSink) Write(ctx context.Context, files []File) (*Report, error) {
	if err := validation.ValidateArchivePath(s.Path); err != nil {
		return nil, &errors.ValidationError{Field: "archive", Value: s.Path, Message: "bad archive path", Err: err}
	}
	report, err := check(s.Path, files)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewIO("create directory", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".archive-*")
	if err != nil {
		return nil, errors.NewIO("create temp file", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := s.writeTo(tmp, files); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.NewIO("close", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return nil, errors.NewIO("rename", tmpPath, err)
	}

	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, errors.NewIO("stat", s.Path, err)
	}
	logging.LoggerFromContext(ctx).Info("archive_written", "path", s.Path, "files", len(files), "size", info.Size())
	return report, nil
}

func (s *ArchiveSink) writeTo(f *os.File, files []File) error {
	xw, err := xzNewWriter(f)
	if err != nil {
		return errors.Wrap(err, "failed to create xz writer")
	}
	tw := tar.NewWriter(xw)

	sorted := append([]File(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	dirs := map[string]bool{}
	writeDir := func(name string) error {
		if dirs[name] {
			return nil
		}
		dirs[name] = true
		return tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeDir,
			Name:     name + "/",
			Mode:     0755,
			ModTime:  archiveModTime,
		})
	}

	if err := writeDir(s.Root); err != nil {
		return errors.NewIO("write tar header", s.Root, err)
	}
	for _, file := range sorted {
		name := path.Join(s.Root, file.Path)

		var parents []string
		for d := path.Dir(name); d != s.Root && d != "."; d = path.Dir(d) {
			parents = append(parents, d)
		}
		for i := len(parents) - 1; i >= 0; i-- {
			if err := writeDir(parents[i]); err != nil {
				return errors.NewIO("write tar header", parents[i], err)
			}
		}

		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     0644,
			Size:     int64(len(file.Data)),
			ModTime:  archiveModTime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return errors.NewIO("write tar header", name, err)
		}
		if _, err := tw.Write(file.Data); err != nil {
			return errors.NewIO("write tar entry", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return errors.NewIO("close tar", s.Path, err)
	}
	if err := xw.Close(); err != nil {
		return errors.NewIO("close xz", s.Path, err)
	}
	return nil
}
