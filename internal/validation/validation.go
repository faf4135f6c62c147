// Package validation checks paths and names that come from bundles and the
// command line before anything is written to disk.
package validation

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits on generated output.
const (
	// MaxArtifactSize is the largest single file the sink will write (64 MB).
	MaxArtifactSize = 64 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// ArchiveExt is the extension of package archives.
const ArchiveExt = ".tar.xz"

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrOverlap          = errors.New("output would replace the bundle")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrTooLarge         = errors.New("artifact too large")
	ErrArchiveName      = errors.New("archive must end in " + ArchiveExt)
)

// Contains reports whether p is dir or lies below it. Both are resolved to
// absolute paths first.
func Contains(dir, p string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	absPath, err := filepath.Abs(p)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}

// ValidateArtifactPath checks a package-relative artifact path such as
// "_locales/nb/messages.json": slash separated, relative, and made of valid
// file names.
func ValidateArtifactPath(p string) error {
	if p == "" {
		return ErrEmptyPath
	}
	if len(p) > MaxPathLength {
		return ErrPathTooLong
	}
	if path.IsAbs(p) || strings.Contains(p, `\`) {
		return fmt.Errorf("%w: %q is not a relative slash path", ErrPathTraversal, p)
	}
	for _, part := range strings.Split(p, "/") {
		if err := ValidateFilename(part); err != nil {
			return fmt.Errorf("%q: %w", p, err)
		}
	}
	return nil
}

// ValidateFilename checks a single path component.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// ValidatePath checks a user-supplied filesystem path for length and control
// characters.
func ValidatePath(p string) error {
	if p == "" {
		return ErrEmptyPath
	}
	if len(p) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range p {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateArchivePath checks the --archive destination.
func ValidateArchivePath(p string) error {
	if err := ValidatePath(p); err != nil {
		return err
	}
	if !strings.HasSuffix(p, ArchiveExt) || len(filepath.Base(p)) == len(ArchiveExt) {
		return ErrArchiveName
	}
	return nil
}

// CheckSize rejects artifacts larger than MaxArtifactSize.
func CheckSize(name string, n int) error {
	if n > MaxArtifactSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, name, n)
	}
	return nil
}
