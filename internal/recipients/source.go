// Package recipients resolves named phone-number lists from local disk or S3.
package recipients

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a list does not exist.
var ErrNotFound = errors.New("recipients: list not found")

// ErrInvalidName is returned for names that could escape the list root.
var ErrInvalidName = errors.New("recipients: invalid list name")

// Source opens named lists.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Store is a Source that can also accept uploads.
type Store interface {
	Source
	Put(ctx context.Context, name string, r io.Reader) error
}

// ValidateName rejects empty names and names containing path separators or
// parent references.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// DirSource serves lists from a single directory.
type DirSource struct {
	dir string
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	return &DirSource{dir: dir}
}

var _ Store = (*DirSource)(nil)

func (s *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("recipients: open %s: %w", name, err)
	}
	return f, nil
}

func (s *DirSource) Put(_ context.Context, name string, r io.Reader) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("recipients: create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("recipients: write %s: %w", name, err)
	}
	return f.Close()
}

// ReadNumbers returns the non-blank lines of r with surrounding whitespace
// (including a UTF-8 BOM and CR) removed.
func ReadNumbers(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var out []string
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("recipients: read list: %w", err)
	}
	return out, nil
}

// ReadNumbersFile reads a list from an arbitrary path, as the command line
// entry point does.
func ReadNumbersFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("recipients: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadNumbers(f)
}

// Load opens name from src and reads its numbers.
func Load(ctx context.Context, src Source, name string) ([]string, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadNumbers(rc)
}
