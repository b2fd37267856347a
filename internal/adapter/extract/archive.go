package extract

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// archiveMember is one regular file inside an archive.
type archiveMember struct {
	name string
	open func() (io.ReadCloser, error)
}

func isArchive(name string) bool {
	switch Ext(name) {
	case "zip", "tar", "tgz", "gz", "7z":
		return true
	}
	return false
}

// readArchive expands zip, 7z, tar, tar.gz/tgz and single-file gzip
// archives. Nested archives, statistical package files and unwanted members
// are skipped.
func readArchive(filename string, opts adapter.ParseOptions) ([]*core.Dataset, error) {
	base := filepath.Base(filename)
	lower := strings.ToLower(base)
	var out []*core.Dataset
	visit := func(m archiveMember) error {
		if isArchive(m.name) || isStatFile(m.name) || !Wants(m.name, opts) {
			return nil
		}
		ds, err := readMember(m, base, opts)
		if err != nil {
			return err
		}
		out = append(out, ds)
		return nil
	}

	var err error
	switch {
	case Ext(lower) == "zip":
		err = walkZip(filename, visit)
	case Ext(lower) == "7z":
		err = walk7z(filename, visit)
	case Ext(lower) == "tar":
		err = walkTar(filename, false, visit)
	case Ext(lower) == "tgz" || strings.HasSuffix(lower, ".tar.gz"):
		err = walkTar(filename, true, visit)
	default:
		err = walkGzip(filename, visit)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func walkZip(filename string, visit func(archiveMember) error) error {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", filename, err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := visit(archiveMember{name: f.Name, open: f.Open}); err != nil {
			return err
		}
	}
	return nil
}

func walk7z(filename string, visit func(archiveMember) error) error {
	zr, err := sevenzip.OpenReader(filename)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", filename, err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := visit(archiveMember{name: f.Name, open: f.Open}); err != nil {
			return err
		}
	}
	return nil
}

func walkTar(filename string, gzipped bool, visit func(archiveMember) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening archive %s: %w", filename, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive %s: %w", filename, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		// Members are read in order, so each one is consumed before Next.
		m := archiveMember{name: hdr.Name, open: func() (io.ReadCloser, error) { return io.NopCloser(tr), nil }}
		if err := visit(m); err != nil {
			return err
		}
	}
}

// walkGzip treats a .gz file as a single member named without the suffix.
func walkGzip(filename string, visit func(archiveMember) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", filename, err)
	}
	defer func() { _ = gz.Close() }()

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return visit(archiveMember{name: name, open: func() (io.ReadCloser, error) { return io.NopCloser(gz), nil }})
}

func readMember(m archiveMember, archive string, opts adapter.ParseOptions) (*core.Dataset, error) {
	rc, err := m.open()
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", archive, m.name, err)
	}
	defer func() { _ = rc.Close() }()

	// Workbooks need the whole stream; buffer every member alike.
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", archive, m.name, err)
	}
	return Read(bytes.NewReader(data), archive+"/"+m.name, opts)
}
