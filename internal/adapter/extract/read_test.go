package extract

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

func TestReadDelimited(t *testing.T) {
	in := "id;age;age; \n1;20;x;\n2;;y\n\n3\n"
	ds, err := ReadDelimited(strings.NewReader(in), "a.csv", ";")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "age", "age_2", "column_4"}, ds.ColumnNames())
	assert.Equal(t, 3, ds.NumRows())

	v, _ := ds.At(1, "age")
	assert.True(t, v.IsMissing())
	v, _ = ds.At(2, "age_2")
	assert.True(t, v.IsMissing(), "short record padded")
	v, _ = ds.At(0, "id")
	assert.Equal(t, core.Number(1), v)
}

func TestReadDelimited_Errors(t *testing.T) {
	_, err := ReadDelimited(strings.NewReader("a,b\n1,2,3\n"), "x.csv", "")
	assert.ErrorContains(t, err, "line 2 has 3 fields")

	_, err = ReadDelimited(strings.NewReader("a,b\n"), "x.csv", ";;")
	assert.ErrorContains(t, err, "invalid separator")

	ds, err := ReadDelimited(strings.NewReader(""), "empty.csv", "")
	require.NoError(t, err)
	assert.True(t, core.IsEmpty(ds))
}

func TestDecode_Latin1(t *testing.T) {
	raw := []byte("nombre\nJos\xe9\n")
	r, err := Decode(bytes.NewReader(raw), "latin1")
	require.NoError(t, err)
	ds, err := ReadDelimited(r, "l.csv", ",")
	require.NoError(t, err)
	v, _ := ds.At(0, "nombre")
	assert.Equal(t, "José", v.String())

	_, err = Decode(bytes.NewReader(raw), "ebcdic")
	assert.ErrorContains(t, err, "unsupported encoding")
}

func TestReadFixedWidth(t *testing.T) {
	layout := &core.Layout{Names: []string{"id", "age", "sex"}, Specs: []core.Span{{Start: 0, End: 3}, {Start: 3, End: 5}, {Start: 5, End: 6}}}
	in := "00120F\n002  M\n\n003"
	ds, err := ReadFixedWidth(strings.NewReader(in), "f.txt", layout)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.NumRows())

	v, _ := ds.At(0, "id")
	assert.Equal(t, core.Text("001"), v, "leading zeros stay text")
	v, _ = ds.At(1, "age")
	assert.True(t, v.IsMissing())
	v, _ = ds.At(2, "sex")
	assert.True(t, v.IsMissing())
}

func writeWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadWorkbook(t *testing.T) {
	data := writeWorkbook(t, [][]any{
		{"variable", "label"},
		{"P1", "Edad"},
		{"P2"},
	})
	ds, err := ReadWorkbook(bytes.NewReader(data), "dict.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"variable", "label"}, ds.ColumnNames())
	assert.Equal(t, 2, ds.NumRows())
	v, _ := ds.At(1, "label")
	assert.True(t, v.IsMissing())
}

func TestFileExtractor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("id,age\n1,20\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.csv"), []byte("id\n5\n6\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# ignored"), 0o644))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("inner.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("x\n1\n"))
	require.NoError(t, err)
	_, err = zw.Create("readme.pdf")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), buf.Bytes(), 0o644))

	out, err := NewFileExtractor(nil).Extract(context.Background(), adapter.ExtractRequest{
		Kind:   adapter.SourceFile,
		Inputs: []string{dir},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "a.zip/inner.csv", out[0].Name())
	assert.Equal(t, "b.csv", out[1].Name())
	assert.Equal(t, "c.csv", out[2].Name())
	assert.Equal(t, 2, out[2].NumRows())
}

func TestFileExtractor_FixedWidthText(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(file, []byte("0120\n0230\n"), 0o644))

	layout := &core.Layout{Names: []string{"a", "b"}, Specs: []core.Span{{Start: 0, End: 2}, {Start: 2, End: 4}}}
	out, err := NewFileExtractor(nil).Extract(context.Background(), adapter.ExtractRequest{
		Inputs:  []string{file},
		Options: adapter.ParseOptions{Layout: layout, Extensions: []string{".TXT"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"a", "b"}, out[0].ColumnNames())
}

func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "data/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFileExtractor_TarAndGzip(t *testing.T) {
	dir := t.TempDir()
	plain := tarball(t, map[string]string{"data/one.csv": "id\n1\n", "data/skip.pdf": "%PDF", "data/nested.zip": "PK"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tar"), plain, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.tgz"), gzipped(t, tarball(t, map[string]string{"two.csv": "id\n2\n3\n"})), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.tar.gz"), gzipped(t, tarball(t, map[string]string{"three.csv": "id\n4\n"})), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.csv.gz"), gzipped(t, []byte("x;y\n1;2\n")), 0o644))

	out, err := NewFileExtractor(nil).Extract(context.Background(), adapter.ExtractRequest{
		Inputs:  []string{dir},
		Options: adapter.ParseOptions{Separator: ";"},
	})
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "a.tar/data/one.csv", out[0].Name())
	assert.Equal(t, "b.tgz/two.csv", out[1].Name())
	assert.Equal(t, 2, out[1].NumRows())
	assert.Equal(t, "c.tar.gz/three.csv", out[2].Name())
	assert.Equal(t, "d.csv.gz/d.csv", out[3].Name())
	assert.Equal(t, []string{"x", "y"}, out[3].ColumnNames())
}

func TestReadFile_CorruptArchive(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.tgz")
	require.NoError(t, os.WriteFile(file, []byte("not gzip"), 0o644))
	_, err := ReadFile(file, adapter.ParseOptions{})
	assert.ErrorContains(t, err, "opening archive")
}

type fakeStatExtractor struct {
	reqs []adapter.ExtractRequest
}

func (f *fakeStatExtractor) Extract(_ context.Context, req adapter.ExtractRequest) ([]*core.Dataset, error) {
	f.reqs = append(f.reqs, req)
	ds, err := core.NewDataset(filepath.Base(req.Inputs[0]), core.TextColumn("q1", "yes"))
	if err != nil {
		return nil, err
	}
	return []*core.Dataset{ds}, nil
}

func TestFileExtractor_StatFilesUseDuckDB(t *testing.T) {
	fake := &fakeStatExtractor{}
	prev := statExtractor
	statExtractor = func() (adapter.Extractor, error) { return fake, nil }
	t.Cleanup(func() { statExtractor = prev })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("id\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.sav"), []byte("$FL2"), 0o644))

	out, err := NewFileExtractor(nil).Extract(context.Background(), adapter.ExtractRequest{Inputs: []string{dir}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a.csv", out[0].Name())
	assert.Equal(t, "b.sav", out[1].Name())

	require.Len(t, fake.reqs, 1)
	assert.Equal(t, adapter.SourceDuckDB, fake.reqs[0].Kind)
	assert.Equal(t, []string{filepath.Join(dir, "b.sav")}, fake.reqs[0].Inputs)
}

func TestReadFile_StatFileWithoutDuckDB(t *testing.T) {
	prev := statExtractor
	statExtractor = func() (adapter.Extractor, error) {
		return nil, &adapter.UnknownSourceError{Kind: adapter.SourceDuckDB}
	}
	t.Cleanup(func() { statExtractor = prev })

	file := filepath.Join(t.TempDir(), "survey.dta")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err := ReadAll(context.Background(), []string{file}, adapter.ParseOptions{})
	assert.ErrorContains(t, err, "read through the duckdb source")
}

func TestReadLegacyWorkbook_RejectsOtherFormats(t *testing.T) {
	_, err := ReadLegacyWorkbook(strings.NewReader("id,age\n1,2\n"), "fake.xls")
	assert.ErrorContains(t, err, "fake.xls")
}

func TestFileExtractor_NothingExtracted(t *testing.T) {
	_, err := NewFileExtractor(nil).Extract(context.Background(), adapter.ExtractRequest{Inputs: []string{t.TempDir()}})
	assert.ErrorIs(t, err, core.ErrNothingExtracted)
}

func TestCollect_RejectsUnwantedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "x.pdf")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err := Collect([]string{file}, adapter.ParseOptions{})
	assert.ErrorContains(t, err, "is not in")

	_, err = Collect([]string{filepath.Join(t.TempDir(), "missing.csv")}, adapter.ParseOptions{})
	assert.Error(t, err)
}
