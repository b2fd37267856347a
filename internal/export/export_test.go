package export

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonize-tools/s4h-workbench/internal/testutil"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

func TestWriteCSV(t *testing.T) {
	ds := testutil.Dataset(t, "a", []string{"id", "name"},
		[]string{"1", "Ana, María"},
		[]string{"2.5", ""},
	)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds, Options{}))
	assert.Equal(t, "id,name\n1,\"Ana, María\"\n2.5,\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, ds, Options{Delimiter: ';'}))
	assert.Equal(t, "id;name\n1;Ana, María\n2.5;\n", buf.String())

	assert.Error(t, WriteCSV(&buf, ds, Options{Delimiter: '"'}))
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteDir(dir, []*core.Dataset{
		testutil.Sequence(t, "a", "x", 1),
		testutil.Sequence(t, "b", "y", 2),
	}, Options{})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "dataframe_2.csv"), paths[1])

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "y\n1\n2\n", string(data))
}

func TestWriteArchive(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, []*core.Dataset{
		testutil.Sequence(t, "a", "x", 1),
		testutil.Sequence(t, "b", "y", 1),
	}, Options{}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "dataframe_1.csv", zr.File[0].Name)
	assert.Equal(t, zip.Deflate, zr.File[1].Method)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "y\n1\n", string(data))
}

func TestDictionaryFile(t *testing.T) {
	assert.Equal(t, StandardizedDictionaryFile, DictionaryFile(testutil.Dataset(t, "d", []string{"variable_name"}, []string{"a"})))
	assert.Equal(t, ClassifiedDictionaryFile, DictionaryFile(testutil.Dictionary(t, []string{"a"}, nil)))
}
