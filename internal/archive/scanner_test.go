package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildZip writes an in-memory archive with the given entry names. Each entry
// gets a tiny placeholder body.
func buildZip(t *testing.T, names ...string) *zip.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return zr
}

func TestLocateExportFileAtRoot(t *testing.T) {
	zr := buildZip(t, "export.xml", "export_cda.xml")
	f, err := LocateExportFile(discardLogger(), zr)
	require.NoError(t, err)
	assert.Equal(t, "export.xml", f.Name)
}

func TestLocateExportFileNested(t *testing.T) {
	zr := buildZip(t, "apple_health_export/export_cda.xml", "apple_health_export/export.xml")
	f, err := LocateExportFile(discardLogger(), zr)
	require.NoError(t, err)
	assert.Equal(t, "apple_health_export/export.xml", f.Name)
}

func TestLocateExportFileCaseInsensitive(t *testing.T) {
	zr := buildZip(t, "wrapper/EXPORT.XML")
	f, err := LocateExportFile(discardLogger(), zr)
	require.NoError(t, err)
	assert.Equal(t, "wrapper/EXPORT.XML", f.Name)
}

func TestLocateExportFileSkipsJunk(t *testing.T) {
	zr := buildZip(t,
		"__MACOSX/export.xml",
		"wrapper/._export.xml",
		".DS_Store",
		"wrapper/export.xml",
	)
	f, err := LocateExportFile(discardLogger(), zr)
	require.NoError(t, err)
	assert.Equal(t, "wrapper/export.xml", f.Name)
}

func TestLocateExportFileMissing(t *testing.T) {
	zr := buildZip(t, "notes.txt", "photos/cat.jpg")
	_, err := LocateExportFile(discardLogger(), zr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoExportFile)
	// The error names entries actually seen, for operator diagnosis.
	assert.Contains(t, err.Error(), "notes.txt")
}

func TestLocateExportFileAlternateOnly(t *testing.T) {
	zr := buildZip(t, "wrapper/export_cda.xml")
	_, err := LocateExportFile(discardLogger(), zr)
	assert.ErrorIs(t, err, ErrNoExportFile)
}
