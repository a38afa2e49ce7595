package office

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestConvertToPDF(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	// Writes <outdir>/<base>.pdf and records HOME
	soffice := fakeTool(t, bin, "soffice", `out="$5"; src="$6"; base=$(basename "$src"); echo "$HOME" > "$out/home.txt"; touch "$out/${base%.*}.pdf"`)
	src := filepath.Join(work, "source.docx")
	require.NoError(t, os.WriteFile(src, []byte("doc"), 0o644))

	pdf, err := New(WithBinaries(soffice, "")).ConvertToPDF(context.Background(), src, work)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "source.pdf"), pdf)

	home, err := os.ReadFile(filepath.Join(work, "home.txt"))
	require.NoError(t, err)
	assert.Equal(t, work+"\n", string(home))
}

func TestConvertToPDFFailure(t *testing.T) {
	bin := t.TempDir()
	soffice := fakeTool(t, bin, "soffice", "echo 'source file could not be loaded' >&2; exit 1")

	_, err := New(WithBinaries(soffice, "")).ConvertToPDF(context.Background(), "/nope/a.docx", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be loaded")
}

func TestConvertToPDFNoOutput(t *testing.T) {
	bin := t.TempDir()
	soffice := fakeTool(t, bin, "soffice", "exit 0")

	_, err := New(WithBinaries(soffice, "")).ConvertToPDF(context.Background(), "/nope/a.docx", t.TempDir())
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestRasterizeFirstPage(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	pdftoppm := fakeTool(t, bin, "pdftoppm", `for last; do :; done; touch "$last.png"`)
	pdf := filepath.Join(work, "source.pdf")

	png, err := New(WithBinaries("", pdftoppm)).RasterizeFirstPage(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "source_page1.png"), png)
	assert.FileExists(t, png)
}
