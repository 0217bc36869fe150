package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"doc-rag-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildXlsx(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "qty"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "apple"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 3))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type fakeTika struct {
	called bool
	out    string
}

func (f *fakeTika) ExtractText(_ context.Context, r io.Reader, _ string) (string, error) {
	f.called = true
	_, _ = io.ReadAll(r)
	return f.out, nil
}

func TestExtractByExtension(t *testing.T) {
	ctx := context.Background()
	e := NewExtractor(nil)

	text, err := e.Extract(ctx, "notes.TXT", []byte("plain text"))
	require.NoError(t, err)
	assert.Equal(t, "plain text", text)

	text, err = e.Extract(ctx, "report.docx", buildDocx(t, "First paragraph", "Second"))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph\nSecond", text)

	text, err = e.Extract(ctx, "sheet.xlsx", buildXlsx(t))
	require.NoError(t, err)
	assert.Contains(t, text, "name\tqty")
	assert.Contains(t, text, "apple\t3")
}

func TestExtractConversionErrors(t *testing.T) {
	ctx := context.Background()
	e := NewExtractor(nil)

	_, err := e.Extract(ctx, "slides.pptx", []byte("binary"))
	assert.ErrorIs(t, err, model.ErrConversion)

	_, err = e.Extract(ctx, "broken.docx", []byte("not a zip"))
	assert.ErrorIs(t, err, model.ErrConversion)

	_, err = e.Extract(ctx, "broken.pdf", []byte("%PDF-garbage"))
	assert.ErrorIs(t, err, model.ErrConversion)

	_, err = e.Extract(ctx, "empty.txt", nil)
	assert.ErrorIs(t, err, model.ErrConversion)

	_, err = e.Extract(ctx, "blank.md", []byte("  \n "))
	assert.ErrorIs(t, err, model.ErrConversion)
}

func TestExtractFallsBackToTika(t *testing.T) {
	tika := &fakeTika{out: "from tika"}
	text, err := NewExtractor(tika).Extract(context.Background(), "slides.pptx", []byte("binary"))
	require.NoError(t, err)
	assert.True(t, tika.called)
	assert.Equal(t, "from tika", text)
}
