package document

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want DocumentType
	}{
		{name: "pdf magic beats extension", file: "scan.bin", body: "%PDF-1.7\n...", want: TypePDF},
		{name: "html sniffed", file: "page", body: "<!DOCTYPE html><html><body>x</body></html>", want: TypeHTML},
		{name: "markdown by extension", file: "notes.md", body: "# Title\n\ntext", want: TypeMarkdown},
		{name: "csv by extension", file: "data.csv", body: "a,b\n1,2\n", want: TypeCSV},
		{name: "png magic", file: "img", body: "\x89PNG\r\n\x1a\n0000", want: TypeImage},
		{name: "unknown defaults to pdf", file: "mystery", body: "\x00\x01\x02", want: TypePDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectType(writeFile(t, tt.file, tt.body)))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "_etc_passwd", SanitizeFilename("/etc/passwd"))
	assert.Equal(t, "__secret.pdf", SanitizeFilename("../secret.pdf"))
	assert.Equal(t, "C__a_b.docx", SanitizeFilename(`C:\a\b.docx`))
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)), 255)
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "report.pdf", FilenameFromURL("https://example.com/files/report.pdf?x=1"))
	assert.Equal(t, "document", FilenameFromURL("https://example.com/"))
	assert.Equal(t, ".pdf", ExtensionFromURL("https://example.com/files/REPORT.PDF"))
	assert.Equal(t, "", ExtensionFromURL("https://example.com/download"))
}

func TestDownloaderUsesContentDisposition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="q3 report.txt"`)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("quarterly numbers"))
	}))
	defer srv.Close()

	d := NewDownloader(5*time.Second, t.TempDir(), 1<<20)
	got, err := d.Download(context.Background(), srv.URL+"/download")
	require.NoError(t, err)
	defer os.Remove(got.Path)

	assert.Equal(t, "q3 report.txt", got.Filename)
	assert.Equal(t, ".txt", filepath.Ext(got.Path))
	data, err := os.ReadFile(got.Path)
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(data))
}

func TestDownloaderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewDownloader(5*time.Second, t.TempDir(), 0).Download(context.Background(), srv.URL+"/a.pdf")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestDownloaderSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := NewDownloader(5*time.Second, dir, 10).Download(context.Background(), srv.URL+"/big.txt")
	assert.ErrorIs(t, err, ErrTooLarge)

	left, _ := os.ReadDir(dir)
	assert.Empty(t, left)
}

func TestConvertCSV(t *testing.T) {
	p := writeFile(t, "prices.csv", "item,price\napple,1.20\npear,0.90\n")
	conv := NewLocalConverter(NewOCRService(""))

	out, err := conv.Convert(context.Background(), Input{Path: p, Filename: "prices.csv"}, models.DefaultConversionOptions())
	require.NoError(t, err)

	assert.Equal(t, "csv", out.DocumentType)
	require.Len(t, out.Tables, 1)
	assert.Equal(t, "table_0", out.Tables[0].ID)
	assert.Equal(t, []string{"item", "price"}, out.Tables[0].Headers)
	assert.Equal(t, [][]string{{"apple", "1.20"}, {"pear", "0.90"}}, out.Tables[0].Rows)
	assert.Contains(t, out.Content, "| apple | 1.20 |")
	assert.Equal(t, "prices", out.Metadata["title"])
	assert.Equal(t, 1, out.PageCount)
}

func TestConvertXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"region", "revenue"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"emea", 42}))
	_, err := f.NewSheet("Empty")
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	out, err := NewLocalConverter(NewOCRService("")).Convert(context.Background(), Input{Path: p, Filename: "book.xlsx"}, models.DefaultConversionOptions())
	require.NoError(t, err)

	assert.Equal(t, "xlsx", out.DocumentType)
	require.Len(t, out.Tables, 1)
	assert.Equal(t, []string{"region", "revenue"}, out.Tables[0].Headers)
	assert.Equal(t, [][]string{{"emea", "42"}}, out.Tables[0].Rows)
	require.NotNil(t, out.Tables[0].Page)
	assert.Equal(t, 1, *out.Tables[0].Page)
	assert.True(t, strings.HasPrefix(out.Content, "## Sheet1"))
}

func TestConvertMarkdownFormats(t *testing.T) {
	body := "# Guide\n\nRead the **manual** at [docs](https://example.com).\n\n| a | b |\n| --- | --- |\n| 1 | 2 |\n"
	p := writeFile(t, "guide.md", body)
	conv := NewLocalConverter(NewOCRService(""))
	in := Input{Path: p, Filename: "guide.md"}

	opts := models.DefaultConversionOptions()
	md, err := conv.Convert(context.Background(), in, opts)
	require.NoError(t, err)
	assert.Contains(t, md.Content, "**manual**")
	require.Len(t, md.Tables, 1)
	assert.Equal(t, []string{"a", "b"}, md.Tables[0].Headers)
	assert.Nil(t, md.Tables[0].Page)

	opts.OutputFormat = models.FormatText
	text, err := conv.Convert(context.Background(), in, opts)
	require.NoError(t, err)
	assert.Contains(t, text.Content, "Guide\nRead the manual at docs.")

	opts.OutputFormat = models.FormatJSON
	js, err := conv.Convert(context.Background(), in, opts)
	require.NoError(t, err)
	var decoded jsonDocument
	require.NoError(t, json.Unmarshal([]byte(js.Content), &decoded))
	assert.Equal(t, "guide", decoded.Name)
	require.Len(t, decoded.Pages, 1)
	assert.Equal(t, 1, decoded.Pages[0].PageNo)

	opts.OutputFormat = models.FormatDocTags
	dt, err := conv.Convert(context.Background(), in, opts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dt.Content, "<doctag>"))
	assert.Contains(t, dt.Content, "<section_header_level_1>Guide</section_header_level_1>")
	assert.Contains(t, dt.Content, "<otsl><ched>a<ched>b<nl>")
}

func TestConvertWithoutTables(t *testing.T) {
	p := writeFile(t, "prices.csv", "item,price\napple,1\n")
	opts := models.DefaultConversionOptions()
	opts.ExtractTables = false

	out, err := NewLocalConverter(NewOCRService("")).Convert(context.Background(), Input{Path: p, Filename: "prices.csv"}, opts)
	require.NoError(t, err)
	assert.Nil(t, out.Tables)
	assert.Contains(t, out.Content, "| apple | 1 |")
}

func TestConvertImageRequiresOCR(t *testing.T) {
	p := writeFile(t, "scan.png", "\x89PNG\r\n\x1a\n0000")
	opts := models.DefaultConversionOptions()
	opts.OCREnabled = false

	_, err := NewLocalConverter(NewOCRService("")).Convert(context.Background(), Input{Path: p, Filename: "scan.png"}, opts)
	require.ErrorIs(t, err, ErrUnsupportedInput)
	assert.Contains(t, err.Error(), "ocr_enabled")
}

func TestTableMarkdownEscapesPipes(t *testing.T) {
	md := TableMarkdown([]string{"k", "v"}, [][]string{{"a|b", "c"}, {"short"}})
	assert.Equal(t, "| k | v |\n| --- | --- |\n| a\\|b | c |\n| short |  |", md)
}
