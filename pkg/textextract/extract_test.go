package textextract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractTXT(t *testing.T) {
	data := []byte("  hello world\n\n")
	out, err := Extract(bytes.NewReader(data), int64(len(data)), ".txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world"}, out.Pages)
	assert.Equal(t, "hello world", out.Content())
}

func TestExtractDOCXKeepsParagraphs(t *testing.T) {
	doc := `<w:document><w:body>` +
		`<w:p><w:r><w:t>First &amp; foremost.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	data := zipBytes(t, map[string]string{
		"word/document.xml":     doc,
		"word/media/image1.png": "png",
	})

	out, err := Extract(bytes.NewReader(data), int64(len(data)), "docx")
	require.NoError(t, err)
	assert.Equal(t, "First & foremost.\n\nSecond paragraph.", out.Content())
	assert.Equal(t, 1, out.ImageCount)
}

func TestExtractPPTXOrdersSlides(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"ppt/slides/slide10.xml": `<p:sld><a:p><a:r><a:t>Ten</a:t></a:r></a:p></p:sld>`,
		"ppt/slides/slide2.xml":  `<p:sld><a:p><a:r><a:t>Two</a:t></a:r></a:p></p:sld>`,
		"ppt/slides/slide1.xml":  `<p:sld><a:p><a:r><a:t>One</a:t></a:r></a:p></p:sld>`,
	})

	out, err := Extract(bytes.NewReader(data), int64(len(data)), ".pptx")
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two", "Ten"}, out.Pages)
}

func TestExtractHTML(t *testing.T) {
	data := []byte(`<html><head><title>Report</title><style>p{}</style></head>` +
		`<body><h1>Heading</h1><p>Body   text.</p><script>alert(1)</script></body></html>`)

	out, err := Extract(bytes.NewReader(data), int64(len(data)), "html")
	require.NoError(t, err)
	assert.Equal(t, "Report", out.Metadata["title"])
	assert.Equal(t, "Heading\n\nBody text.", out.Content())
}

func TestExtractUnsupported(t *testing.T) {
	_, err := Extract(bytes.NewReader(nil), 0, ".exe")
	assert.Error(t, err)
}
