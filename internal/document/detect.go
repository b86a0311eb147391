package document

import (
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type DocumentType string

const (
	TypePDF      DocumentType = "pdf"
	TypeDOCX     DocumentType = "docx"
	TypePPTX     DocumentType = "pptx"
	TypeXLSX     DocumentType = "xlsx"
	TypeHTML     DocumentType = "html"
	TypeImage    DocumentType = "image"
	TypeAsciiDoc DocumentType = "asciidoc"
	TypeMarkdown DocumentType = "md"
	TypeCSV      DocumentType = "csv"
	TypeText     DocumentType = "txt"
)

var mimeTypes = map[string]DocumentType{
	"application/pdf": TypePDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   TypeDOCX,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": TypePPTX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         TypeXLSX,
	"text/html":     TypeHTML,
	"text/markdown": TypeMarkdown,
	"text/csv":      TypeCSV,
	"image/png":     TypeImage,
	"image/jpeg":    TypeImage,
	"image/tiff":    TypeImage,
	"image/webp":    TypeImage,
	"image/bmp":     TypeImage,
	"image/gif":     TypeImage,
}

var extTypes = map[string]DocumentType{
	".pdf":      TypePDF,
	".docx":     TypeDOCX,
	".pptx":     TypePPTX,
	".xlsx":     TypeXLSX,
	".html":     TypeHTML,
	".htm":      TypeHTML,
	".md":       TypeMarkdown,
	".markdown": TypeMarkdown,
	".adoc":     TypeAsciiDoc,
	".asciidoc": TypeAsciiDoc,
	".csv":      TypeCSV,
	".txt":      TypeText,
	".png":      TypeImage,
	".jpg":      TypeImage,
	".jpeg":     TypeImage,
	".tiff":     TypeImage,
	".tif":      TypeImage,
	".webp":     TypeImage,
	".bmp":      TypeImage,
	".gif":      TypeImage,
}

// DetectType sniffs the file content first and falls back to the
// extension. Unknown files are treated as PDF.
func DetectType(filePath string) DocumentType {
	if f, err := os.Open(filePath); err == nil {
		head := make([]byte, 512)
		n, _ := f.Read(head)
		f.Close()
		if t, ok := sniffType(head[:n]); ok {
			return t
		}
	}
	if t, ok := extTypes[strings.ToLower(filepath.Ext(filePath))]; ok {
		return t
	}
	return TypePDF
}

func sniffType(head []byte) (DocumentType, bool) {
	if len(head) == 0 {
		return "", false
	}
	mimeType := http.DetectContentType(head)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	// Office files sniff as zip and text formats as text/plain; the
	// extension tells them apart.
	t, ok := mimeTypes[mimeType]
	return t, ok
}

// MimeType returns the canonical MIME type for a document type.
func MimeType(t DocumentType) string {
	for m, dt := range mimeTypes {
		if dt == t && t != TypeImage {
			return m
		}
	}
	switch t {
	case TypeImage:
		return "image/*"
	case TypeAsciiDoc:
		return "text/asciidoc"
	case TypeText:
		return "text/plain"
	}
	return "application/octet-stream"
}

// SanitizeFilename strips path separators and other unsafe sequences.
func SanitizeFilename(name string) string {
	for _, bad := range []string{"/", `\`, "\x00", "..", ":"} {
		name = strings.ReplaceAll(name, bad, "_")
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}

func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "document"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}

// ExtensionFromURL returns the lower-case extension of the URL path, or "".
func ExtensionFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
