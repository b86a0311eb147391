package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractedText holds plain text split by page. Formats without pages
// report a single page.
type ExtractedText struct {
	Pages      []string
	ImageCount int
	Metadata   map[string]string
}

func (e *ExtractedText) Content() string {
	return strings.Join(e.Pages, "\n\n")
}

func Extract(data io.ReaderAt, size int64, fileType string) (*ExtractedText, error) {
	switch strings.TrimPrefix(strings.ToLower(fileType), ".") {
	case "pdf", "application/pdf":
		return extractPDF(data, size)
	case "docx":
		return extractDOCX(data, size)
	case "pptx":
		return extractPPTX(data, size)
	case "html", "htm":
		return extractHTML(data, size)
	case "txt", "md", "markdown", "asciidoc", "adoc", "text/plain":
		return extractTXT(data, size)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".pptx", ".html", ".txt", ".md", ".adoc"}
}

func extractPDF(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	meta := map[string]string{"type": "pdf"}
	if title := pdfTitle(reader); title != "" {
		meta["title"] = title
	}
	return &ExtractedText{Pages: pages, Metadata: meta}, nil
}

func pdfTitle(r *pdf.Reader) string {
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return strings.TrimSpace(info.Key("Title").Text())
}

func extractDOCX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	out := &ExtractedText{Metadata: map[string]string{"type": "docx"}}
	var body string
	for _, f := range reader.File {
		switch {
		case f.Name == "word/document.xml":
			content, err := readZipFile(f)
			if err != nil {
				return nil, fmt.Errorf("read document.xml: %w", err)
			}
			body = ooxmlParagraphs(content, "w:p")
		case strings.HasPrefix(f.Name, "word/media/"):
			out.ImageCount++
		}
	}
	out.Pages = []string{body}
	return out, nil
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractPPTX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PPTX: %w", err)
	}

	type slide struct {
		n    int
		text string
	}
	var slides []slide
	out := &ExtractedText{Metadata: map[string]string{"type": "pptx"}}
	for _, f := range reader.File {
		if strings.HasPrefix(f.Name, "ppt/media/") {
			out.ImageCount++
			continue
		}
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		content, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path.Base(f.Name), err)
		}
		slides = append(slides, slide{n: n, text: ooxmlParagraphs(content, "a:p")})
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })
	for _, s := range slides {
		out.Pages = append(out.Pages, s.text)
	}
	return out, nil
}

func extractHTML(data io.ReaderAt, size int64) (*ExtractedText, error) {
	buf, err := readAll(data, size)
	if err != nil {
		return nil, fmt.Errorf("read HTML: %w", err)
	}
	src := string(buf)

	meta := map[string]string{"type": "html"}
	if m := htmlTitle.FindStringSubmatch(src); m != nil {
		meta["title"] = strings.TrimSpace(m[1])
	}
	src = htmlNoise.ReplaceAllString(src, "")
	src = htmlBlockEnd.ReplaceAllString(src, "\n\n")

	var paras []string
	for _, p := range strings.Split(stripTags(src), "\n\n") {
		if p = collapseSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return &ExtractedText{Pages: []string{strings.Join(paras, "\n\n")}, Metadata: meta}, nil
}

var (
	htmlTitle    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	htmlNoise    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>|<style[^>]*>.*?</style>|<head[^>]*>.*?</head>`)
	htmlBlockEnd = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|table|section|article)>|<br\s*/?>`)
)

func extractTXT(data io.ReaderAt, size int64) (*ExtractedText, error) {
	buf, err := readAll(data, size)
	if err != nil {
		return nil, fmt.Errorf("read TXT: %w", err)
	}
	return &ExtractedText{
		Pages:    []string{string(bytes.TrimSpace(buf))},
		Metadata: map[string]string{"type": "txt"},
	}, nil
}

func readAll(data io.ReaderAt, size int64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ooxmlParagraphs splits an Office XML part on paragraph end tags so the
// text keeps its paragraph breaks.
func ooxmlParagraphs(xml, paraTag string) string {
	var paras []string
	for _, p := range strings.Split(xml, "</"+paraTag+">") {
		if text := collapseSpace(stripTags(p)); text != "" {
			paras = append(paras, text)
		}
	}
	return strings.Join(paras, "\n\n")
}

func stripTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return unescapeEntities(result.String())
}

var entities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&#39;", "'", "&nbsp;", " ")

func unescapeEntities(s string) string {
	return entities.Replace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
