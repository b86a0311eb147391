package document

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

// parsed is the format-neutral document produced by extraction.
type parsed struct {
	Title  string
	Type   DocumentType
	Pages  []string
	Tables []models.Table
}

func render(doc *parsed, format models.OutputFormat) (string, error) {
	switch format {
	case models.FormatMarkdown, "":
		return renderMarkdown(doc), nil
	case models.FormatText:
		return stripMarkdown(renderMarkdown(doc)), nil
	case models.FormatJSON:
		return renderJSON(doc)
	case models.FormatDocTags:
		return renderDocTags(doc), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

func renderMarkdown(doc *parsed) string {
	var parts []string
	for _, p := range doc.Pages {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

type jsonPage struct {
	PageNo int    `json:"page_no"`
	Text   string `json:"text"`
}

type jsonDocument struct {
	Name         string         `json:"name"`
	DocumentType DocumentType   `json:"document_type"`
	Pages        []jsonPage     `json:"pages"`
	Tables       []models.Table `json:"tables"`
}

func renderJSON(doc *parsed) (string, error) {
	out := jsonDocument{
		Name:         doc.Title,
		DocumentType: doc.Type,
		Pages:        make([]jsonPage, len(doc.Pages)),
		Tables:       doc.Tables,
	}
	for i, p := range doc.Pages {
		out.Pages[i] = jsonPage{PageNo: i + 1, Text: p}
	}
	if out.Tables == nil {
		out.Tables = []models.Table{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render json: %w", err)
	}
	return string(data), nil
}

func renderDocTags(doc *parsed) string {
	var b strings.Builder
	b.WriteString("<doctag>")
	if doc.Title != "" {
		b.WriteString("<title>" + html.EscapeString(doc.Title) + "</title>")
	}
	for i, p := range doc.Pages {
		if i > 0 {
			b.WriteString("<page_break>")
		}
		for _, para := range strings.Split(p, "\n\n") {
			if para = strings.TrimSpace(para); para == "" {
				continue
			}
			tag := "text"
			if strings.HasPrefix(para, "#") {
				tag = "section_header_level_1"
				para = strings.TrimSpace(strings.TrimLeft(para, "#"))
			}
			fmt.Fprintf(&b, "<%s>%s</%s>", tag, html.EscapeString(para), tag)
		}
	}
	for _, t := range doc.Tables {
		b.WriteString("<otsl>")
		for _, h := range t.Headers {
			b.WriteString("<ched>" + html.EscapeString(h))
		}
		b.WriteString("<nl>")
		for _, r := range t.Rows {
			for _, cell := range r {
				b.WriteString("<fcel>" + html.EscapeString(cell))
			}
			b.WriteString("<nl>")
		}
		b.WriteString("</otsl>")
	}
	b.WriteString("</doctag>")
	return b.String()
}

var mdLink = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)

// stripMarkdown removes heading markers, emphasis and link targets.
func stripMarkdown(md string) string {
	var lines []string
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		line = strings.NewReplacer("**", "", "__", "", "*", "").Replace(line)
		line = mdLink.ReplaceAllString(line, "$1")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
