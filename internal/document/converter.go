package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nikhilbhutani/docconvert/internal/models"
	"github.com/nikhilbhutani/docconvert/pkg/textextract"
)

// Input is a resolved local file ready for conversion.
type Input struct {
	Path     string
	Filename string
}

// Conversion is the engine output before chunking and embedding.
type Conversion struct {
	DocumentType string
	Content      string
	Tables       []models.Table
	Metadata     map[string]any
	PageCount    int
}

type Converter interface {
	Convert(ctx context.Context, in Input, opts models.ConversionOptions) (*Conversion, error)
}

// ErrUnsupportedInput marks an input the converter can never handle with
// the given options. Retrying does not help.
var ErrUnsupportedInput = errors.New("unsupported input")

// minTextForPDF is the extracted length under which a PDF is treated as scanned.
const minTextForPDF = 50

type LocalConverter struct {
	ocr *OCRService
}

func NewLocalConverter(ocr *OCRService) *LocalConverter {
	return &LocalConverter{ocr: ocr}
}

func (c *LocalConverter) Convert(ctx context.Context, in Input, opts models.ConversionOptions) (*Conversion, error) {
	docType := DetectType(in.Path)

	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	doc := &parsed{Type: docType, Title: titleFromFilename(in.Filename)}
	meta := map[string]any{}
	imageCount := 0

	switch docType {
	case TypeXLSX, TypeCSV:
		var sheets []sheet
		if docType == TypeXLSX {
			sheets, err = readXLSX(bytes.NewReader(data))
		} else {
			sheets, err = readCSV(bytes.NewReader(data))
		}
		if err != nil {
			return nil, err
		}
		for _, s := range sheets {
			doc.Pages = append(doc.Pages, "## "+s.name+"\n\n"+s.table.Markdown)
			doc.Tables = append(doc.Tables, s.table)
		}

	case TypeImage:
		if !opts.OCREnabled {
			return nil, fmt.Errorf("image input requires ocr_enabled: %w", ErrUnsupportedInput)
		}
		text, err := c.ocr.ExtractText(ctx, in.Path)
		if err != nil {
			return nil, err
		}
		doc.Pages = []string{text}
		meta["ocr_applied"] = true

	default:
		ext, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), string(docType))
		if err != nil {
			return nil, err
		}
		doc.Pages = ext.Pages
		imageCount = ext.ImageCount
		if t := ext.Metadata["title"]; t != "" {
			doc.Title = t
		}

		if docType == TypePDF && opts.OCREnabled && len(strings.TrimSpace(ext.Content())) < minTextForPDF && c.ocr.IsAvailable() {
			pages, err := c.ocr.ExtractPDF(ctx, in.Path)
			if err != nil {
				slog.Warn("ocr fallback failed", "file", in.Filename, "error", err)
			} else {
				doc.Pages = pages
				meta["ocr_applied"] = true
			}
		}
		if docType == TypeMarkdown {
			doc.Tables = markdownTables(ext.Content(), 0)
		}
	}

	content, err := render(doc, opts.OutputFormat)
	if err != nil {
		return nil, err
	}

	pageCount := max(len(doc.Pages), 1)
	meta["title"] = doc.Title
	meta["page_count"] = pageCount
	meta["filename"] = in.Filename
	meta["mimetype"] = MimeType(docType)
	if opts.ExtractImages {
		meta["image_count"] = imageCount
	}

	tables := doc.Tables
	if !opts.ExtractTables {
		tables = nil
	} else if tables == nil {
		tables = []models.Table{}
	}

	return &Conversion{
		DocumentType: string(docType),
		Content:      content,
		Tables:       tables,
		Metadata:     meta,
		PageCount:    pageCount,
	}, nil
}

func titleFromFilename(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
