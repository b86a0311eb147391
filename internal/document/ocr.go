package document

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// OCRService shells out to tesseract, and to pdftoppm for scanned PDFs.
type OCRService struct {
	tesseractPath string
	pdftoppmPath  string
	language      string

	once      sync.Once
	available bool
}

func NewOCRService(language string) *OCRService {
	path, _ := exec.LookPath("tesseract")
	if path == "" {
		path = "tesseract"
	}
	raster, _ := exec.LookPath("pdftoppm")
	if language == "" {
		language = "eng"
	}
	return &OCRService{tesseractPath: path, pdftoppmPath: raster, language: language}
}

func (o *OCRService) IsAvailable() bool {
	o.once.Do(func() {
		o.available = exec.Command(o.tesseractPath, "--version").Run() == nil
	})
	return o.available
}

func (o *OCRService) ExtractText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, o.tesseractPath, imagePath, "stdout", "-l", o.language)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// ExtractPDF rasterizes each page and OCRs it. Returns one string per page.
func (o *OCRService) ExtractPDF(ctx context.Context, pdfPath string) ([]string, error) {
	if o.pdftoppmPath == "" {
		return nil, fmt.Errorf("pdftoppm not installed")
	}

	dir, err := os.MkdirTemp("", "docling-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create ocr dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, o.pdftoppmPath, "-r", "300", "-png", pdfPath, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("rasterize pdf: %w: %s", err, strings.TrimSpace(string(out)))
	}

	images, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, fmt.Errorf("list rasterized pages: %w", err)
	}
	// pdftoppm zero-pads page numbers to equal width, so lexical order is page order.
	sort.Strings(images)

	pages := make([]string, 0, len(images))
	for _, img := range images {
		text, err := o.ExtractText(ctx, img)
		if err != nil {
			return nil, err
		}
		pages = append(pages, text)
	}
	return pages, nil
}
