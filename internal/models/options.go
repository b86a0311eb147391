package models

import (
	"errors"
	"fmt"
	"strings"
)

type OutputFormat string

const (
	FormatMarkdown OutputFormat = "markdown"
	FormatJSON     OutputFormat = "json"
	FormatText     OutputFormat = "text"
	FormatDocTags  OutputFormat = "doctags"
)

const (
	MinChunkSize    = 100
	MaxChunkSize    = 4096
	MaxChunkOverlap = 500
)

// ConversionOptions is captured at submission and travels with the job, so
// later changes to defaults never reach in-flight tasks.
type ConversionOptions struct {
	OutputFormat       OutputFormat `json:"output_format"`
	ExtractTables      bool         `json:"extract_tables"`
	ExtractImages      bool         `json:"extract_images"`
	OCREnabled         bool         `json:"ocr_enabled"`
	GenerateEmbeddings bool         `json:"generate_embeddings"`
	ChunkSize          int          `json:"chunk_size"`
	ChunkOverlap       int          `json:"chunk_overlap"`
}

func DefaultConversionOptions() ConversionOptions {
	return ConversionOptions{
		OutputFormat:       FormatMarkdown,
		ExtractTables:      true,
		ExtractImages:      false,
		OCREnabled:         true,
		GenerateEmbeddings: false,
		ChunkSize:          512,
		ChunkOverlap:       50,
	}
}

func (o ConversionOptions) Validate() error {
	var problems []string

	switch o.OutputFormat {
	case FormatMarkdown, FormatJSON, FormatText, FormatDocTags:
	default:
		problems = append(problems, fmt.Sprintf("output_format must be one of markdown, json, text, doctags (got %q)", o.OutputFormat))
	}
	if o.ChunkSize < MinChunkSize || o.ChunkSize > MaxChunkSize {
		problems = append(problems, fmt.Sprintf("chunk_size must be between %d and %d", MinChunkSize, MaxChunkSize))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap > MaxChunkOverlap {
		problems = append(problems, fmt.Sprintf("chunk_overlap must be between 0 and %d", MaxChunkOverlap))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		problems = append(problems, "chunk_overlap must be smaller than chunk_size")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
