package conversion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikhilbhutani/docconvert/internal/document"
	"github.com/nikhilbhutani/docconvert/internal/models"
	"github.com/nikhilbhutani/docconvert/internal/storage"
	"github.com/nikhilbhutani/docconvert/pkg/chunker"
	"github.com/nikhilbhutani/docconvert/pkg/tokenizer"
)

type Downloader interface {
	Download(ctx context.Context, rawURL string) (*document.Downloaded, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Outcome is the result of one attempt. Exactly one of Result and Err is set.
type Outcome struct {
	Result   *models.TaskResult
	Err      error
	Duration time.Duration
}

func (o Outcome) ElapsedMS() int64 { return o.Duration.Milliseconds() }

// Executor runs a single conversion attempt. It never touches the
// correlation store; the caller persists the outcome.
type Executor struct {
	converter  document.Converter
	downloader Downloader
	storage    storage.Storage
	embedder   Embedder
	tempDir    string
}

// NewExecutor wires the collaborators. embedder may be nil, in which case
// tasks that request embeddings fail validation.
func NewExecutor(conv document.Converter, dl Downloader, store storage.Storage, embedder Embedder, tempDir string) *Executor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Executor{
		converter:  conv,
		downloader: dl,
		storage:    store,
		embedder:   embedder,
		tempDir:    tempDir,
	}
}

func (e *Executor) Execute(ctx context.Context, task models.Task) (out Outcome) {
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()

	res, err := e.execute(ctx, task)
	if err != nil {
		return Outcome{Err: err}
	}
	res.ProcessingTimeMS = time.Since(start).Milliseconds()
	return Outcome{Result: res}
}

func (e *Executor) execute(ctx context.Context, task models.Task) (*models.TaskResult, error) {
	if err := task.Source.Validate(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if err := task.Options.Validate(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if task.Options.GenerateEmbeddings && e.embedder == nil {
		return nil, &ValidationError{Msg: "embeddings requested but no embedding provider is configured"}
	}

	in, cleanup, err := e.resolve(ctx, task.Source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	conv, err := e.convert(ctx, in, task.Options)
	if err != nil {
		return nil, err
	}

	res := &models.TaskResult{
		Filename:     in.Filename,
		DocumentType: conv.DocumentType,
		Content:      conv.Content,
		Tables:       conv.Tables,
		Metadata:     conv.Metadata,
		PageCount:    conv.PageCount,
	}

	if task.Options.GenerateEmbeddings {
		chunks, err := e.chunkAndEmbed(ctx, task.TaskID, conv.Content, task.Options)
		if err != nil {
			return nil, err
		}
		res.Chunks = chunks
	}
	return res, nil
}

// resolve materializes the source as a local file. The returned cleanup
// removes any temp file and is safe to call when err != nil.
func (e *Executor) resolve(ctx context.Context, src models.Source) (document.Input, func(), error) {
	noop := func() {}

	if src.URL != "" {
		dl, err := e.downloader.Download(ctx, src.URL)
		if err != nil {
			return document.Input{}, noop, &RetrievableInputError{Source: src.URL, Err: err}
		}
		filename := dl.Filename
		if src.Filename != "" {
			filename = src.Filename
		}
		return document.Input{Path: dl.Path, Filename: filename}, func() { removeTemp(dl.Path) }, nil
	}

	rc, err := e.storage.Open(ctx, src.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		return document.Input{}, noop, &MissingInputError{Path: src.FilePath}
	}
	if err != nil {
		return document.Input{}, noop, &RetrievableInputError{Source: src.FilePath, Err: err}
	}
	defer rc.Close()

	filename := src.Filename
	if filename == "" {
		filename = filepath.Base(src.FilePath)
	}

	f, err := os.CreateTemp(e.tempDir, "docling-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return document.Input{}, noop, &RetrievableInputError{Source: src.FilePath, Err: fmt.Errorf("create temp file: %w", err)}
	}
	_, err = io.Copy(f, rc)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		removeTemp(f.Name())
		return document.Input{}, noop, &RetrievableInputError{Source: src.FilePath, Err: fmt.Errorf("copy input: %w", err)}
	}
	return document.Input{Path: f.Name(), Filename: filename}, func() { removeTemp(f.Name()) }, nil
}

func (e *Executor) convert(ctx context.Context, in document.Input, opts models.ConversionOptions) (conv *document.Conversion, err error) {
	defer func() {
		if r := recover(); r != nil {
			conv, err = nil, &ConversionError{Err: fmt.Errorf("converter panic: %v", r)}
		}
	}()

	conv, err = e.converter.Convert(ctx, in, opts)
	if errors.Is(err, document.ErrUnsupportedInput) {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if err != nil {
		return nil, &ConversionError{Err: err}
	}
	if conv == nil {
		return nil, &ConversionError{Err: errors.New("converter returned no result")}
	}
	return conv, nil
}

func (e *Executor) chunkAndEmbed(ctx context.Context, taskID, content string, opts models.ConversionOptions) ([]models.DocumentChunk, error) {
	spans, err := chunker.Chunk(content, chunker.Options{ChunkSize: opts.ChunkSize, ChunkOverlap: opts.ChunkOverlap})
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if len(spans) == 0 {
		return []models.DocumentChunk{}, nil
	}

	chunks := make([]models.DocumentChunk, len(spans))
	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.Text
		chunks[i] = models.DocumentChunk{
			ID:      chunker.ChunkID(taskID, i),
			Content: s.Text,
			Metadata: models.ChunkMetadata{
				ChunkIndex: i,
				CharStart:  s.Start,
				CharEnd:    s.End,
				ChunkSize:  len([]rune(s.Text)),
				TokenCount: tokenizer.CountTokens(s.Text),
			},
		}
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if len(vectors) != len(chunks) {
		return nil, &EmbeddingError{Err: fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))}
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return chunks, nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to clean up temp file", "path", path, "error", err)
	}
}
