package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversionOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConversionOptions)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*ConversionOptions) {}},
		{name: "bounds are inclusive", mutate: func(o *ConversionOptions) { o.ChunkSize = 4096; o.ChunkOverlap = 500 }},
		{name: "unknown format", mutate: func(o *ConversionOptions) { o.OutputFormat = "pdf" }, wantErr: "output_format"},
		{name: "chunk size too small", mutate: func(o *ConversionOptions) { o.ChunkSize = 99 }, wantErr: "chunk_size"},
		{name: "chunk size too large", mutate: func(o *ConversionOptions) { o.ChunkSize = 4097 }, wantErr: "chunk_size"},
		{name: "negative overlap", mutate: func(o *ConversionOptions) { o.ChunkOverlap = -1 }, wantErr: "chunk_overlap"},
		{name: "overlap too large", mutate: func(o *ConversionOptions) { o.ChunkOverlap = 501 }, wantErr: "chunk_overlap"},
		{name: "overlap not smaller than size", mutate: func(o *ConversionOptions) { o.ChunkSize = 100; o.ChunkOverlap = 100 }, wantErr: "smaller than chunk_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultConversionOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPartialOptionsKeepDefaults(t *testing.T) {
	opts := DefaultConversionOptions()
	require.NoError(t, json.Unmarshal([]byte(`{"generate_embeddings": true, "chunk_size": 256}`), &opts))

	assert.True(t, opts.GenerateEmbeddings)
	assert.Equal(t, 256, opts.ChunkSize)
	assert.Equal(t, 50, opts.ChunkOverlap)
	assert.Equal(t, FormatMarkdown, opts.OutputFormat)
	assert.True(t, opts.ExtractTables)
}

func TestSourceValidate(t *testing.T) {
	assert.NoError(t, Source{URL: "https://example.com/a.pdf"}.Validate())
	assert.NoError(t, Source{FilePath: "/tmp/a.pdf"}.Validate())
	assert.Error(t, Source{}.Validate())
	assert.Error(t, Source{URL: "https://example.com/a.pdf", FilePath: "/tmp/a.pdf"}.Validate())
}

func TestFailedRecordResponseHasNullResultFields(t *testing.T) {
	task := Task{TaskID: "t1", Source: Source{URL: "https://example.com/a.pdf"}, CreatedAt: time.Now().UTC()}
	rec := NewFailedRecord(task, "boom", 12, 3, time.Now().UTC())

	data, err := json.Marshal(rec.Response())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "boom", got["error"])
	assert.Nil(t, got["content"])
	assert.Nil(t, got["chunks"])
	assert.Nil(t, got["tables"])
	assert.Nil(t, got["page_count"])
	assert.NotNil(t, got["completed_at"])
	assert.NotContains(t, got, "queue_job_id")
}

func TestCompletedRecordMergesMetadata(t *testing.T) {
	task := Task{
		TaskID:   "t1",
		Source:   Source{FilePath: "/tmp/a.pdf", Filename: "a.pdf"},
		Metadata: map[string]any{"customer": "acme", "title": "mine"},
	}
	res := TaskResult{Content: "hello", Metadata: map[string]any{"title": "Doc"}, PageCount: 2}

	rec := NewCompletedRecord(task, res, 1, time.Now())

	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "acme", rec.Metadata["customer"])
	assert.Equal(t, "Doc", rec.Metadata["title"])
	require.NotNil(t, rec.Filename)
	assert.Equal(t, "a.pdf", *rec.Filename)
	assert.Equal(t, 2, *rec.PageCount)
	assert.Nil(t, rec.Error)
}
