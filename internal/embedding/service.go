package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDimensions means blank texts need zero vectors but the model's
// width is neither known nor configured.
var ErrUnknownDimensions = errors.New("embedding dimensions unknown, set EMBEDDING_DIMENSIONS")

// Service embeds chunk texts while keeping output aligned with input.
// Blank texts never reach the provider and come back as zero vectors.
type Service struct {
	provider   Provider
	model      string
	dimensions int
	batchSize  int
}

func NewService(p Provider, model string, dimensions int) *Service {
	if dimensions <= 0 {
		dimensions = DimensionsFor(model)
	}
	return &Service{
		provider:   p,
		model:      model,
		dimensions: dimensions,
	}
}

// WithBatchSize caps the number of texts per provider call. Zero sends
// every text in a single call.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

func (s *Service) Model() string { return s.model }

func (s *Service) Dimensions() int { return s.dimensions }

// Validate reports a configuration the service cannot embed with.
func (s *Service) Validate() error {
	if s.dimensions <= 0 {
		return fmt.Errorf("model %q: %w", s.model, ErrUnknownDimensions)
	}
	return nil
}

func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var (
		input []string
		index []int
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		input = append(input, t)
		index = append(index, i)
	}
	if len(input) < len(texts) && s.dimensions <= 0 {
		return nil, fmt.Errorf("model %q: %w", s.model, ErrUnknownDimensions)
	}

	dims := s.dimensions
	size := s.batchSize
	if size <= 0 {
		size = max(len(input), 1)
	}

	for start := 0; start < len(input); start += size {
		end := min(start+size, len(input))

		vectors, err := s.provider.GenerateEmbedding(ctx, s.model, input[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embed texts %d-%d: got %d vectors", start, end, len(vectors))
		}
		for j, v := range vectors {
			if dims == 0 {
				dims = len(v)
			}
			if len(v) != dims {
				return nil, fmt.Errorf("embed texts %d-%d: vector width %d, want %d", start, end, len(v), dims)
			}
			out[index[start+j]] = v
		}
	}

	for i := range out {
		if out[i] == nil {
			out[i] = make([]float32, dims)
		}
	}
	return out, nil
}
