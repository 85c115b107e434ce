package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/llm"
	"poetry-tutor/internal/repository"
)

const defaultEmbeddingBatch = 20

var ErrEmbedderNotConfigured = errors.New("embedder not configured")

// EmbeddingService completa los embeddings que usa la búsqueda por similitud.
type EmbeddingService struct {
	poems    repository.PoemRepository
	embedder llm.Embedder
	logger   *zap.Logger
}

func NewEmbeddingService(poems repository.PoemRepository, embedder llm.Embedder, logger *zap.Logger) *EmbeddingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingService{poems: poems, embedder: embedder, logger: logger}
}

// Backfill procesa lotes hasta que no queden poemas sin embedding. Un poema que
// falla se saltea y se reporta en el conteo de fallidos.
func (s *EmbeddingService) Backfill(ctx context.Context, batch int) (done, failed int, err error) {
	if s.embedder == nil {
		return 0, 0, ErrEmbedderNotConfigured
	}
	if batch <= 0 {
		batch = defaultEmbeddingBatch
	}
	skipped := make(map[string]struct{})
	for {
		poems, err := s.poems.ListMissingEmbeddings(ctx, batch+len(skipped))
		if err != nil {
			return done, failed, fmt.Errorf("list missing embeddings: %w", err)
		}
		progress := false
		for _, p := range poems {
			if _, ok := skipped[p.ID]; ok {
				continue
			}
			progress = true
			if err := s.EmbedPoem(ctx, p); err != nil {
				if ctx.Err() != nil {
					return done, failed, ctx.Err()
				}
				s.logger.Warn("embed poem failed", zap.String("poem_id", p.ID), zap.Error(err))
				skipped[p.ID] = struct{}{}
				failed++
				continue
			}
			done++
		}
		if !progress {
			return done, failed, nil
		}
	}
}

func (s *EmbeddingService) EmbedPoem(ctx context.Context, p domain.Poem) error {
	vec, err := s.embedder.Embed(ctx, EmbeddingText(p))
	if err != nil {
		return err
	}
	return s.poems.SetEmbedding(ctx, p.ID, pgvector.NewVector(vec))
}

// EmbeddingText concatena los campos buscables del poema.
func EmbeddingText(p domain.Poem) string {
	parts := []string{p.Title, p.Author, p.Dynasty}
	for _, l := range p.Lines {
		parts = append(parts, l.Chinese, l.Translation)
	}
	parts = append(parts, p.Explanation)
	var b strings.Builder
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(part)
		}
	}
	return b.String()
}
