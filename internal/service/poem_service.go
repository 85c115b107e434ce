package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/repository"
)

type PoemService struct {
	poems repository.PoemRepository
}

var ErrPoemServiceNotConfigured = errors.New("poem service not configured")

func NewPoemService(poems repository.PoemRepository) *PoemService {
	return &PoemService{poems: poems}
}

type PoemInput struct {
	Title                     string            `json:"title"`
	Author                    string            `json:"author"`
	Dynasty                   string            `json:"dynasty"`
	Lines                     []domain.PoemLine `json:"lines"`
	Explanation               string            `json:"explanation"`
	HistoricalCulturalContext string            `json:"historicalCulturalContext"`
}

func (in PoemInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "required")
	}
	if len(in.Lines) == 0 {
		return invalid("lines", "at least one line required")
	}
	for _, l := range in.Lines {
		if strings.TrimSpace(l.Chinese) == "" {
			return invalid("lines.chinese", "required")
		}
	}
	return nil
}

func (in PoemInput) apply(p *domain.Poem) {
	p.Title = strings.TrimSpace(in.Title)
	p.Author = strings.TrimSpace(in.Author)
	p.Dynasty = strings.TrimSpace(in.Dynasty)
	p.Lines = make([]domain.PoemLine, len(in.Lines))
	for i, l := range in.Lines {
		p.Lines[i] = domain.PoemLine{
			Chinese:     strings.TrimSpace(l.Chinese),
			Pinyin:      strings.TrimSpace(l.Pinyin),
			Translation: strings.TrimSpace(l.Translation),
			Explanation: strings.TrimSpace(l.Explanation),
		}
	}
	p.Explanation = strings.TrimSpace(in.Explanation)
	p.HistoricalCulturalContext = strings.TrimSpace(in.HistoricalCulturalContext)
}

func (s *PoemService) List(ctx context.Context, filter repository.PoemFilter) ([]domain.Poem, error) {
	if s == nil || s.poems == nil {
		return nil, ErrPoemServiceNotConfigured
	}
	poems, err := s.poems.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if poems == nil {
		poems = []domain.Poem{}
	}
	return poems, nil
}

func (s *PoemService) Get(ctx context.Context, id string) (domain.Poem, error) {
	if s == nil || s.poems == nil {
		return domain.Poem{}, ErrPoemServiceNotConfigured
	}
	poem, err := s.poems.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Poem{}, ErrPoemNotFound
	}
	return poem, err
}

func (s *PoemService) Create(ctx context.Context, input PoemInput) (domain.Poem, error) {
	if s == nil || s.poems == nil {
		return domain.Poem{}, ErrPoemServiceNotConfigured
	}
	if err := input.validate(); err != nil {
		return domain.Poem{}, err
	}
	now := time.Now().UTC()
	poem := domain.Poem{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	input.apply(&poem)
	if err := s.poems.Create(ctx, poem); err != nil {
		return domain.Poem{}, err
	}
	return poem, nil
}

func (s *PoemService) Update(ctx context.Context, id string, input PoemInput) (domain.Poem, error) {
	if err := input.validate(); err != nil {
		return domain.Poem{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Poem{}, err
	}
	input.apply(&current)
	updated, err := s.poems.Update(ctx, current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Poem{}, ErrPoemNotFound
	}
	return updated, err
}

func (s *PoemService) Delete(ctx context.Context, id string) error {
	if s == nil || s.poems == nil {
		return ErrPoemServiceNotConfigured
	}
	err := s.poems.Delete(ctx, strings.TrimSpace(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPoemNotFound
	}
	return err
}
