package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"poetry-tutor/internal/domain"
)

type PoemFilter struct {
	Dynasty string
	Author  string
	Limit   int
	Offset  int
}

type PoemRepository interface {
	Create(ctx context.Context, poem domain.Poem) error
	GetByID(ctx context.Context, id string) (domain.Poem, error)
	List(ctx context.Context, filter PoemFilter) ([]domain.Poem, error)
	Update(ctx context.Context, poem domain.Poem) (domain.Poem, error)
	Delete(ctx context.Context, id string) error

	// SummariesByDynasty devuelve hasta perDynasty poemas por dinastía.
	SummariesByDynasty(ctx context.Context, perDynasty int) ([]domain.PoemSummary, error)
	Count(ctx context.Context) (int, error)
	// FindExact busca por título, autor o un verso exacto.
	FindExact(ctx context.Context, term string) (domain.Poem, error)
	Random(ctx context.Context) (domain.Poem, error)
	SearchKeywords(ctx context.Context, keywords []string, limit int) ([]domain.Poem, error)
	SearchSimilar(ctx context.Context, embedding pgvector.Vector, limit int) ([]domain.Poem, error)

	SetEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error
	ListMissingEmbeddings(ctx context.Context, limit int) ([]domain.Poem, error)
	SetAudioResources(ctx context.Context, id string, res domain.PoemAudioResources) error
}

type PgPoemRepository struct {
	pool *pgxpool.Pool
}

func NewPgPoemRepository(pool *pgxpool.Pool) *PgPoemRepository {
	return &PgPoemRepository{pool: pool}
}

const poemColumns = `id, title, author, dynasty, lines, explanation, historical_cultural_context,
	audio_resources, created_at, updated_at`

func (r *PgPoemRepository) Create(ctx context.Context, poem domain.Poem) error {
	lines, err := json.Marshal(poem.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}
	const query = `
		INSERT INTO poems (id, title, author, dynasty, lines, explanation, historical_cultural_context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		poem.ID,
		poem.Title,
		poem.Author,
		poem.Dynasty,
		lines,
		poem.Explanation,
		poem.HistoricalCulturalContext,
		poem.CreatedAt,
		poem.UpdatedAt,
	)
	return err
}

func (r *PgPoemRepository) GetByID(ctx context.Context, id string) (domain.Poem, error) {
	const query = `SELECT ` + poemColumns + ` FROM poems WHERE id = $1`
	return scanPoem(r.pool.QueryRow(ctx, query, id))
}

func (r *PgPoemRepository) List(ctx context.Context, filter PoemFilter) ([]domain.Poem, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `
		SELECT ` + poemColumns + `
		FROM poems
		WHERE ($1 = '' OR dynasty = $1) AND ($2 = '' OR author = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		strings.TrimSpace(filter.Dynasty),
		strings.TrimSpace(filter.Author),
		limit,
		max(filter.Offset, 0),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPoems(rows)
}

func (r *PgPoemRepository) Update(ctx context.Context, poem domain.Poem) (domain.Poem, error) {
	lines, err := json.Marshal(poem.Lines)
	if err != nil {
		return domain.Poem{}, fmt.Errorf("marshal lines: %w", err)
	}
	const query = `
		UPDATE poems SET title = $2, author = $3, dynasty = $4, lines = $5, explanation = $6,
			historical_cultural_context = $7, updated_at = now()
		WHERE id = $1
		RETURNING ` + poemColumns
	return scanPoem(r.pool.QueryRow(ctx, query,
		poem.ID,
		poem.Title,
		poem.Author,
		poem.Dynasty,
		lines,
		poem.Explanation,
		poem.HistoricalCulturalContext,
	))
}

func (r *PgPoemRepository) Delete(ctx context.Context, id string) error {
	return notFoundIfNone(r.pool.Exec(ctx, `DELETE FROM poems WHERE id = $1`, id))
}

func (r *PgPoemRepository) SummariesByDynasty(ctx context.Context, perDynasty int) ([]domain.PoemSummary, error) {
	if perDynasty <= 0 {
		perDynasty = 5
	}
	const query = `
		SELECT id, title, author, dynasty
		FROM (
			SELECT id, title, author, dynasty,
				row_number() OVER (PARTITION BY dynasty ORDER BY created_at) AS rn
			FROM poems
		) ranked
		WHERE rn <= $1
		ORDER BY dynasty, rn
	`
	rows, err := r.pool.Query(ctx, query, perDynasty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PoemSummary
	for rows.Next() {
		var s domain.PoemSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Author, &s.Dynasty); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgPoemRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM poems`).Scan(&n)
	return n, err
}

func (r *PgPoemRepository) FindExact(ctx context.Context, term string) (domain.Poem, error) {
	const query = `
		SELECT ` + poemColumns + `
		FROM poems
		WHERE title = $1 OR author = $1
			OR EXISTS (SELECT 1 FROM jsonb_array_elements(lines) l WHERE l->>'chinese' = $1)
		ORDER BY (title = $1) DESC
		LIMIT 1
	`
	return scanPoem(r.pool.QueryRow(ctx, query, strings.TrimSpace(term)))
}

func (r *PgPoemRepository) Random(ctx context.Context) (domain.Poem, error) {
	const query = `SELECT ` + poemColumns + ` FROM poems ORDER BY random() LIMIT 1`
	return scanPoem(r.pool.QueryRow(ctx, query))
}

func (r *PgPoemRepository) SearchKeywords(ctx context.Context, keywords []string, limit int) ([]domain.Poem, error) {
	patterns := LikePatterns(keywords)
	if len(patterns) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}
	const query = `
		SELECT ` + poemColumns + `
		FROM poems
		WHERE title ILIKE ANY($1) OR author ILIKE ANY($1) OR dynasty ILIKE ANY($1)
			OR lines::text ILIKE ANY($1) OR explanation ILIKE ANY($1)
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, patterns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPoems(rows)
}

func (r *PgPoemRepository) SearchSimilar(ctx context.Context, embedding pgvector.Vector, limit int) ([]domain.Poem, error) {
	if limit <= 0 {
		limit = 3
	}
	const query = `
		SELECT ` + poemColumns + `
		FROM poems
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, embedding, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPoems(rows)
}

func (r *PgPoemRepository) SetEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error {
	const query = `UPDATE poems SET embedding = $2 WHERE id = $1`
	return notFoundIfNone(r.pool.Exec(ctx, query, id, embedding))
}

func (r *PgPoemRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]domain.Poem, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT ` + poemColumns + ` FROM poems WHERE embedding IS NULL ORDER BY created_at LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPoems(rows)
}

func (r *PgPoemRepository) SetAudioResources(ctx context.Context, id string, res domain.PoemAudioResources) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal audio resources: %w", err)
	}
	const query = `UPDATE poems SET audio_resources = $2, updated_at = now() WHERE id = $1`
	return notFoundIfNone(r.pool.Exec(ctx, query, id, payload))
}

// LikePatterns arma patrones ILIKE escapando los comodines del usuario.
func LikePatterns(keywords []string) []string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, "%"+escaper.Replace(k)+"%")
	}
	return out
}

func scanPoem(row rowScanner) (domain.Poem, error) {
	var (
		p     domain.Poem
		lines []byte
		audio []byte
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Author,
		&p.Dynasty,
		&lines,
		&p.Explanation,
		&p.HistoricalCulturalContext,
		&audio,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Poem{}, err
	}
	if err != nil {
		return domain.Poem{}, err
	}
	if err := decodePoemJSON(&p, lines, audio); err != nil {
		return domain.Poem{}, err
	}
	return p, nil
}

func decodePoemJSON(p *domain.Poem, lines, audio []byte) error {
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &p.Lines); err != nil {
			return fmt.Errorf("decode poem lines: %w", err)
		}
	}
	if len(audio) > 0 && string(audio) != "null" {
		var res domain.PoemAudioResources
		if err := json.Unmarshal(audio, &res); err != nil {
			return fmt.Errorf("decode audio resources: %w", err)
		}
		p.AudioResources = &res
	}
	return nil
}

func scanPoems(rows pgxRows) ([]domain.Poem, error) {
	var poems []domain.Poem
	for rows.Next() {
		p, err := scanPoem(rows)
		if err != nil {
			return nil, err
		}
		poems = append(poems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return poems, nil
}
