package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/repository"
)

type memChatRepo struct {
	mu    sync.Mutex
	chats map[string]domain.Chat
}

func newMemChatRepo(chats ...domain.Chat) *memChatRepo {
	r := &memChatRepo{chats: make(map[string]domain.Chat)}
	for _, c := range chats {
		r.chats[c.ID] = c
	}
	return r
}

func (r *memChatRepo) Create(_ context.Context, chat domain.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chat.ID] = chat
	return nil
}

func (r *memChatRepo) GetByID(_ context.Context, id string) (domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.IsDeleted {
		return domain.Chat{}, pgx.ErrNoRows
	}
	return c, nil
}

func (r *memChatRepo) ListByUser(_ context.Context, userID string) ([]domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Chat
	for _, c := range r.chats {
		if c.UserID == userID && !c.IsDeleted {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memChatRepo) UpdateTitle(_ context.Context, id, title string) (domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.IsDeleted {
		return domain.Chat{}, pgx.ErrNoRows
	}
	c.Title = title
	r.chats[id] = c
	return c, nil
}

func (r *memChatRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.IsDeleted {
		return pgx.ErrNoRows
	}
	c.IsDeleted = true
	r.chats[id] = c
	return nil
}

// memMessageRepo guarda el orden de inserción para verificar la secuencia por chat.
type memMessageRepo struct {
	mu        sync.Mutex
	byID      map[string]domain.Message
	order     []string
	createErr error
	listErr   error
	chats     *memChatRepo
}

func newMemMessageRepo(chats *memChatRepo) *memMessageRepo {
	return &memMessageRepo{byID: make(map[string]domain.Message), chats: chats}
}

func (r *memMessageRepo) Create(_ context.Context, m domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.byID[m.ID] = m
	r.order = append(r.order, m.ID)
	if r.chats != nil {
		r.chats.mu.Lock()
		if c, ok := r.chats.chats[m.ChatID]; ok {
			c.LastMessageSnippet = m.Snippet()
			at := m.CreatedAt
			c.LastMessageAt = &at
			r.chats.chats[m.ChatID] = c
		}
		r.chats.mu.Unlock()
	}
	return nil
}

func (r *memMessageRepo) GetByID(_ context.Context, id string) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.IsDeleted {
		return domain.Message{}, pgx.ErrNoRows
	}
	return m, nil
}

func (r *memMessageRepo) ListByChat(_ context.Context, chatID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, id := range r.order {
		m := r.byID[id]
		if m.ChatID == chatID && !m.IsDeleted {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMessageRepo) ListRecentByChat(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	all, _ := r.ListByChat(ctx, chatID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *memMessageRepo) FinalizeStreaming(_ context.Context, id, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	m.Content.Text = content
	m.IsStreaming = false
	r.byID[id] = m
	return nil
}

func (r *memMessageRepo) UpdateContent(_ context.Context, id, content string) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.IsDeleted {
		return domain.Message{}, pgx.ErrNoRows
	}
	m.Content.Text = content
	r.byID[id] = m
	return m, nil
}

func (r *memMessageRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.IsDeleted {
		return pgx.ErrNoRows
	}
	m.IsDeleted = true
	r.byID[id] = m
	return nil
}

func (r *memMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

type memPoemRepo struct {
	mu         sync.Mutex
	poems      map[string]domain.Poem
	embeddings map[string]pgvector.Vector
	similar    []domain.Poem
	err        error
}

func newMemPoemRepo(poems ...domain.Poem) *memPoemRepo {
	r := &memPoemRepo{poems: make(map[string]domain.Poem), embeddings: make(map[string]pgvector.Vector)}
	for _, p := range poems {
		r.poems[p.ID] = p
	}
	return r
}

func (r *memPoemRepo) sorted() []domain.Poem {
	out := make([]domain.Poem, 0, len(r.poems))
	for _, p := range r.poems {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memPoemRepo) Create(_ context.Context, p domain.Poem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poems[p.ID] = p
	return nil
}

func (r *memPoemRepo) GetByID(_ context.Context, id string) (domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.poems[id]
	if !ok {
		return domain.Poem{}, pgx.ErrNoRows
	}
	return p, nil
}

func (r *memPoemRepo) List(_ context.Context, f repository.PoemFilter) ([]domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Poem
	for _, p := range r.sorted() {
		if (f.Dynasty == "" || p.Dynasty == f.Dynasty) && (f.Author == "" || p.Author == f.Author) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPoemRepo) Update(_ context.Context, p domain.Poem) (domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.poems[p.ID]; !ok {
		return domain.Poem{}, pgx.ErrNoRows
	}
	r.poems[p.ID] = p
	return p, nil
}

func (r *memPoemRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.poems[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.poems, id)
	return nil
}

func (r *memPoemRepo) SummariesByDynasty(_ context.Context, per int) ([]domain.PoemSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	counts := map[string]int{}
	var out []domain.PoemSummary
	for _, p := range r.sorted() {
		if counts[p.Dynasty] >= per {
			continue
		}
		counts[p.Dynasty]++
		out = append(out, domain.PoemSummary{ID: p.ID, Title: p.Title, Author: p.Author, Dynasty: p.Dynasty})
	}
	return out, nil
}

func (r *memPoemRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.poems), nil
}

func (r *memPoemRepo) FindExact(_ context.Context, term string) (domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.sorted() {
		if p.Title == term || p.Author == term {
			return p, nil
		}
		for _, l := range p.Lines {
			if l.Chinese == term {
				return p, nil
			}
		}
	}
	return domain.Poem{}, pgx.ErrNoRows
}

func (r *memPoemRepo) Random(context.Context) (domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	if len(all) == 0 {
		return domain.Poem{}, pgx.ErrNoRows
	}
	return all[0], nil
}

func (r *memPoemRepo) SearchKeywords(_ context.Context, keywords []string, limit int) ([]domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.Poem
	for _, p := range r.sorted() {
		hay := strings.ToLower(p.Title + " " + p.Author + " " + p.Dynasty + " " + p.Explanation)
		for _, l := range p.Lines {
			hay += " " + strings.ToLower(l.Chinese+" "+l.Translation)
		}
		for _, k := range keywords {
			if strings.Contains(hay, strings.ToLower(k)) {
				out = append(out, p)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memPoemRepo) SearchSimilar(_ context.Context, _ pgvector.Vector, limit int) ([]domain.Poem, error) {
	if len(r.similar) > limit {
		return r.similar[:limit], nil
	}
	return r.similar, nil
}

func (r *memPoemRepo) SetEmbedding(_ context.Context, id string, v pgvector.Vector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.poems[id]; !ok {
		return pgx.ErrNoRows
	}
	r.embeddings[id] = v
	return nil
}

func (r *memPoemRepo) ListMissingEmbeddings(_ context.Context, limit int) ([]domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Poem
	for _, p := range r.sorted() {
		if _, ok := r.embeddings[p.ID]; !ok {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memPoemRepo) SetAudioResources(_ context.Context, id string, res domain.PoemAudioResources) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.poems[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.AudioResources = &res
	r.poems[id] = p
	return nil
}
