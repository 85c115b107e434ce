package http

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/repository"
)

type mockChatRepo struct {
	mu    sync.Mutex
	chats map[string]domain.Chat
}

func newMockChatRepo(chats ...domain.Chat) *mockChatRepo {
	r := &mockChatRepo{chats: make(map[string]domain.Chat)}
	for _, c := range chats {
		r.chats[c.ID] = c
	}
	return r
}

func (r *mockChatRepo) Create(_ context.Context, chat domain.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chat.ID] = chat
	return nil
}

func (r *mockChatRepo) GetByID(_ context.Context, id string) (domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.IsDeleted {
		return domain.Chat{}, pgx.ErrNoRows
	}
	return c, nil
}

func (r *mockChatRepo) ListByUser(_ context.Context, userID string) ([]domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Chat{}
	for _, c := range r.chats {
		if c.UserID == userID && !c.IsDeleted {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockChatRepo) UpdateTitle(ctx context.Context, id, title string) (domain.Chat, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Chat{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Title = title
	r.chats[id] = c
	return c, nil
}

func (r *mockChatRepo) SoftDelete(ctx context.Context, id string) error {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c.IsDeleted = true
	r.chats[id] = c
	return nil
}

type mockMessageRepo struct {
	mu    sync.Mutex
	byID  map[string]domain.Message
	order []string
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{byID: make(map[string]domain.Message)}
}

func (r *mockMessageRepo) Create(_ context.Context, m domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID] = m
	r.order = append(r.order, m.ID)
	return nil
}

func (r *mockMessageRepo) GetByID(_ context.Context, id string) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.IsDeleted {
		return domain.Message{}, pgx.ErrNoRows
	}
	return m, nil
}

func (r *mockMessageRepo) ListByChat(_ context.Context, chatID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Message{}
	for _, id := range r.order {
		if m := r.byID[id]; m.ChatID == chatID && !m.IsDeleted {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *mockMessageRepo) ListRecentByChat(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	all, _ := r.ListByChat(ctx, chatID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *mockMessageRepo) FinalizeStreaming(_ context.Context, id, content string) error {
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

func (r *mockMessageRepo) UpdateContent(ctx context.Context, id, content string) (domain.Message, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Content.Text = content
	r.byID[id] = m
	return m, nil
}

func (r *mockMessageRepo) SoftDelete(ctx context.Context, id string) error {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m.IsDeleted = true
	r.byID[id] = m
	return nil
}

// aiMessages devuelve las respuestas del asistente en orden de creación.
func (r *mockMessageRepo) aiMessages() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, id := range r.order {
		if m := r.byID[id]; m.IsAIResponse {
			out = append(out, m)
		}
	}
	return out
}

// mockPoemRepo cubre el CRUD; las búsquedas no encuentran nada.
type mockPoemRepo struct {
	mu    sync.Mutex
	poems map[string]domain.Poem
}

func newMockPoemRepo(poems ...domain.Poem) *mockPoemRepo {
	r := &mockPoemRepo{poems: make(map[string]domain.Poem)}
	for _, p := range poems {
		r.poems[p.ID] = p
	}
	return r
}

func (r *mockPoemRepo) Create(_ context.Context, p domain.Poem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poems[p.ID] = p
	return nil
}

func (r *mockPoemRepo) GetByID(_ context.Context, id string) (domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.poems[id]
	if !ok {
		return domain.Poem{}, pgx.ErrNoRows
	}
	return p, nil
}

func (r *mockPoemRepo) List(_ context.Context, f repository.PoemFilter) ([]domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Poem{}
	for _, p := range r.poems {
		if (f.Dynasty == "" || p.Dynasty == f.Dynasty) && (f.Author == "" || p.Author == f.Author) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockPoemRepo) Update(_ context.Context, p domain.Poem) (domain.Poem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.poems[p.ID]; !ok {
		return domain.Poem{}, pgx.ErrNoRows
	}
	r.poems[p.ID] = p
	return p, nil
}

func (r *mockPoemRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.poems[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.poems, id)
	return nil
}

func (r *mockPoemRepo) SummariesByDynasty(context.Context, int) ([]domain.PoemSummary, error) {
	return nil, nil
}

func (r *mockPoemRepo) Count(context.Context) (int, error) { return len(r.poems), nil }

func (r *mockPoemRepo) FindExact(context.Context, string) (domain.Poem, error) {
	return domain.Poem{}, pgx.ErrNoRows
}

func (r *mockPoemRepo) Random(context.Context) (domain.Poem, error) {
	return domain.Poem{}, pgx.ErrNoRows
}

func (r *mockPoemRepo) SearchKeywords(context.Context, []string, int) ([]domain.Poem, error) {
	return nil, nil
}

func (r *mockPoemRepo) SearchSimilar(context.Context, pgvector.Vector, int) ([]domain.Poem, error) {
	return nil, nil
}

func (r *mockPoemRepo) SetEmbedding(context.Context, string, pgvector.Vector) error { return nil }

func (r *mockPoemRepo) ListMissingEmbeddings(context.Context, int) ([]domain.Poem, error) {
	return nil, nil
}

func (r *mockPoemRepo) SetAudioResources(_ context.Context, id string, res domain.PoemAudioResources) error {
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
