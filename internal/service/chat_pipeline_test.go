package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/llm"
	"poetry-tutor/internal/speech"
)

type fakeSpeaker struct {
	mu       sync.Mutex
	err      error
	size     int64
	requests []speech.SpeakRequest
}

func (f *fakeSpeaker) Speak(_ context.Context, req speech.SpeakRequest) (speech.AudioArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return speech.AudioArtifact{}, f.err
	}
	size := f.size
	if size == 0 {
		size = 3200
	}
	return speech.AudioArtifact{
		URL:         "http://localhost:8080/dist/" + req.OutputName,
		LocalPath:   "dist/" + req.OutputName,
		VoiceID:     req.VoiceID,
		ContentType: speech.ContentTypeWAV,
		FileSize:    size,
		Base64Data:  "UklGRg==",
	}, nil
}

type scheduledDelete struct {
	path  string
	delay time.Duration
}

type fakeCleaner struct {
	mu      sync.Mutex
	deletes []scheduledDelete
}

func (c *fakeCleaner) DeleteAfter(path string, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, scheduledDelete{path, delay})
}

type recordedEvents struct {
	events   []string
	failFrom int
}

func (r *recordedEvents) Fragment(id, text string) error {
	if r.failFrom > 0 && len(r.events)+1 >= r.failFrom {
		return errors.New("client gone")
	}
	r.events = append(r.events, "fragment:"+text)
	return nil
}

func (r *recordedEvents) Audio(id string, a speech.AudioArtifact) error {
	r.events = append(r.events, "audio:"+a.VoiceID)
	return nil
}

func (r *recordedEvents) AudioError(id, reason string) error {
	r.events = append(r.events, "audio_error:"+reason)
	return nil
}

type pipelineFixture struct {
	pipeline *ChatPipeline
	chats    *memChatRepo
	messages *memMessageRepo
	adapter  *llm.MockAdapter
	speaker  *fakeSpeaker
	cleaner  *fakeCleaner
}

func newPipelineFixture(t *testing.T, fragments ...string) *pipelineFixture {
	t.Helper()
	chats := newMemChatRepo(
		domain.Chat{ID: "c1", UserID: owner.UserID, Title: "静夜思"},
		domain.Chat{ID: "c2", UserID: owner.UserID, Title: "春晓"},
	)
	messages := newMemMessageRepo(chats)
	adapter := &llm.MockAdapter{Fragments: fragments}
	router := llm.NewModelRouterWithAdapters(llm.KindDeepSeek, "deepseek-r1",
		map[llm.AdapterKind]llm.Adapter{llm.KindDeepSeek: adapter, llm.KindOpenAI: adapter}, nil)
	speaker := &fakeSpeaker{}
	cleaner := &fakeCleaner{}
	p := NewChatPipeline(NewChatService(chats), messages, router, NewConversationAssembler(40),
		nil, speaker, cleaner, PipelineConfig{StreamThreshold: 10_000}, nil)
	return &pipelineFixture{pipeline: p, chats: chats, messages: messages, adapter: adapter, speaker: speaker, cleaner: cleaner}
}

func TestProcessValidation(t *testing.T) {
	f := newPipelineFixture(t, "hi")
	cases := []ProcessInput{
		{Actor: owner, ChatID: "c1", Content: ""},
		{Actor: owner, ChatID: "c1", Content: "   "},
		{Actor: owner, ChatID: "", Content: "hola"},
	}
	for _, in := range cases {
		if _, err := f.pipeline.Process(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}
	if f.messages.count() != 0 {
		t.Fatalf("no message should be persisted")
	}
	if _, ok := f.adapter.LastRequest(); ok {
		t.Fatalf("provider must not be called")
	}
}

func TestProcessForbiddenChat(t *testing.T) {
	f := newPipelineFixture(t, "hi")
	_, err := f.pipeline.Process(context.Background(), ProcessInput{Actor: other, ChatID: "c1", Content: "hola"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestProcessPersistsAndAttachesAudio(t *testing.T) {
	f := newPipelineFixture(t, "床前", "明月光")
	out, err := f.pipeline.Process(context.Background(), ProcessInput{
		Actor: owner, ChatID: "c1", Content: "recite 静夜思", SendAudioData: true,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.AIMessage.Content.Text != "床前明月光" || !out.AIMessage.IsAIResponse {
		t.Fatalf("unexpected ai message %+v", out.AIMessage)
	}
	if out.AIMessage.ReplyToMessageID == nil || *out.AIMessage.ReplyToMessageID != out.UserMessage.ID {
		t.Fatalf("ai message must reply to the user message")
	}
	if out.Status != StatusEmbeddedAudio || out.Audio.Data == "" {
		t.Fatalf("expected embedded audio, got %q %+v", out.Status, out.Audio)
	}
	if got := f.speaker.requests[0]; got.VoiceID != defaultChatVoice || got.OutputName != "tts-"+out.AIMessage.ID+".wav" {
		t.Fatalf("unexpected speak request %+v", got)
	}
	if len(f.cleaner.deletes) != 1 || f.cleaner.deletes[0].delay != embeddedAudioTTL {
		t.Fatalf("expected 5s delete, got %+v", f.cleaner.deletes)
	}

	req, _ := f.adapter.LastRequest()
	if req.MaxTokens != pipelineMaxTokens || req.Temperature != pipelineTemperature {
		t.Fatalf("unexpected request params %+v", req)
	}
	if req.Model != "deepseek/deepseek-r1:free" {
		t.Fatalf("expected catalog model, got %q", req.Model)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != llm.RoleUser || last.Content != "recite 静夜思" {
		t.Fatalf("last message should be the query, got %+v", last)
	}
	if f.chats.chats["c1"].LastMessageSnippet != "床前明月光" {
		t.Fatalf("chat snippet not updated: %+v", f.chats.chats["c1"])
	}
}

func TestProcessAudioDelivery(t *testing.T) {
	t.Run("sobre el umbral", func(t *testing.T) {
		f := newPipelineFixture(t, "hi")
		f.speaker.size = 20_000
		out, err := f.pipeline.Process(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi", SendAudioData: true})
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if !out.Audio.Streaming || out.Audio.Data != "" || out.Status != StatusStreamableAudio {
			t.Fatalf("expected streamable audio, got %q %+v", out.Status, out.Audio)
		}
		if f.cleaner.deletes[0].delay != linkedAudioTTL {
			t.Fatalf("expected 60s delete, got %v", f.cleaner.deletes[0].delay)
		}
	})

	t.Run("solo url", func(t *testing.T) {
		f := newPipelineFixture(t, "hi")
		out, err := f.pipeline.Process(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi", VoiceID: "zh-CN-XiaoxiaoNeural"})
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if out.Audio.URL == "" || out.Audio.Data != "" || out.Status != StatusGenerated {
			t.Fatalf("expected url only, got %q %+v", out.Status, out.Audio)
		}
		if out.Audio.VoiceID != "zh-CN-XiaoxiaoNeural" {
			t.Fatalf("voice not forwarded: %+v", out.Audio)
		}
	})
}

func TestProcessTTSFailureKeepsText(t *testing.T) {
	f := newPipelineFixture(t, "你好")
	f.speaker.err = &speech.SynthesisError{Stderr: "boom", Err: errors.New("exit status 1")}

	out, err := f.pipeline.Process(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi", SendAudioData: true})
	if err != nil {
		t.Fatalf("tts failure must not fail the request: %v", err)
	}
	if out.Status != StatusTTSFailed || out.Audio.Error != audioErrorTTS || out.Audio.URL != "" {
		t.Fatalf("unexpected audio payload %q %+v", out.Status, out.Audio)
	}
	if !strings.Contains(out.Audio.ErrorDetails, "boom") {
		t.Fatalf("error details should carry stderr: %q", out.Audio.ErrorDetails)
	}
	stored, _ := f.messages.GetByID(context.Background(), out.AIMessage.ID)
	if stored.Content.Text != "你好" {
		t.Fatalf("stored text changed: %q", stored.Content.Text)
	}
}

func TestProcessEmptyCompletionUsesFallback(t *testing.T) {
	f := newPipelineFixture(t)
	out, err := f.pipeline.Process(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.AIMessage.Content.Text != fallbackText {
		t.Fatalf("expected fallback text, got %q", out.AIMessage.Content.Text)
	}
}

func TestProcessUpstreamAndPersistenceErrors(t *testing.T) {
	t.Run("upstream", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.adapter.Err = errors.New("provider down")
		if _, err := f.pipeline.Process(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi"}); err == nil {
			t.Fatalf("expected upstream error")
		}
		if f.messages.count() != 1 {
			t.Fatalf("only the user message should be stored, got %d", f.messages.count())
		}
	})

	t.Run("persistencia", func(t *testing.T) {
		f := newPipelineFixture(t, "hi")
		f.messages.createErr = errors.New("db down")
		_, err := f.pipeline.Process(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi"})
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
	})
}

func TestStreamFragmentsThenAudio(t *testing.T) {
	f := newPipelineFixture(t, "你", "好")
	events := &recordedEvents{}
	if err := f.pipeline.Stream(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi"}, events); err != nil {
		t.Fatalf("stream: %v", err)
	}
	want := []string{"fragment:你", "fragment:好", "audio:" + defaultChatVoice}
	if fmt.Sprint(events.events) != fmt.Sprint(want) {
		t.Fatalf("got %v want %v", events.events, want)
	}

	msgs, _ := f.messages.ListByChat(context.Background(), "c1")
	ai := msgs[len(msgs)-1]
	if ai.Content.Text != "你好" || ai.IsStreaming {
		t.Fatalf("ai message not finalized: %+v", ai)
	}
	if len(f.cleaner.deletes) != 1 || f.cleaner.deletes[0].delay != streamedAudioTTL {
		t.Fatalf("expected 10s delete, got %+v", f.cleaner.deletes)
	}
}

func TestStreamAudioError(t *testing.T) {
	f := newPipelineFixture(t, "你好")
	f.speaker.err = errors.New("exit status 1")
	events := &recordedEvents{}
	if err := f.pipeline.Stream(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi"}, events); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got := events.events[len(events.events)-1]; got != "audio_error:"+StreamAudioError {
		t.Fatalf("expected audio_error last, got %v", events.events)
	}
}

func TestStreamUpstreamFailureFinalizesWithApology(t *testing.T) {
	f := newPipelineFixture(t, "部分")
	f.adapter.StreamErr = errors.New("connection reset")
	events := &recordedEvents{}
	err := f.pipeline.Stream(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi"}, events)
	if err == nil {
		t.Fatalf("expected upstream error")
	}
	if len(events.events) != 1 || events.events[0] != "fragment:部分" {
		t.Fatalf("partial fragment should have been delivered: %v", events.events)
	}
	msgs, _ := f.messages.ListByChat(context.Background(), "c1")
	ai := msgs[len(msgs)-1]
	if ai.Content.Text != apologyText || ai.IsStreaming {
		t.Fatalf("expected apology and cleared streaming flag, got %+v", ai)
	}
	if len(f.speaker.requests) != 0 {
		t.Fatalf("no audio after a failed stream")
	}
}

func TestStreamClientGoneStopsConsuming(t *testing.T) {
	f := newPipelineFixture(t, "一", "二", "三")
	events := &recordedEvents{failFrom: 2}
	if err := f.pipeline.Stream(context.Background(), ProcessInput{Actor: owner, ChatID: "c1", Content: "hi"}, events); err == nil {
		t.Fatalf("expected client gone error")
	}
	if len(events.events) != 1 {
		t.Fatalf("expected consumption to stop after the failed write, got %v", events.events)
	}
	msgs, _ := f.messages.ListByChat(context.Background(), "c1")
	if msgs[len(msgs)-1].IsStreaming {
		t.Fatalf("streaming flag left set")
	}
}

func TestProcessConcurrentChatsStayOrdered(t *testing.T) {
	f := newPipelineFixture(t, "ok")
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, chatID := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(chatID string) {
			defer wg.Done()
			_, err := f.pipeline.Process(context.Background(), ProcessInput{Actor: owner, ChatID: chatID, Content: "hello " + chatID})
			errs <- err
		}(chatID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	for _, chatID := range []string{"c1", "c2"} {
		msgs, _ := f.messages.ListByChat(context.Background(), chatID)
		if len(msgs) != 2 {
			t.Fatalf("chat %s: expected 2 messages, got %d", chatID, len(msgs))
		}
		if msgs[0].IsAIResponse || !msgs[1].IsAIResponse {
			t.Fatalf("chat %s: expected user then ai", chatID)
		}
		if msgs[0].Content.Text != "hello "+chatID || *msgs[1].ReplyToMessageID != msgs[0].ID {
			t.Fatalf("chat %s: messages interleaved across chats", chatID)
		}
	}
}

func TestGenerate(t *testing.T) {
	f := newPipelineFixture(t, "一首诗")
	res, err := f.pipeline.Generate(context.Background(), "You are a poet.", "write", "gpt-4")
	if err != nil || res.Content != "一首诗" {
		t.Fatalf("generate: %+v %v", res, err)
	}
	req, _ := f.adapter.LastRequest()
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem || req.Model != "gpt-4" {
		t.Fatalf("unexpected request %+v", req)
	}
	if _, err := f.pipeline.Generate(context.Background(), "", " ", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
