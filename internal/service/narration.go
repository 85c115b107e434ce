package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/llm"
	"poetry-tutor/internal/repository"
	"poetry-tutor/internal/speech"
)

const (
	narrationModel     = "deepseek-r1"
	narrationVoice     = "zh-CN-YunxiNeural"
	narrationRate      = "-20%"
	narrationMaxTokens = 1000
	narrationMaxRunes  = 1000

	StatusNarrationGenerated   = "Poem narration generated successfully"
	StatusNarrationAudioFailed = "Poem narration generated successfully (audio generation failed)"
	narrationAudioError        = "Audio generation failed. Please try again with a shorter text."
)

const narrationSystemPrompt = `你是一个专业的古诗朗诵者和故事讲述者。你将为古诗创作朗诵稿，以讲故事的方式表达诗的意境和情感。
遵循以下规则：
1. 使用中文创作朗诵稿
2. 融入诗歌的历史背景和文化背景
3. 以讲故事的方式展开，而不仅仅是朗读
4. 使用生动、优美的语言
5. 适当解释诗歌的含义，但保持流畅自然
6. 字数控制在300-500字之间
7. 口语化的表达，适合朗诵
8. 文章结构：简短介绍 -> 诗歌朗诵 -> 诗意解析 -> 故事化表达 -> 简短结尾
9. 确保生成内容完全符合中国传统文化
10. 注意节奏感和抑扬顿挫

不要在回答中说明你的思考过程，直接提供朗诵稿。`

// NarrationService escribe y lee en voz alta una narración de un poema.
type NarrationService struct {
	poems   repository.PoemRepository
	router  *llm.ModelRouter
	speaker speech.Synthesizer
	cleaner AudioCleaner
	now     func() time.Time
	logger  *zap.Logger
}

func NewNarrationService(poems repository.PoemRepository, router *llm.ModelRouter, speaker speech.Synthesizer, cleaner AudioCleaner, logger *zap.Logger) *NarrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NarrationService{poems: poems, router: router, speaker: speaker, cleaner: cleaner, now: time.Now, logger: logger}
}

type PoemRef struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Dynasty string `json:"dynasty"`
}

type NarrationAudio struct {
	URL         string `json:"url"`
	Base64      string `json:"base64,omitempty"`
	ContentType string `json:"contentType"`
}

type Narration struct {
	Text  string          `json:"text"`
	Audio *NarrationAudio `json:"audio,omitempty"`
	Error string          `json:"error,omitempty"`
}

type NarrationResult struct {
	Status    string    `json:"-"`
	Poem      PoemRef   `json:"poem"`
	Narration Narration `json:"narration"`
}

// Narrate falla si no hay poema o si la completion falla; la falla de TTS
// devuelve igual el texto.
func (s *NarrationService) Narrate(ctx context.Context, poemID string) (NarrationResult, error) {
	poemID = strings.TrimSpace(poemID)
	if poemID == "" {
		return NarrationResult{}, invalid("poemId", "required")
	}
	poem, err := s.poems.GetByID(ctx, poemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return NarrationResult{}, ErrPoemNotFound
	}
	if err != nil {
		return NarrationResult{}, err
	}

	adapter, mc, err := s.router.Route(narrationModel)
	if err != nil {
		return NarrationResult{}, err
	}
	completion, err := adapter.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: narrationSystemPrompt},
			{Role: llm.RoleUser, Content: narrationPrompt(poem)},
		},
		Model:       mc.ProviderModel,
		Temperature: 0.7,
		MaxTokens:   narrationMaxTokens,
	})
	if err != nil {
		return NarrationResult{}, fmt.Errorf("narration completion: %w", err)
	}

	text := strings.TrimSpace(completion.Content)
	result := NarrationResult{
		Status:    StatusNarrationGenerated,
		Poem:      PoemRef{ID: poem.ID, Title: poem.Title, Author: poem.Author, Dynasty: poem.Dynasty},
		Narration: Narration{Text: text},
	}

	if s.speaker == nil || text == "" {
		result.Status = StatusNarrationAudioFailed
		result.Narration.Error = narrationAudioError
		return result, nil
	}
	name := "poem-narration-" + poem.ID + "-" + strconv.FormatInt(s.now().UnixMilli(), 10) + ".wav"
	art, err := s.speaker.Speak(ctx, speech.SpeakRequest{
		Text:       limitRunes(text, narrationMaxRunes),
		VoiceID:    narrationVoice,
		OutputName: name,
		Rate:       narrationRate,
	})
	if err != nil {
		s.logger.Warn("narration tts failed", zap.String("poem_id", poem.ID), zap.Error(err))
		result.Status = StatusNarrationAudioFailed
		result.Narration.Error = narrationAudioError
		return result, nil
	}
	if s.cleaner != nil {
		s.cleaner.DeleteAfter(art.LocalPath, linkedAudioTTL)
	}
	result.Narration.Audio = &NarrationAudio{URL: art.URL, Base64: art.Base64Data, ContentType: art.ContentType}
	return result, nil
}

func narrationPrompt(p domain.Poem) string {
	lines := make([]string, 0, len(p.Lines))
	for _, l := range p.Lines {
		lines = append(lines, l.Chinese)
	}
	return fmt.Sprintf("请为以下古诗创作一段故事化的朗诵稿：\n\n标题：%s\n朝代：%s\n作者：%s\n原文：\n%s\n\n诗歌解释：\n%s\n\n历史文化背景：\n%s",
		p.Title, p.Dynasty, p.Author, strings.Join(lines, "\n"), p.Explanation, p.HistoricalCulturalContext)
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
