package service

import (
	"sort"
	"strings"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/llm"
)

const (
	LangEnglish = "en-US"
	LangChinese = "zh-CN"
)

// ConversationAssembler arma la lista de mensajes que recibe el proveedor.
type ConversationAssembler struct {
	SystemPrompt func(lang string) string
	// MaxMessages acota la lista completa; <= 0 desactiva el recorte.
	MaxMessages int
}

func NewConversationAssembler(maxMessages int) *ConversationAssembler {
	return &ConversationAssembler{SystemPrompt: SystemPrompt, MaxMessages: maxMessages}
}

// Build devuelve: preámbulo, contextos no vacíos, historial cronológico y la
// consulta del usuario. Nunca devuelve una lista vacía.
func (a *ConversationAssembler) Build(lang string, history []domain.Message, extraContext []string, userQuery string) []llm.Message {
	prompt := SystemPrompt
	if a != nil && a.SystemPrompt != nil {
		prompt = a.SystemPrompt
	}

	system := []llm.Message{{Role: llm.RoleSystem, Content: prompt(lang)}}
	for _, c := range extraContext {
		if strings.TrimSpace(c) != "" {
			system = append(system, llm.Message{Role: llm.RoleSystem, Content: c})
		}
	}

	ordered := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.IsDeleted || strings.TrimSpace(m.Content.Text) == "" {
			continue
		}
		ordered = append(ordered, m)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	turns := make([]llm.Message, 0, len(ordered)+1)
	for _, m := range ordered {
		role := llm.RoleUser
		if m.IsAIResponse {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Message{Role: role, Content: m.Content.Text})
	}

	query := strings.TrimSpace(userQuery)
	if query != "" {
		n := len(turns)
		if n == 0 || turns[n-1].Role != llm.RoleUser || strings.TrimSpace(turns[n-1].Content) != query {
			turns = append(turns, llm.Message{Role: llm.RoleUser, Content: query})
		}
	}

	max := 0
	if a != nil {
		max = a.MaxMessages
	}
	if max > 0 && len(system)+len(turns) > max {
		keep := max - len(system)
		if keep < 1 {
			keep = 1
		}
		if keep < len(turns) {
			turns = turns[len(turns)-keep:]
		}
	}

	return append(system, turns...)
}

// SystemPrompt es el preámbulo fijo del tutor.
func SystemPrompt(lang string) string {
	if lang == LangChinese {
		return `你是一位耐心的中国古诗词老师。
- 用简洁清楚的中文回答，引用诗句时给出原文、拼音和白话解释。
- 介绍诗人和朝代背景时保持准确，不确定时直接说明。
- 使用 Markdown 组织回答，诗句单独成行。`
	}
	return `You are a patient tutor of classical Chinese poetry.
- Answer in clear English. When quoting a poem give the Chinese original, pinyin and an English translation.
- Explain historical and cultural background accurately and say so when you are unsure.
- Format answers in Markdown and put each poem line on its own line.`
}
