package domain

import "time"

const (
	SenderUser = "user"
	SenderAI   = "ai"

	ContentText = "text"
)

// Sender identifica quién escribió el mensaje. ID es nil para la IA.
type Sender struct {
	Type string  `json:"senderType"`
	ID   *string `json:"senderId"`
}

type MessageContent struct {
	Type string `json:"contentType"`
	Text string `json:"content"`
}

// Message pertenece a un Chat. Solo cambia al finalizar un stream
// (contenido e IsStreaming) o por soft delete.
type Message struct {
	ID               string         `json:"_id"`
	ChatID           string         `json:"chatId"`
	UserID           string         `json:"userId"`
	Sender           Sender         `json:"user"`
	Content          MessageContent `json:"message"`
	IsAIResponse     bool           `json:"isAIResponse"`
	ReplyToMessageID *string        `json:"replyToMessageId,omitempty"`
	IsStreaming      bool           `json:"isStreaming"`
	IsDeleted        bool           `json:"isDeleted"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Snippet resume el mensaje para la lista de chats.
func (m Message) Snippet() string {
	if m.Content.Type != "" && m.Content.Type != ContentText {
		return "[" + m.Content.Type + "]"
	}
	r := []rune(m.Content.Text)
	if len(r) > 50 {
		return string(r[:50])
	}
	return m.Content.Text
}
