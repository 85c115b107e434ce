package domain

import "time"

const DefaultChatTitle = "new chat"

type Chat struct {
	ID                 string     `json:"_id"`
	UserID             string     `json:"userId"`
	Title              string     `json:"title"`
	LastMessageSnippet string     `json:"lastMessageSnippet,omitempty"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
	IsDeleted          bool       `json:"isDeleted"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}
