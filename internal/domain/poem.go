package domain

import "time"

type PoemLine struct {
	Chinese     string `json:"chinese"`
	Pinyin      string `json:"pinyin,omitempty"`
	Translation string `json:"translation,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

type Poem struct {
	ID                        string              `json:"_id"`
	Title                     string              `json:"title"`
	Author                    string              `json:"author"`
	Dynasty                   string              `json:"dynasty"`
	Lines                     []PoemLine          `json:"lines"`
	Explanation               string              `json:"explanation,omitempty"`
	HistoricalCulturalContext string              `json:"historicalCulturalContext,omitempty"`
	AudioResources            *PoemAudioResources `json:"audioResources,omitempty"`
	CreatedAt                 time.Time           `json:"createdAt"`
	UpdatedAt                 time.Time           `json:"updatedAt"`
}

// AudioSegment con Duration 0 y URL vacía es un placeholder de un segmento fallido.
type AudioSegment struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

type LineAudio struct {
	LineIndex int `json:"lineIndex"`
	AudioSegment
}

type WordAudio struct {
	Word string `json:"word"`
	AudioSegment
}

type PoemAudioResources struct {
	FullReading AudioSegment `json:"fullReading"`
	Lines       []LineAudio  `json:"lines"`
	Words       []WordAudio  `json:"words"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// PoemSummary es la vista corta que se usa en el contexto del prompt.
type PoemSummary struct {
	ID      string `json:"_id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Dynasty string `json:"dynasty"`
}
