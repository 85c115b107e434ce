package speech

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxSpeechRunes     = 1000
	lineBreakThreshold = 300
)

// Los destinos de links e imágenes admiten un nivel de paréntesis.
var (
	reCodeFence  = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\n?(.*?)```")
	reRefDef     = regexp.MustCompile(`(?m)^[ \t]*\[[^\]]+\]:[ \t]*\S.*(?:\n|$)`)
	reImage      = regexp.MustCompile(`!\[([^\]]*)\]\((?:[^()]|\([^()]*\))*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]*)\]\((?:[^()]|\([^()]*\))*\)`)
	reRefLink    = regexp.MustCompile(`\[([^\]]*)\]\[[^\]]*\]`)
	reHeader     = regexp.MustCompile(`(?m)^#{1,6}\s+(.*)$`)
	reBold       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	reBoldUnder  = regexp.MustCompile(`__(.*?)__`)
	reItalic     = regexp.MustCompile(`\*(.*?)\*`)
	reInlineCode = regexp.MustCompile("`([^`]*)`")
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown quita la sintaxis Markdown y conserva el texto visible. Los
// headers conservan su texto, los links su etiqueta y los bloques de código su
// contenido. Las definiciones de referencia se eliminan.
func StripMarkdown(text string) string {
	s := strings.TrimPrefix(text, "\uFEFF")
	s = reCodeFence.ReplaceAllString(s, "$1")
	s = reRefDef.ReplaceAllString(s, "")
	s = reImage.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reRefLink.ReplaceAllString(s, "$1")
	s = reHeader.ReplaceAllString(s, "$1")
	s = reBold.ReplaceAllString(s, "$1")
	s = reBoldUnder.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1")
	s = reInlineCode.ReplaceAllString(s, "$1")
	// Marcadores sueltos que no cerraron.
	s = strings.NewReplacer("*", "", "`", "").Replace(s)
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// PrepareText deja el texto listo para el motor de voz.
func PrepareText(text string) (string, error) {
	s := StripMarkdown(text)
	if s == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(s) > maxSpeechRunes {
		s = string([]rune(s)[:maxSpeechRunes]) + "..."
	}
	if !endsWithPunctuation(s) {
		s += "。"
	}
	if utf8.RuneCountInString(s) > lineBreakThreshold {
		s = strings.NewReplacer("。", "。\n", "！", "！\n", "？", "？\n").Replace(s)
		s = strings.TrimSpace(s)
	}
	return s, nil
}

func endsWithPunctuation(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return strings.ContainsRune("。！？.!?…", r)
}
