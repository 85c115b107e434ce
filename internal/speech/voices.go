package speech

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}

type VoiceLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}

// FallbackVoices se devuelve cuando no se puede consultar edge-tts.
func FallbackVoices() []Voice {
	return []Voice{
		{ID: "en-US-JennyNeural", Name: "Jenny (Female)", Language: "en-US", Gender: "Female"},
		{ID: "en-US-GuyNeural", Name: "Guy (Male)", Language: "en-US", Gender: "Male"},
	}
}

func (e *EdgeTTS) ListVoices(ctx context.Context) ([]Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	stdout, stderr, err := e.runner.Run(ctx, e.python, "-m", "edge_tts", "--list-voices")
	if err != nil {
		return nil, &SynthesisError{Stderr: string(stderr), Err: fmt.Errorf("list voices: %w", err)}
	}
	voices := ParseVoiceList(string(stdout))
	if len(voices) == 0 {
		return nil, &SynthesisError{Err: fmt.Errorf("list voices: empty output")}
	}
	return voices, nil
}

// ParseVoiceList entiende los dos formatos de edge-tts: bloques "Name: ..." y la
// tabla con columnas.
func ParseVoiceList(out string) []Voice {
	var (
		voices  []Voice
		pending Voice
	)
	flush := func() {
		if pending.ID != "" {
			voices = append(voices, newVoice(pending.ID, pending.Gender))
		}
		pending = Voice{}
	}

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "Name:"):
			flush()
			pending.ID = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Gender:"):
			pending.Gender = strings.TrimSpace(strings.TrimPrefix(line, "Gender:"))
		case strings.Contains(line, ":"):
			// otros campos del formato en bloques
		default:
			fields := strings.FieldsFunc(line, func(r rune) bool { return r == '\t' || r == ' ' })
			if len(fields) < 2 || !strings.HasSuffix(fields[0], "Neural") {
				continue
			}
			voices = append(voices, newVoice(fields[0], fields[1]))
		}
	}
	flush()
	return voices
}

func newVoice(id, gender string) Voice {
	lang := id
	if parts := strings.SplitN(id, "-", 3); len(parts) >= 2 {
		lang = parts[0] + "-" + parts[1]
	}
	name := strings.TrimSuffix(id, "Neural")
	if gender != "" {
		name += " (" + gender + ")"
	}
	return Voice{ID: id, Name: name, Language: lang, Gender: gender}
}
