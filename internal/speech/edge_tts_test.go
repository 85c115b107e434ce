package speech

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
)

type runCall struct {
	name string
	args []string
}

// fakeRunner simula edge-tts escribiendo el archivo indicado en --write-media.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []runCall
	audio   []byte
	stdout  string
	stderrs []string
	errs    []error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.calls)
	f.calls = append(f.calls, runCall{name: name, args: args})

	var err error
	if n < len(f.errs) {
		err = f.errs[n]
	}
	var stderr string
	if n < len(f.stderrs) {
		stderr = f.stderrs[n]
	}
	if err != nil {
		return nil, []byte(stderr), err
	}
	if out := argValue(args, "--write-media"); out != "" {
		_ = os.WriteFile(out, f.audio, 0o644)
	}
	return []byte(f.stdout), []byte(stderr), nil
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestEdgeTTSSpeak(t *testing.T) {
	runner := &fakeRunner{audio: make([]byte, 32000)}
	store := NewAudioStore(t.TempDir(), "http://host:3000", nil)
	tts := NewEdgeTTS("python3", store, runner, 0, nil)

	art, err := tts.Speak(context.Background(), SpeakRequest{
		Text:       "**床前**明月光",
		VoiceID:    "en-US-JennyNeural",
		OutputName: "tts-m1.wav",
		Rate:       "-40%",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if art.URL != "http://host:3000/dist/tts-m1.wav" {
		t.Fatalf("unexpected url %q", art.URL)
	}
	if art.DurationSeconds != 2 || art.FileSize != 32000 {
		t.Fatalf("unexpected size/duration %d %v", art.FileSize, art.DurationSeconds)
	}
	if art.Base64Data == "" || art.ContentType != ContentTypeWAV {
		t.Fatalf("expected base64 wav artifact")
	}

	call := runner.calls[0]
	if call.name != "python3" || !hasArg(call.args, "edge_tts") {
		t.Fatalf("unexpected command %+v", call)
	}
	if argValue(call.args, "--text") != "床前明月光。" {
		t.Fatalf("expected prepared text, got %q", argValue(call.args, "--text"))
	}
	if argValue(call.args, "--voice") != "en-US-JennyNeural" || !hasArg(call.args, "--rate=-40%") {
		t.Fatalf("unexpected voice/rate args %v", call.args)
	}
}

func TestEdgeTTSDefaults(t *testing.T) {
	runner := &fakeRunner{audio: []byte("RIFF")}
	tts := NewEdgeTTS("", NewAudioStore(t.TempDir(), "", nil), runner, 0, nil)

	art, err := tts.Speak(context.Background(), SpeakRequest{Text: "你好。"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if art.VoiceID != DefaultVoiceID {
		t.Fatalf("expected default voice, got %q", art.VoiceID)
	}
	if !hasArg(runner.calls[0].args, "--rate="+DefaultRate) {
		t.Fatalf("expected default rate, got %v", runner.calls[0].args)
	}
	if runner.calls[0].name != "python" {
		t.Fatalf("expected default interpreter")
	}
}

func TestEdgeTTSEmptyTextSkipsProcess(t *testing.T) {
	runner := &fakeRunner{}
	tts := NewEdgeTTS("python", NewAudioStore(t.TempDir(), "", nil), runner, 0, nil)
	if _, err := tts.Speak(context.Background(), SpeakRequest{Text: "  "}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("process should not run for empty text")
	}
}

func TestEdgeTTSProcessFailure(t *testing.T) {
	runner := &fakeRunner{
		errs:    []error{errors.New("exit status 1")},
		stderrs: []string{"voice not found"},
	}
	tts := NewEdgeTTS("python", NewAudioStore(t.TempDir(), "", nil), runner, 0, nil)

	_, err := tts.Speak(context.Background(), SpeakRequest{Text: "你好", OutputName: "x.wav"})
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if !strings.Contains(synthErr.Stderr, "voice not found") {
		t.Fatalf("expected stderr in error, got %q", synthErr.Stderr)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("non transient failure should not retry inside the engine")
	}
}

func TestEdgeTTSNoAudioFallbackText(t *testing.T) {
	runner := &fakeRunner{
		audio:   []byte("RIFF"),
		errs:    []error{errors.New("exit status 1")},
		stderrs: []string{"edge_tts.exceptions.NoAudioReceived: No audio was received"},
	}
	tts := NewEdgeTTS("python", NewAudioStore(t.TempDir(), "", nil), runner, 0, nil)

	if _, err := tts.Speak(context.Background(), SpeakRequest{Text: "《》", OutputName: "x.wav"}); err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runner.calls))
	}
	if got := argValue(runner.calls[1].args, "--text"); got != noAudioFallbackText {
		t.Fatalf("expected fallback text, got %q", got)
	}
}

func TestEdgeTTSMissingOutputFile(t *testing.T) {
	runner := &fakeRunner{audio: nil}
	tts := NewEdgeTTS("python", NewAudioStore(t.TempDir(), "", nil), runner, 0, nil)
	_, err := tts.Speak(context.Background(), SpeakRequest{Text: "你好", OutputName: "x.wav"})
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError for empty output, got %v", err)
	}
}
