package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// noAudioFallbackText se usa cuando edge-tts no devuelve audio para el texto original.
const noAudioFallbackText = "这是一首古诗的朗诵。"

// CommandRunner ejecuta un proceso externo y devuelve su salida.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// EdgeTTS sintetiza voz con `python -m edge_tts`.
type EdgeTTS struct {
	python  string
	store   *AudioStore
	runner  CommandRunner
	timeout time.Duration
	logger  *zap.Logger
}

func NewEdgeTTS(python string, store *AudioStore, runner CommandRunner, timeout time.Duration, logger *zap.Logger) *EdgeTTS {
	if python == "" {
		python = "python"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeTTS{
		python:  python,
		store:   store,
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}
}

func (e *EdgeTTS) Speak(ctx context.Context, req SpeakRequest) (AudioArtifact, error) {
	text, err := PrepareText(req.Text)
	if err != nil {
		return AudioArtifact{}, err
	}
	voice := strings.TrimSpace(req.VoiceID)
	if voice == "" {
		voice = DefaultVoiceID
	}
	rate := strings.TrimSpace(req.Rate)
	if rate == "" {
		rate = DefaultRate
	}
	name := strings.TrimSpace(req.OutputName)
	if name == "" {
		name = "tts-" + strconv.FormatInt(time.Now().UnixNano(), 10) + ".wav"
	}
	if err := e.store.EnsureDir(); err != nil {
		return AudioArtifact{}, &SynthesisError{Err: fmt.Errorf("ensure audio dir: %w", err)}
	}
	path := e.store.Path(name)

	stderr, err := e.run(ctx, text, voice, rate, path)
	if err != nil && strings.Contains(stderr, "NoAudioReceived") {
		e.logger.Warn("tts returned no audio, retrying with fallback text", zap.String("voice", voice))
		stderr, err = e.run(ctx, noAudioFallbackText, voice, rate, path)
	}
	if err != nil {
		e.store.Delete(path)
		return AudioArtifact{}, &SynthesisError{Stderr: stderr, Err: err}
	}

	size := e.store.FileSize(path)
	if size == 0 {
		e.store.Delete(path)
		return AudioArtifact{}, &SynthesisError{Stderr: stderr, Err: errors.New("no audio file produced")}
	}
	data, err := e.store.ReadBase64(path)
	if err != nil {
		return AudioArtifact{}, &SynthesisError{Err: fmt.Errorf("read audio file: %w", err)}
	}

	return AudioArtifact{
		URL:             e.store.URL(name),
		LocalPath:       path,
		VoiceID:         voice,
		ContentType:     ContentTypeWAV,
		DurationSeconds: float64(size) / bytesPerSecond,
		FileSize:        size,
		Base64Data:      data,
	}, nil
}

func (e *EdgeTTS) run(ctx context.Context, text, voice, rate, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	_, stderr, err := e.runner.Run(ctx, e.python,
		"-m", "edge_tts",
		"--text", text,
		"--voice", voice,
		"--rate="+rate,
		"--write-media", path,
	)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("tts process: %w", ctx.Err())
	}
	return string(stderr), err
}
