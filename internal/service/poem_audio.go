package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/repository"
	"poetry-tutor/internal/speech"
	"poetry-tutor/internal/storage"
)

const (
	poemVoice      = "zh-CN-XiaoxiaoNeural"
	recitationRate = "-40%"
	wordRate       = "-25%"
)

// SynthesizerFactory construye un sintetizador que escribe en dir.
type SynthesizerFactory func(dir string) speech.Synthesizer

// PoemAudioService genera la lectura completa, por verso y por carácter de un poema.
type PoemAudioService struct {
	poems   repository.PoemRepository
	newTTS  SynthesizerFactory
	objects storage.ObjectStore
	tmpRoot string
	logger  *zap.Logger
}

func NewPoemAudioService(poems repository.PoemRepository, newTTS SynthesizerFactory, objects storage.ObjectStore, tmpRoot string, logger *zap.Logger) *PoemAudioService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tmpRoot == "" {
		tmpRoot = os.TempDir()
	}
	return &PoemAudioService{poems: poems, newTTS: newTTS, objects: objects, tmpRoot: tmpRoot, logger: logger}
}

// Exists indica si el poema ya tiene audio generado.
func (s *PoemAudioService) Exists(ctx context.Context, poemID string) (bool, error) {
	poem, err := s.load(ctx, poemID)
	if err != nil {
		return false, err
	}
	return poem.AudioResources != nil, nil
}

// Resources devuelve el audio guardado, o nil si todavía no existe.
func (s *PoemAudioService) Resources(ctx context.Context, poemID string) (*domain.PoemAudioResources, error) {
	poem, err := s.load(ctx, poemID)
	if err != nil {
		return nil, err
	}
	return poem.AudioResources, nil
}

// Generate sintetiza y sube todos los segmentos. Un segmento que agota los
// reintentos queda como placeholder sin abortar el resto.
func (s *PoemAudioService) Generate(ctx context.Context, poemID string) (domain.PoemAudioResources, error) {
	poem, err := s.load(ctx, poemID)
	if err != nil {
		return domain.PoemAudioResources{}, err
	}
	if s.newTTS == nil || s.objects == nil {
		return domain.PoemAudioResources{}, errors.New("poem audio: synthesizer or object store not configured")
	}

	tmpDir, err := os.MkdirTemp(s.tmpRoot, "poem_audio_"+poem.ID+"_")
	if err != nil {
		return domain.PoemAudioResources{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			s.logger.Warn("remove poem audio temp dir failed", zap.String("dir", tmpDir), zap.Error(err))
		}
	}()

	gen := &segmentWriter{svc: s, tts: s.newTTS(tmpDir), poemID: poem.ID}
	res := domain.PoemAudioResources{GeneratedAt: time.Now().UTC()}

	chinese := make([]string, 0, len(poem.Lines))
	for _, l := range poem.Lines {
		chinese = append(chinese, l.Chinese)
	}

	if res.FullReading, err = gen.segment(ctx, FullReadingKey(poem.ID), strings.Join(chinese, "，\n")+"。", recitationRate); err != nil {
		return domain.PoemAudioResources{}, err
	}

	for i, line := range chinese {
		seg, err := gen.segment(ctx, LineReadingKey(poem.ID, i+1), line, recitationRate)
		if err != nil {
			return domain.PoemAudioResources{}, err
		}
		res.Lines = append(res.Lines, domain.LineAudio{LineIndex: i + 1, AudioSegment: seg})
	}

	for _, word := range UniqueHanCharacters(chinese) {
		seg, err := gen.segment(ctx, WordKey(word), word, wordRate)
		if err != nil {
			return domain.PoemAudioResources{}, err
		}
		res.Words = append(res.Words, domain.WordAudio{Word: word, AudioSegment: seg})
	}

	if err := s.poems.SetAudioResources(ctx, poem.ID, res); err != nil {
		return domain.PoemAudioResources{}, fmt.Errorf("save audio resources: %w", err)
	}
	s.logger.Info("poem audio generated",
		zap.String("poem_id", poem.ID),
		zap.Int("lines", len(res.Lines)),
		zap.Int("words", len(res.Words)),
		zap.Int("placeholders", gen.placeholders),
	)
	return res, nil
}

func (s *PoemAudioService) load(ctx context.Context, poemID string) (domain.Poem, error) {
	poemID = strings.TrimSpace(poemID)
	if poemID == "" {
		return domain.Poem{}, invalid("poemId", "required")
	}
	poem, err := s.poems.GetByID(ctx, poemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Poem{}, ErrPoemNotFound
	}
	if err != nil {
		return domain.Poem{}, err
	}
	return poem, nil
}

type segmentWriter struct {
	svc          *PoemAudioService
	tts          speech.Synthesizer
	poemID       string
	placeholders int
}

// segment devuelve error solo ante cancelación o fallas de subida.
func (w *segmentWriter) segment(ctx context.Context, key, text, rate string) (domain.AudioSegment, error) {
	art, err := w.tts.Speak(ctx, speech.SpeakRequest{Text: text, VoiceID: poemVoice, OutputName: key, Rate: rate})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.AudioSegment{}, ctxErr
		}
		w.placeholders++
		w.svc.logger.Warn("poem audio segment failed, using placeholder",
			zap.String("poem_id", w.poemID),
			zap.String("key", key),
			zap.Error(err),
		)
		return domain.AudioSegment{}, nil
	}
	url, err := w.svc.objects.Put(ctx, key, art.LocalPath, speech.ContentTypeWAV)
	if err != nil {
		return domain.AudioSegment{}, fmt.Errorf("upload %s: %w", key, err)
	}
	return domain.AudioSegment{URL: url, Duration: art.DurationSeconds}, nil
}

func FullReadingKey(poemID string) string { return "poem_" + poemID + "_full.wav" }

func LineReadingKey(poemID string, n int) string {
	return "poem_" + poemID + "_line_" + strconv.Itoa(n) + ".wav"
}

// WordKey usa los primeros 8 hex del md5 del carácter.
func WordKey(word string) string {
	sum := md5.Sum([]byte(word))
	return "poem_word_" + hex.EncodeToString(sum[:])[:8] + ".wav"
}

// UniqueHanCharacters devuelve los caracteres chinos en orden de aparición, sin repetidos.
func UniqueHanCharacters(lines []string) []string {
	seen := make(map[rune]struct{})
	var out []string
	for _, line := range lines {
		for _, r := range line {
			if !unicode.Is(unicode.Han, r) {
				continue
			}
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, string(r))
		}
	}
	return out
}
