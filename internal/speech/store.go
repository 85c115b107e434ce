package speech

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const PublicAudioPrefix = "/dist/"

// AudioStore administra los archivos temporales de audio. Cada archivo lo
// escribe una sola tarea y lo borra una sola limpieza programada.
type AudioStore struct {
	dir      string
	baseURL  string
	logger   *zap.Logger
	schedule func(d time.Duration, f func())
}

func NewAudioStore(dir, baseURL string, logger *zap.Logger) *AudioStore {
	if dir == "" {
		dir = "dist"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AudioStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// TTSFileName es el nombre del audio de la respuesta de un mensaje.
func TTSFileName(messageID string) string {
	return "tts-" + messageID + ".wav"
}

func (s *AudioStore) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

func (s *AudioStore) Dir() string { return s.dir }

// Path nunca sale de dir: se usa solo el nombre base.
func (s *AudioStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *AudioStore) URL(name string) string {
	return s.baseURL + PublicAudioPrefix + filepath.Base(name)
}

// FileSize devuelve 0 si el archivo no existe o no se puede leer.
func (s *AudioStore) FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

func (s *AudioStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *AudioStore) ReadBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Open abre el archivo para streaming y devuelve su tamaño.
func (s *AudioStore) Open(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Delete es best-effort: los errores solo se loguean.
func (s *AudioStore) Delete(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("delete audio file failed", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Debug("audio file deleted", zap.String("path", path))
}

func (s *AudioStore) DeleteAfter(path string, delay time.Duration) {
	if path == "" {
		return
	}
	s.schedule(delay, func() { s.Delete(path) })
}
