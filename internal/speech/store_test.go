package speech

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAudioStorePathsAndURL(t *testing.T) {
	s := NewAudioStore(t.TempDir(), "http://10.0.0.5:3000/", nil)
	if got := s.URL("tts-1.wav"); got != "http://10.0.0.5:3000/dist/tts-1.wav" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := s.Path("../../etc/passwd"); filepath.Dir(got) != s.Dir() {
		t.Fatalf("path escaped store dir: %q", got)
	}
	if TTSFileName("m1") != "tts-m1.wav" {
		t.Fatalf("unexpected tts file name")
	}
}

func TestAudioStoreFileOps(t *testing.T) {
	s := NewAudioStore(t.TempDir(), "", nil)
	path := s.Path("a.wav")
	if s.FileSize(path) != 0 || s.Exists(path) {
		t.Fatalf("missing file should report size 0")
	}
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if s.FileSize(path) != 4 {
		t.Fatalf("unexpected size %d", s.FileSize(path))
	}
	data, err := s.ReadBase64(path)
	if err != nil || data != base64.StdEncoding.EncodeToString([]byte("RIFF")) {
		t.Fatalf("unexpected base64 %q err=%v", data, err)
	}

	s.Delete(path)
	if s.Exists(path) {
		t.Fatalf("expected file deleted")
	}
	// borrar dos veces no rompe
	s.Delete(path)
}

func TestAudioStoreDeleteAfterSchedules(t *testing.T) {
	s := NewAudioStore(t.TempDir(), "", nil)
	path := s.Path("b.wav")
	_ = os.WriteFile(path, []byte("x"), 0o644)

	var gotDelay time.Duration
	var pending func()
	s.schedule = func(d time.Duration, f func()) {
		gotDelay = d
		pending = f
	}
	s.DeleteAfter(path, 5*time.Second)
	if gotDelay != 5*time.Second || pending == nil {
		t.Fatalf("expected scheduled delete, got delay %v", gotDelay)
	}
	if !s.Exists(path) {
		t.Fatalf("file must survive until the timer fires")
	}
	pending()
	if s.Exists(path) {
		t.Fatalf("expected file deleted after timer")
	}
}
