package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"poetry-tutor/internal/config"
)

func TestObjectURL(t *testing.T) {
	got := ObjectURL("http://minio:9000/", "poem-audio", "poems/1/poem 1_full.wav")
	want := "http://minio:9000/poem-audio/poems/1/poem%201_full.wav"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestNewMinIOStoreDisabled(t *testing.T) {
	store, err := NewMinIOStore(context.Background(), &config.Config{}, nil)
	if err != nil || store != nil {
		t.Fatalf("expected nil store without endpoint, got %v %v", store, err)
	}
	if _, err := store.Put(context.Background(), "k", "p", "audio/wav"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLocalStorePut(t *testing.T) {
	src := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(src, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	outDir := filepath.Join(t.TempDir(), "poems")
	store := NewLocalStore(outDir, "http://host:3000/dist/poems/")

	url, err := store.Put(context.Background(), "poem_1_full.wav", src, "audio/wav")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "http://host:3000/dist/poems/poem_1_full.wav" {
		t.Fatalf("unexpected url %q", url)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "poem_1_full.wav"))
	if err != nil || string(data) != "RIFF" {
		t.Fatalf("unexpected copy %q %v", data, err)
	}
}
