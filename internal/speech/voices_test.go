package speech

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestParseVoiceListTable(t *testing.T) {
	out := `Name                               Gender    ContentCategories      VoicePersonalities
---------------------------------  --------  ---------------------  --------------------------------------
en-US-JennyNeural                  Female    General                Friendly, Considerate
zh-CN-YunxiNeural                  Male      Narration, Novel       Lively, Sunshine
`
	voices := ParseVoiceList(out)
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %+v", voices)
	}
	if voices[1] != (Voice{ID: "zh-CN-YunxiNeural", Name: "zh-CN-Yunxi (Male)", Language: "zh-CN", Gender: "Male"}) {
		t.Fatalf("unexpected voice %+v", voices[1])
	}
}

func TestParseVoiceListBlocks(t *testing.T) {
	out := "Name: en-US-GuyNeural\nGender: Male\n\nName: zh-CN-XiaoxiaoNeural\nGender: Female\n"
	voices := ParseVoiceList(out)
	if len(voices) != 2 || voices[0].Gender != "Male" || voices[1].Language != "zh-CN" {
		t.Fatalf("unexpected voices %+v", voices)
	}
}

func TestEdgeTTSListVoicesFailure(t *testing.T) {
	runner := &fakeRunner{errs: []error{errors.New("exit status 1")}}
	tts := NewEdgeTTS("python", NewAudioStore(t.TempDir(), "", nil), runner, 0, nil)
	if _, err := tts.ListVoices(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(FallbackVoices()) != 2 {
		t.Fatalf("expected two fallback voices")
	}
}

type stubLister struct {
	calls  int
	voices []Voice
	err    error
}

func (s *stubLister) ListVoices(context.Context) ([]Voice, error) {
	s.calls++
	return s.voices, s.err
}

type mockVoiceKV struct {
	val    string
	getErr error
	setKey string
	setTTL time.Duration
	setVal interface{}
}

func (m *mockVoiceKV) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	cmd.SetVal(m.val)
	return cmd
}

func (m *mockVoiceKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.setKey = key
	m.setVal = value
	m.setTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func TestCachedVoiceListerMissThenStore(t *testing.T) {
	next := &stubLister{voices: FallbackVoices()}
	kv := &mockVoiceKV{getErr: redis.Nil}
	c := newCachedVoiceLister(next, kv, nil)

	voices, err := c.ListVoices(context.Background())
	if err != nil || len(voices) != 2 {
		t.Fatalf("unexpected result %v %v", voices, err)
	}
	if next.calls != 1 || kv.setKey != "tts:voices" || kv.setTTL != 24*time.Hour {
		t.Fatalf("expected cache write, got key=%q ttl=%v", kv.setKey, kv.setTTL)
	}
}

func TestCachedVoiceListerHit(t *testing.T) {
	payload, _ := json.Marshal([]Voice{{ID: "zh-CN-YunxiNeural"}})
	next := &stubLister{}
	c := newCachedVoiceLister(next, &mockVoiceKV{val: string(payload)}, nil)

	voices, err := c.ListVoices(context.Background())
	if err != nil || len(voices) != 1 || voices[0].ID != "zh-CN-YunxiNeural" {
		t.Fatalf("unexpected cached voices %v %v", voices, err)
	}
	if next.calls != 0 {
		t.Fatalf("cache hit must not query edge-tts")
	}
}

func TestCachedVoiceListerDoesNotCacheFailures(t *testing.T) {
	next := &stubLister{err: errors.New("boom")}
	kv := &mockVoiceKV{getErr: redis.Nil}
	c := newCachedVoiceLister(next, kv, nil)

	if _, err := c.ListVoices(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if kv.setKey != "" {
		t.Fatalf("failures must not be cached")
	}
}
