package narration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"koescroll/internal/storage"
)

func TestDetectSceneEmotion(t *testing.T) {
	tests := []struct {
		text string
		want Delivery
	}{
		{"RUN!!", DeliveryAction},
		{"Watch out, behind you", DeliveryAction},
		{"Do it now!", DeliveryAction},
		{"Attack... now", DeliveryAction},
		{"Why?? Why did you leave", DeliveryEmotional},
		{"No! Not him", DeliveryEmotional},
		{"I love this town", DeliveryEmotional},
		{"No! Please, run!", DeliveryAction},
		{"... and then a whisper", DeliveryWhisper},
		{"Shhh, they can hear us", DeliveryWhisper},
		{"She whispered his name", DeliveryWhisper},
		{"Stay quiet…", DeliveryWhisper},
		{"Hello there.", DeliveryNormal},
		{"Running late again", DeliveryNormal},
		{"", DeliveryNormal},
	}
	for _, tt := range tests {
		if got := DetectSceneEmotion(tt.text); got != tt.want {
			t.Errorf("DetectSceneEmotion(%q) = %v, want %v", tt.text, got.Label, tt.want.Label)
		}
	}
}

func TestDeliveryValues(t *testing.T) {
	if d := DetectSceneEmotion("RUN!!"); d.Speed != 1.2 || d.Stability != 0.3 || d.Style != 0.7 {
		t.Errorf("action delivery = %+v", d)
	}
	if d := DetectSceneEmotion("... whisper"); d.Speed != 0.8 || d.Stability != 0.8 || d.Style != 0.1 {
		t.Errorf("whisper delivery = %+v", d)
	}
}

func TestDictionaryApply(t *testing.T) {
	d := Dictionary{
		{Original: "Goku", Phonetic: "Go-koo"},
		{Original: "Go-koo", Phonetic: "Gokoo"},
		{Original: "Kamehameha!", Phonetic: "Ka-meh-ha-meh-ha!"},
		{Original: "", Phonetic: "ignored"},
	}

	tests := []struct {
		in   string
		want string
	}{
		{"Goku, wait!", "Gokoo, wait!"},
		{"GOKU", "Gokoo"},
		{"Gokuu is someone else", "Gokuu is someone else"},
		{"Kamehameha!", "Ka-meh-ha-meh-ha!"},
		{"nothing to change", "nothing to change"},
	}
	for _, tt := range tests {
		if got := d.Apply(tt.in); got != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	var empty Dictionary
	if got := empty.Apply("Goku"); got != "Goku" {
		t.Errorf("nil dictionary changed text to %q", got)
	}
}

func TestLoadDictionary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dictionary.yaml")
	content := "pronunciations:\n  - original: Luffy\n    phonetic: Loo-fee\n  - original: Zoro\n    phonetic: Zo-ro\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadDictionary(path)
	if err != nil {
		t.Fatalf("LoadDictionary() error = %v", err)
	}
	if len(d) != 2 || d[0].Original != "Luffy" || d[1].Phonetic != "Zo-ro" {
		t.Fatalf("LoadDictionary() = %+v", d)
	}
	if got := d.Apply("Luffy and Zoro"); got != "Loo-fee and Zo-ro" {
		t.Errorf("Apply() = %q", got)
	}

	if _, err := LoadDictionary(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadDictionary() on missing file: want error")
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("Hello  world", "v1", 0.6, 0.3)
	if a != CacheKey(" Hello world ", "v1", 0.6, 0.3) {
		t.Error("whitespace changed the key")
	}
	if !strings.HasPrefix(a, cachePrefix) {
		t.Errorf("key %q lacks prefix", a)
	}
	others := []string{
		CacheKey("Hello world!", "v1", 0.6, 0.3),
		CacheKey("Hello world", "v2", 0.6, 0.3),
		CacheKey("Hello world", "v1", 0.4, 0.3),
		CacheKey("Hello world", "v1", 0.6, 0.9),
	}
	for _, o := range others {
		if o == a {
			t.Errorf("distinct inputs share key %q", a)
		}
	}
}

func TestCacheClearAndStats(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	c := NewCache(store)

	if _, ok := c.Get(ctx, c.Key("x", "v", 0.6, 0.3)); ok {
		t.Fatal("Get() on empty cache reported a hit")
	}

	if err := c.Put(ctx, c.Key("one", "v", 0.6, 0.3), []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, c.Key("two", "v", 0.6, 0.3), []byte("defgh")); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "voice_memory", []byte("[]")); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 || stats.Bytes != 8 {
		t.Errorf("Stats() = %+v, want 2 entries, 8 bytes", stats)
	}

	data, ok := c.Get(ctx, c.Key("one", "v", 0.6, 0.3))
	if !ok || string(data) != "abc" {
		t.Errorf("Get() = %q, %v", data, ok)
	}

	removed, err := c.Clear(ctx)
	if err != nil || removed != 2 {
		t.Fatalf("Clear() = %d, %v", removed, err)
	}
	if _, ok, _ := store.Get(ctx, "voice_memory"); !ok {
		t.Error("Clear() removed data outside the cache")
	}
	if stats, _ := c.Stats(ctx); stats.Entries != 0 {
		t.Errorf("Stats() after Clear = %+v", stats)
	}
}
