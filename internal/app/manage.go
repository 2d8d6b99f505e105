package app

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"koescroll/internal/cli/scheme/colours"
	"koescroll/internal/config"
	"koescroll/internal/tts"
	"koescroll/internal/voice"

	"github.com/spf13/cobra"
)

// ListVoices prints every remembered character binding.
func (ks *KoeScroll) ListVoices(cmd *cobra.Command, args []string) {
	bindings, err := ks.memory.ListAll(ks.ctx)
	if err != nil {
		colours.Error.Printf("❌ Failed to read voice memory: %v\n", err)
		return
	}

	fmt.Println()
	colours.Title.Println("🎭 Remembered Voices 🎭")
	fmt.Println()
	if len(bindings) == 0 {
		colours.Warning.Println("🔍 No characters have a voice yet.")
		return
	}

	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].CharacterKey < bindings[j].CharacterKey
	})
	for _, b := range bindings {
		colours.Speaker.Printf("  %-20s", b.CharacterKey)
		fmt.Printf(" %s", b.VoiceID)
		colours.Muted.Printf("  (%s, %s, %s)\n", b.PersonalityTag, b.SourceLabel,
			time.UnixMilli(b.Timestamp).Format("2006-01-02 15:04"))
	}
	fmt.Println()
	colours.Success.Printf("✨ %d characters\n", len(bindings))
}

// SetVoice pins a character to a voice from now on.
func (ks *KoeScroll) SetVoice(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")
	session := voice.NewSession(ks.memory, ks.Settings.Voices, source)
	if err := session.Override(ks.ctx, args[0], args[1]); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	colours.Success.Printf("✅ %s will be read by %s\n", args[0], args[1])
}

// SuggestVoice shows which voice a character would get.
func (ks *KoeScroll) SuggestVoice(cmd *cobra.Command, args []string) {
	id, ok, err := ks.memory.SuggestVoice(ks.ctx, args[0])
	if err != nil {
		colours.Error.Printf("❌ Failed to read voice memory: %v\n", err)
		return
	}
	if !ok {
		colours.Warning.Printf("🔍 No remembered voice for %q; a default will be assigned on first use.\n", args[0])
		return
	}
	colours.Success.Printf("🎤 %s → %s\n", args[0], id)
}

// AvailableVoices lists the voices of the configured provider.
func (ks *KoeScroll) AvailableVoices(cmd *cobra.Command, args []string) {
	s, err := tts.NewSynthesizer(ks.ctx, ks.Settings.TTS)
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	if g, ok := s.(*tts.Guarded); ok {
		s = g.Synthesizer
	}
	lister, ok := s.(tts.VoiceLister)
	if !ok {
		colours.Warning.Printf("⚠️  %s cannot list its voices\n", s.Name())
		return
	}
	voices, err := lister.Voices(ks.ctx)
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	colours.Title.Printf("🎤 %s voices\n", s.Name())
	for _, v := range voices {
		fmt.Printf("  • %s\n", v)
	}
}

// CacheStatus summarizes the narration cache.
func (ks *KoeScroll) CacheStatus(cmd *cobra.Command, args []string) {
	colours.Title.Println("📊 Narration Cache Status")

	stats, err := ks.cache.Stats(ks.ctx)
	if err != nil {
		colours.Error.Printf("❌ Failed to get cache info: %v\n", err)
		return
	}
	colours.Info.Printf("📁 Location: %s\n", ks.Settings.StorageDir)
	colours.Info.Printf("🎵 Clips: %d\n", stats.Entries)
	colours.Info.Printf("📏 Size: %d bytes\n", stats.Bytes)
	if stats.Entries == 0 {
		colours.Info.Println("💡 Run 'koescroll prefetch <regions.json>' to fill the cache")
	}
}

// ClearCache removes all cached narration. Voice bindings are kept.
func (ks *KoeScroll) ClearCache(cmd *cobra.Command, args []string) {
	removed, err := ks.cache.Clear(ks.ctx)
	if err != nil {
		colours.Error.Printf("❌ Failed to clear cache: %v\n", err)
		return
	}
	colours.Success.Printf("✅ Removed %d cached clips\n", removed)
}

// ShowSettings prints the effective settings.
func (ks *KoeScroll) ShowSettings(cmd *cobra.Command, args []string) {
	s := ks.Settings
	fmt.Println()
	colours.Title.Println("⚙️ KoeScroll Settings ⚙️")
	fmt.Println()

	colours.Prompt.Println("🎤 Voice Settings:")
	fmt.Printf("  • Provider: %s (fallback: %s)\n", s.TTS.Provider, s.TTS.Fallback)
	fmt.Printf("  • Available: %v\n", tts.AvailableProviders(s.TTS))
	fmt.Printf("  • Speed: %.2fx\n", s.Speed)
	fmt.Printf("  • Pause between lines: %v\n", s.LinePause)
	fmt.Printf("  • Default voice: %s\n", s.Voices.Fallback)
	if s.DictionaryPath != "" {
		fmt.Printf("  • Pronunciations: %s\n", s.DictionaryPath)
	}
	fmt.Println()

	colours.Prompt.Println("📐 Reading Order:")
	fmt.Printf("  • Panel gap: %.0f\n", s.Reading.PanelGap)
	fmt.Printf("  • Row tolerance: %.0f\n", s.Reading.RowTolerance)
	fmt.Println()

	colours.Info.Printf("📁 Storage: %s\n", s.StorageDir)
}

// SetSetting writes one value to the config file.
func (ks *KoeScroll) SetSetting(cmd *cobra.Command, args []string) {
	var value interface{} = args[1]
	if f, err := strconv.ParseFloat(args[1], 64); err == nil {
		value = f
	} else if b, err := strconv.ParseBool(args[1]); err == nil {
		value = b
	}
	path, err := config.Set(args[0], value)
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	colours.Success.Printf("✅ %s = %v (saved to %s)\n", args[0], value, path)
}
