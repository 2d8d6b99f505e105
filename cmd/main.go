package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"koescroll/internal/app"
	"koescroll/internal/cli/scheme/colours"
	"koescroll/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var (
		cfgFile string
		current atomic.Pointer[app.KoeScroll]
	)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		if ks := current.Load(); ks != nil {
			ks.Cancel()
			ks.Stop()
		}
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye! See you next chapter! 📖"))
		os.Exit(0)
	}()

	run := func(handler func(*app.KoeScroll, *cobra.Command, []string)) func(*cobra.Command, []string) {
		return func(cmd *cobra.Command, args []string) {
			handler(current.Load(), cmd, args)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "koescroll",
		Short: "📖 Read comic pages aloud",
		Long: `
┌─────────────────────────────────────┐
│  📖 Welcome to KoeScroll! 🎭        │
│  Comic pages, read aloud            │
│  A voice for every character 🎤     │
└─────────────────────────────────────┘

KoeScroll puts the text of a comic page in reading order and narrates it,
giving every character a voice they keep from page to page.
		`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(cfgFile); err != nil {
				return err
			}
			settings := config.Load()
			if level, err := logrus.ParseLevel(settings.LogLevel); err == nil {
				logrus.SetLevel(level)
			}
			ks, err := app.New(settings)
			if err != nil {
				return err
			}
			current.Store(ks)
			return nil
		},
		Run: run((*app.KoeScroll).Welcome),
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.koescroll/koescroll.yaml)")

	orderCmd := &cobra.Command{
		Use:   "order <regions.json>",
		Short: "📐 Show the reading order of a page",
		Long:  "Order the detected text regions of a page into panels and lines",
		Args:  cobra.ExactArgs(1),
		Run:   run((*app.KoeScroll).Order),
	}

	narrateCmd := &cobra.Command{
		Use:   "narrate <regions.json>",
		Short: "🎧 Read a page aloud",
		Long:  "Order a page and narrate it line by line with a voice per character",
		Args:  cobra.ExactArgs(1),
		Run:   run((*app.KoeScroll).Narrate),
	}
	narrateCmd.Flags().IntP("from", "f", 0, "Line to start reading from")
	narrateCmd.Flags().Float64P("speed", "s", 0, "Speed multiplier (0.5-2.0)")
	narrateCmd.Flags().String("source", "", "Title being read, recorded with new voice bindings")

	prefetchCmd := &cobra.Command{
		Use:   "prefetch <regions.json>",
		Short: "🔄 Synthesize a page ahead of time",
		Long:  "Fill the narration cache for every line of a page",
		Args:  cobra.ExactArgs(1),
		Run:   run((*app.KoeScroll).Prefetch),
	}
	prefetchCmd.Flags().String("source", "", "Title being read, recorded with new voice bindings")

	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎭 Manage character voices",
		Long:  "List, suggest or override the voices bound to characters",
		Run:   run((*app.KoeScroll).ListVoices),
	}
	voicesListCmd := &cobra.Command{
		Use:   "list",
		Short: "📋 List remembered voices",
		Run:   run((*app.KoeScroll).ListVoices),
	}
	voicesSetCmd := &cobra.Command{
		Use:   "set <character> <voice-id>",
		Short: "📌 Pin a character to a voice",
		Args:  cobra.ExactArgs(2),
		Run:   run((*app.KoeScroll).SetVoice),
	}
	voicesSetCmd.Flags().String("source", "", "Title the binding belongs to")
	voicesSuggestCmd := &cobra.Command{
		Use:   "suggest <character>",
		Short: "🔍 Show the remembered voice for a character",
		Args:  cobra.ExactArgs(1),
		Run:   run((*app.KoeScroll).SuggestVoice),
	}
	voicesAvailableCmd := &cobra.Command{
		Use:   "available",
		Short: "🎤 List the voices of the configured provider",
		Run:   run((*app.KoeScroll).AvailableVoices),
	}
	voicesCmd.AddCommand(voicesListCmd, voicesSetCmd, voicesSuggestCmd, voicesAvailableCmd)

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "💾 Manage cached narration",
		Run:   run((*app.KoeScroll).CacheStatus),
	}
	cacheStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "📊 Show cache status",
		Run:   run((*app.KoeScroll).CacheStatus),
	}
	cacheClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "🧹 Remove all cached narration",
		Run:   run((*app.KoeScroll).ClearCache),
	}
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show settings",
		Long:  "Show the effective voice, speed and reading settings",
		Run:   run((*app.KoeScroll).ShowSettings),
	}
	settingsSetCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "✏️ Change a setting",
		Args:  cobra.ExactArgs(2),
		Run:   run((*app.KoeScroll).SetSetting),
	}
	settingsCmd.AddCommand(settingsSetCmd)

	rootCmd.AddCommand(orderCmd, narrateCmd, prefetchCmd, voicesCmd, cacheCmd, settingsCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}
