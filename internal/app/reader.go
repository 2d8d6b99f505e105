package app

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"koescroll/internal/cli/scheme/colours"
	"koescroll/internal/domain/page"
	"koescroll/internal/narration"
	"koescroll/internal/narration/audio"
	"koescroll/internal/pipeline"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func (ks *KoeScroll) Welcome(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("🌟 Welcome to KoeScroll! 🌟")
	fmt.Println()
	colours.Info.Println("📚 Available commands:")
	fmt.Println("  • koescroll order <regions.json>    - Show the reading order of a page")
	fmt.Println("  • koescroll narrate <regions.json>  - Read a page aloud")
	fmt.Println("  • koescroll prefetch <regions.json> - Synthesize a page ahead of time")
	fmt.Println("  • koescroll voices                  - Inspect or change character voices")
	fmt.Println("  • koescroll cache                   - Inspect or clear cached narration")
	fmt.Println("  • koescroll settings                - Show the current settings")
	fmt.Println()
	colours.Prompt.Println("✨ Ready to turn the page? ✨")
}

// Order prints the script for a page without narrating it.
func (ks *KoeScroll) Order(cmd *cobra.Command, args []string) {
	regions, err := pipeline.LoadRegions(args[0])
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}

	script := ks.pipeline(nil).Script(regions)
	fmt.Println()
	colours.Title.Printf("📖 Reading order (%d lines, %d panels)\n", len(script), script.Panels())
	fmt.Println()
	if len(script) == 0 {
		colours.Warning.Println("🔍 Nothing readable on this page.")
		return
	}
	printScript(script)
}

func printScript(script page.Script) {
	panel := 0
	for _, line := range script {
		if line.PanelNumber != panel {
			panel = line.PanelNumber
			colours.Panel.Printf("Panel %d\n", panel)
		}
		printLine(line)
	}
}

func printLine(line page.ScriptLine) {
	fmt.Printf("  %3d. ", line.ReadingOrder)
	colours.Speaker.Printf("%-12s", speakerLabel(line))
	fmt.Printf(" %s\n", line.Text)
}

func speakerLabel(line page.ScriptLine) string {
	if line.Character != "" {
		return line.Character
	}
	if line.CharacterType != "" {
		return string(line.CharacterType)
	}
	return string(line.Role)
}

// Narrate reads a page aloud with interactive pause and stop controls.
func (ks *KoeScroll) Narrate(cmd *cobra.Command, args []string) {
	from, _ := cmd.Flags().GetInt("from")
	speed, _ := cmd.Flags().GetFloat64("speed")
	source, _ := cmd.Flags().GetString("source")
	if speed <= 0 {
		speed = ks.Settings.Speed
	}

	regions, err := pipeline.LoadRegions(args[0])
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}

	e, err := ks.buildNarrator(source, audio.NewSpeaker())
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	p := ks.pipeline(e)

	var current atomic.Int64
	current.Store(int64(from))
	opts := narration.PlaybackOptions{
		Speed:      speed,
		Dictionary: ks.dictionary(),
		StartIndex: from,
		OnLineStart: func(i int, line page.ScriptLine) {
			current.Store(int64(i))
			printLine(line)
		},
	}

	ctx, cancel := context.WithCancel(ks.ctx)
	defer cancel()

	if ks.Settings.Prefetch {
		go func() {
			if _, err := p.Prefetch(ctx, regions, opts); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Warn("Prefetch stopped")
			}
		}()
	}

	fmt.Println()
	colours.Success.Println("🎵 Starting narration... 🎵")
	fmt.Println("💡 Press Ctrl+C to stop anytime")
	fmt.Println()

	done := make(chan error, 1)
	go func() {
		_, err := p.Narrate(ctx, regions, opts)
		done <- err
	}()

	if stopped := ks.waitForUserInput(e, done); stopped {
		colours.Info.Printf("💡 Resume with: koescroll narrate %s --from %d\n", args[0], current.Load())
	}
}

// waitForUserInput handles pause and stop keys until narration ends. It
// reports whether the user stopped early.
func (ks *KoeScroll) waitForUserInput(e *narration.Engine, done <-chan error) bool {
	lines := make(chan string)
	go func() {
		reader := bufio.NewReader(ks.stdin)
		for {
			input, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimSpace(strings.ToLower(input))
		}
	}()

	fmt.Print("\n⏸️  Press 'p' to pause/resume, 's' to stop\n")
	for {
		select {
		case err := <-done:
			if err != nil {
				colours.Error.Printf("❌ Narration error: %v\n", err)
				return false
			}
			colours.Success.Println("✅ Page finished! 🌟")
			return false
		case <-ks.ctx.Done():
			return true
		case input := <-lines:
			switch input {
			case "p", "pause":
				if e.TogglePause() {
					colours.Success.Println("▶️  Resumed")
				} else {
					colours.Warning.Println("⏸️  Paused")
				}
			case "s", "stop":
				e.Stop()
				<-done
				colours.Warning.Println("⏹️  Stopped")
				return true
			case "":
				continue
			default:
				colours.Info.Println("ℹ️  Use 'p' for pause/resume, 's' to stop")
			}
		}
	}
}

// Prefetch synthesizes every line of a page into the cache.
func (ks *KoeScroll) Prefetch(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")

	regions, err := pipeline.LoadRegions(args[0])
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	e, err := ks.buildNarrator(source, audio.NewSpeaker())
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}

	colours.Info.Println("🔄 Synthesizing page...")
	report, err := ks.pipeline(e).Prefetch(ks.ctx, regions, narration.PlaybackOptions{
		Speed:      ks.Settings.Speed,
		Dictionary: ks.dictionary(),
	})
	if err != nil {
		colours.Error.Printf("❌ Prefetch interrupted: %v\n", err)
		return
	}
	colours.Success.Printf("✨ %d synthesized, %d already cached", report.Synthesized, report.Cached)
	if report.Failed > 0 {
		colours.Warning.Printf(", %d failed", report.Failed)
	}
	fmt.Println()
}
