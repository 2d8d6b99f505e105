// Package reading reconstructs the order in which a person reads the text
// regions of a comic page.
package reading

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"koescroll/internal/domain/page"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPanelGap     = 80.0
	DefaultRowTolerance = 40.0

	// sound effects drawn as short runs of kana or kanji are not dialogue
	maxEffectRunes = 6
)

var punctuationOnly = regexp.MustCompile(`^[!?！？]+$`)

// Engine orders regions into panels and panels into a page script.
//
// PanelGap is the vertical slack allowed when attaching a region to a panel
// and when treating two panels as one visual row. RowTolerance is the
// tighter slack used to treat two regions inside a panel as one row.
type Engine struct {
	PanelGap     float64
	RowTolerance float64
}

// NewEngine returns an engine with the default tolerances.
func NewEngine() *Engine {
	return &Engine{
		PanelGap:     DefaultPanelGap,
		RowTolerance: DefaultRowTolerance,
	}
}

type panel struct {
	members []page.TextRegion
	minY    float64
	maxY    float64
	maxX    float64
}

func newPanel(r page.TextRegion) *panel {
	return &panel{
		members: []page.TextRegion{r},
		minY:    r.Box.YMin(),
		maxY:    r.Box.YMax(),
		maxX:    r.Box.XMax(),
	}
}

func (p *panel) overlaps(r page.TextRegion, gap float64) bool {
	return r.Box.YMin() <= p.maxY+gap && r.Box.YMax() >= p.minY-gap
}

func (p *panel) add(r page.TextRegion) {
	p.members = append(p.members, r)
	p.minY = math.Min(p.minY, r.Box.YMin())
	p.maxY = math.Max(p.maxY, r.Box.YMax())
	p.maxX = math.Max(p.maxX, r.Box.XMax())
}

// Process filters, clusters and numbers regions. It never fails: malformed
// regions are dropped and an empty input yields an empty script.
// ReadingOrder starts at 0, PanelNumber at 1.
func (e *Engine) Process(regions []page.TextRegion) page.Script {
	gap, rowTol := e.tolerances()

	kept := make([]page.TextRegion, 0, len(regions))
	for _, r := range regions {
		if !Narratable(r) {
			continue
		}
		r.Role = roleFor(r.CharacterType)
		kept = append(kept, r)
	}

	dropped := len(regions) - len(kept)
	if len(kept) == 0 {
		logrus.WithField("dropped", dropped).Debug("No narratable regions on page")
		return page.Script{}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i].Box, kept[j].Box
		if a.YMin() != b.YMin() {
			return a.YMin() < b.YMin()
		}
		return a.XMax() > b.XMax()
	})

	// Single greedy pass: a region joins the first panel it overlaps.
	var panels []*panel
	for _, r := range kept {
		placed := false
		for _, p := range panels {
			if p.overlaps(r, gap) {
				p.add(r)
				placed = true
				break
			}
		}
		if !placed {
			panels = append(panels, newPanel(r))
		}
	}

	sort.SliceStable(panels, func(i, j int) bool {
		a, b := panels[i], panels[j]
		if math.Abs(a.minY-b.minY) <= gap {
			return a.maxX > b.maxX
		}
		return a.minY < b.minY
	})

	script := make(page.Script, 0, len(kept))
	order := 0
	for n, p := range panels {
		for _, r := range orderPanel(p.members, rowTol) {
			r.PanelNumber = n + 1
			r.ReadingOrder = order
			order++
			script = append(script, page.ScriptLine{TextRegion: r})
		}
	}

	logrus.WithFields(logrus.Fields{
		"regions": len(script),
		"panels":  len(panels),
		"dropped": dropped,
	}).Debug("Ordered page regions")

	return script
}

func (e *Engine) tolerances() (float64, float64) {
	gap, rowTol := e.PanelGap, e.RowTolerance
	if gap <= 0 {
		gap = DefaultPanelGap
	}
	if rowTol <= 0 {
		rowTol = DefaultRowTolerance
	}
	return gap, rowTol
}

// orderPanel puts narration before dialogue; each group reads top to bottom
// and right to left within a row.
func orderPanel(members []page.TextRegion, rowTol float64) []page.TextRegion {
	var narration, dialogue []page.TextRegion
	for _, r := range members {
		if r.Role == page.RoleNarration {
			narration = append(narration, r)
		} else {
			dialogue = append(dialogue, r)
		}
	}
	sortRows(narration, rowTol)
	sortRows(dialogue, rowTol)
	return append(narration, dialogue...)
}

func sortRows(regions []page.TextRegion, rowTol float64) {
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i].Box, regions[j].Box
		if math.Abs(a.YMin()-b.YMin()) <= rowTol {
			return a.XMax() > b.XMax()
		}
		return a.YMin() < b.YMin()
	})
}

func roleFor(t page.CharacterType) page.Role {
	if t == page.Narrator {
		return page.RoleNarration
	}
	return page.RoleDialogue
}

// Narratable reports whether a region should be read aloud at all.
func Narratable(r page.TextRegion) bool {
	if !r.Box.Valid() {
		return false
	}
	text := strings.TrimSpace(r.Text)
	if text == "" || punctuationOnly.MatchString(text) {
		return false
	}
	return !isSoundEffect(text)
}

func isSoundEffect(text string) bool {
	if utf8.RuneCountInString(text) > maxEffectRunes {
		return false
	}
	for _, c := range text {
		if !unicode.In(c, unicode.Han, unicode.Hiragana, unicode.Katakana) && c != 'ー' {
			return false
		}
	}
	return true
}
