// Package emoji protects emoji from translation-engine mangling and
// restores them afterward.
//
// Engines routinely normalize, reorder, or drop characters they do not
// model. Each emoji unit — a single pictographic code point, a ZWJ
// composite (family groupings), a regional-indicator flag pair, or a
// modified/keycap form — is replaced by a placeholder before translation
// and substituted back afterward. Detection works on grapheme clusters so
// a composite sequence is never split.
//
// Placeholders are decimal IDs wrapped in Unicode private-use delimiters.
// Engines have no casing, reordering, or whitespace rules for private-use
// code points, and digits survive case folding, so the namespace cannot
// collide with anything an engine introduces.
//
// Restoration is best-effort by contract: a placeholder the engine dropped
// means the emoji is simply absent from the output, reported via the
// missing count rather than an error.
package emoji

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rivo/uniseg"
)

// Placeholder delimiters, from the Unicode private use area.
const (
	tokenOpen  = '\uE000'
	tokenClose = '\uE001'
)

// Map records placeholder ID -> original emoji unit for one field's text.
// Created by Protect, consumed exactly once by Restore.
type Map struct {
	units map[int]string
	order []int
}

// Len returns the number of protected units.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.units)
}

// emojiRanges lists the pictographic code point ranges treated as emoji
// bases. Joiners, variation selectors, and skin tone modifiers ride along
// inside the grapheme cluster and need no entries of their own.
var emojiRanges = [][2]rune{
	{0x1F1E6, 0x1F1FF}, // regional indicators (flag pairs)
	{0x1F300, 0x1F5FF}, // misc symbols and pictographs
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F680, 0x1F6FF}, // transport and map
	{0x1F700, 0x1F77F}, // alchemical
	{0x1F780, 0x1F8FF}, // geometric extended, arrows-C
	{0x1F900, 0x1F9FF}, // supplemental symbols
	{0x1FA00, 0x1FAFF}, // symbols extended-A
	{0x2600, 0x26FF},   // misc symbols
	{0x2700, 0x27BF},   // dingbats
	{0x2934, 0x2935},   // arrow emoji
	{0x3030, 0x3030},   // wavy dash
	{0x303D, 0x303D},   // part alternation mark
	{0x3297, 0x3297},   // circled congratulations
	{0x3299, 0x3299},   // circled secret
	{0x1F004, 0x1F004}, // mahjong red dragon
	{0x1F0CF, 0x1F0CF}, // playing card joker
	{0x1F170, 0x1F251}, // enclosed alphanumerics/ideographs
	{0x20E3, 0x20E3},   // combining enclosing keycap
}

// isEmojiRune reports whether r is an emoji base code point.
func isEmojiRune(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

// isEmojiCluster reports whether a grapheme cluster contains an emoji base.
// A cluster qualifies as a whole: ZWJ composites and flag sequences are
// single clusters and are protected atomically, never partially.
func isEmojiCluster(cluster string) bool {
	for _, r := range cluster {
		if isEmojiRune(r) {
			return true
		}
	}
	return false
}

// Protect replaces every emoji unit in text with a placeholder and returns
// the guarded text plus the map needed to undo it. Text without emoji is
// returned unchanged with an empty map.
func Protect(text string) (string, *Map) {
	m := &Map{units: make(map[int]string)}

	var b strings.Builder
	state := -1
	rest := text
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.StepString(rest, state)

		if isEmojiCluster(cluster) {
			id := len(m.order)
			m.units[id] = cluster
			m.order = append(m.order, id)
			b.WriteRune(tokenOpen)
			b.WriteString(strconv.Itoa(id))
			b.WriteRune(tokenClose)
		} else {
			b.WriteString(cluster)
		}
	}

	if len(m.order) == 0 {
		return text, m
	}
	return b.String(), m
}

// placeholderRe matches a placeholder, tolerating whitespace the engine may
// have inserted around or between the digits.
var placeholderRe = regexp.MustCompile("\uE000[\\s0-9]*\uE001")

// Restore substitutes original emoji units back into guarded text.
//
// It tolerates engine abuse: duplicated placeholders are each expanded,
// reordered placeholders restore by identity, and placeholders with
// mangled IDs are removed. The missing count reports units from the map
// that no longer appear in the text at all.
func Restore(guarded string, m *Map) (text string, missing int) {
	if m.Len() == 0 {
		return guarded, 0
	}

	seen := make(map[int]bool, len(m.units))
	out := placeholderRe.ReplaceAllStringFunc(guarded, func(tok string) string {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, tok)
		id, err := strconv.Atoi(digits)
		if err != nil {
			return ""
		}
		unit, ok := m.units[id]
		if !ok {
			return ""
		}
		seen[id] = true
		return unit
	})

	// Stray unmatched delimiters left behind by the engine.
	out = strings.Map(func(r rune) rune {
		if r == tokenOpen || r == tokenClose {
			return -1
		}
		return r
	}, out)

	for _, id := range m.order {
		if !seen[id] {
			missing++
		}
	}
	return out, missing
}
