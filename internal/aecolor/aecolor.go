// Package aecolor assigns display colors to account executives.
//
// A stored color always wins. Without one, a color is derived from the name so
// the same AE looks the same in every session without server state. Reconcile
// is the server-side pass that hands out unique palette colors.
package aecolor

import (
	"sort"
	"strings"
	"time"
	"unicode/utf16"
)

// Palette is the muted color set. It must hold exactly 10 unique entries.
var Palette = [10]string{
	"#CBD5E1",
	"#BFDBFE",
	"#A7F3D0",
	"#FED7AA",
	"#E9D5FF",
	"#FBCFE8",
	"#C7D2FE",
	"#BBF7D0",
	"#E2E8F0",
	"#DDD6FE",
}

// Deterministic maps a name onto the palette with a 31-multiplier rolling hash
// over UTF-16 code units of the trimmed, lowercased name.
func Deterministic(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	var h uint32
	for _, u := range utf16.Encode([]rune(s)) {
		h = h*31 + uint32(u)
	}
	return Palette[h%uint32(len(Palette))]
}

// Resolve returns explicit verbatim when it is non-blank, else the
// deterministic color for name.
func Resolve(name string, explicit *string) string {
	if explicit != nil && strings.TrimSpace(*explicit) != "" {
		return *explicit
	}
	return Deterministic(name)
}

type Entry struct {
	ID        string
	Name      string
	Color     *string
	CreatedAt *time.Time
}

type Change struct {
	ID   string  `json:"id"`
	From *string `json:"from"`
	To   string  `json:"to"`
}

// Result is a partial-success report: Unresolved holds the ids that still
// share a color (or have none) because the palette ran out.
type Result struct {
	Changes    []Change `json:"changes"`
	Unresolved []string `json:"unresolved,omitempty"`
}

func (r Result) Changed() int { return len(r.Changes) }

// Reconcile gives every AE whose color is blank or already taken by an earlier
// AE an unused palette color. Precedence is createdAt ascending (missing
// timestamps last), then name.
func Reconcile(entries []Entry) Result {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].CreatedAt, ordered[j].CreatedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return ordered[i].Name < ordered[j].Name
	})

	used := map[string]bool{}
	var reassign []Entry
	for _, e := range ordered {
		c := colorOf(e)
		if c == "" || used[c] {
			reassign = append(reassign, e)
			continue
		}
		used[c] = true
	}

	var available []string
	for _, c := range Palette {
		if !used[c] {
			available = append(available, c)
		}
	}

	res := Result{Changes: []Change{}}
	for i, e := range reassign {
		if len(available) == 0 {
			for _, rest := range reassign[i:] {
				res.Unresolved = append(res.Unresolved, rest.ID)
			}
			break
		}
		next := available[0]
		available = available[1:]
		res.Changes = append(res.Changes, Change{ID: e.ID, From: e.Color, To: next})
		used[next] = true
	}
	return res
}

func colorOf(e Entry) string {
	if e.Color == nil {
		return ""
	}
	return strings.TrimSpace(*e.Color)
}
