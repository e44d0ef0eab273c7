package model

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CompareNames orders display names the way a browser's localeCompare does for
// English: case and accents only break ties.
func CompareNames(a, b string) int {
	if r := collate.New(language.English, collate.Loose).CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// SortNames sorts names in place and returns them.
func SortNames(names []string) []string {
	sort.SliceStable(names, func(i, j int) bool {
		return CompareNames(names[i], names[j]) < 0
	})
	return names
}

// InsertName returns a new sorted slice containing names plus name. The input
// slice is not modified. Names already present under the same NameKey are
// returned unchanged.
func InsertName(names []string, name string) []string {
	if ContainsName(names, name) {
		return names
	}
	out := make([]string, 0, len(names)+1)
	out = append(out, names...)
	out = append(out, name)
	return SortNames(out)
}

// ContainsName reports whether any entry of names matches name by NameKey.
func ContainsName(names []string, name string) bool {
	key := NameKey(name)
	for _, n := range names {
		if NameKey(n) == key {
			return true
		}
	}
	return false
}

// RemoveName returns a copy of names without any entry whose NameKey matches.
func RemoveName(names []string, name string) []string {
	key := NameKey(name)
	out := make([]string, 0, len(names))
	for _, n := range names {
		if NameKey(n) == key {
			continue
		}
		out = append(out, n)
	}
	return out
}
