package taskview

import (
	"sort"
	"time"

	"aetracker/internal/aecolor"
	"aetracker/internal/model"
)

type AESummary struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	Open    int    `json:"open"`
	Overdue int    `json:"overdue"`
	Done    int    `json:"done"`
}

// Summarize counts open, overdue and done tasks per AE. Every name in aes gets
// a row even with no tasks; AEs only seen on tasks are added too.
func Summarize(tasks []model.Task, aes []string, colors map[string]string, now time.Time) []AESummary {
	byName := map[string]*AESummary{}
	for _, name := range aes {
		byName[name] = &AESummary{Name: name}
	}
	for _, t := range tasks {
		if t.AE == "" {
			continue
		}
		s, ok := byName[t.AE]
		if !ok {
			s = &AESummary{Name: t.AE}
			byName[t.AE] = s
		}
		if t.Done() {
			s.Done++
			continue
		}
		s.Open++
		if IsOverdue(t, now) {
			s.Overdue++
		}
	}

	out := make([]AESummary, 0, len(byName))
	for name, s := range byName {
		var explicit *string
		if c, ok := colors[name]; ok {
			explicit = &c
		}
		s.Color = aecolor.Resolve(name, explicit)
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return model.CompareNames(out[i].Name, out[j].Name) < 0
	})
	return out
}
