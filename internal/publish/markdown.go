package publish

import (
	"bytes"
	"strings"
	"time"

	"aetracker/internal/model"
	"aetracker/internal/taskview"
)

type RenderOptions struct {
	IncludeDone bool
	// Now decides which due dates count as overdue.
	Now time.Time
}

func RenderTaskMarkdown(t model.Task) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + strings.TrimSpace(t.Title))
	writeLn("")
	writeLn("## Meta")
	writeLn("")
	writeLn("- ID: " + t.ID)
	writeLn("- AE: " + t.AE)
	if !model.IsMissingAccount(t.Account) {
		writeLn("- Account: " + strings.TrimSpace(t.Account))
	}
	writeLn("- Status: " + t.Status.Label())
	if t.DueDate != "" {
		writeLn("- Due: " + t.DueDate)
	}
	if !t.CreatedAt.IsZero() {
		writeLn("- Created: " + t.CreatedAt.UTC().Format(time.RFC3339))
	}
	if t.CompletedAt != nil {
		writeLn("- Completed: " + t.CompletedAt.UTC().Format(time.RFC3339))
	}

	if d := strings.TrimSpace(t.Description); d != "" {
		writeLn("")
		writeLn("## Description")
		writeLn("")
		writeLn(d)
	}
	return buf.String()
}

// RenderIndexMarkdown lists tasks grouped by AE, in aes order. AEs without
// tasks are skipped; tasks whose AE is not in aes go last.
func RenderIndexMarkdown(tasks []model.Task, aes []string, opt RenderOptions) string {
	byAE := map[string][]model.Task{}
	for _, t := range tasks {
		if t.Done() && !opt.IncludeDone {
			continue
		}
		byAE[t.AE] = append(byAE[t.AE], t)
	}

	order := make([]string, 0, len(byAE))
	seen := map[string]bool{}
	for _, name := range aes {
		if len(byAE[name]) > 0 && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range byAE {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	order = append(order, model.SortNames(extra)...)

	var buf bytes.Buffer
	buf.WriteString("# Tasks by AE\n")
	if len(order) == 0 {
		buf.WriteString("\n_No tasks._\n")
		return buf.String()
	}
	for _, name := range order {
		buf.WriteString("\n## " + name + "\n\n")
		sorted := taskview.SortTasks(byAE[name])
		for _, t := range append(sorted.Active, sorted.Completed...) {
			buf.WriteString(indexLine(t, opt.Now))
		}
	}
	return buf.String()
}

func indexLine(t model.Task, now time.Time) string {
	box := "[ ]"
	if t.Done() {
		box = "[x]"
	}
	var meta []string
	if !model.IsMissingAccount(t.Account) {
		meta = append(meta, strings.TrimSpace(t.Account))
	}
	if t.Status != model.StatusBacklog && !t.Done() {
		meta = append(meta, t.Status.Label())
	}
	if t.DueDate != "" {
		due := "due " + t.DueDate
		if taskview.IsOverdue(t, now) {
			due = "**overdue " + t.DueDate + "**"
		}
		meta = append(meta, due)
	}

	line := "- " + box + " [" + escapeLinkText(t.Title) + "](tasks/" + t.ID + ".md)"
	if len(meta) > 0 {
		line += " (" + strings.Join(meta, ", ") + ")"
	}
	return line + "\n"
}

func escapeLinkText(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(strings.TrimSpace(s))
}
