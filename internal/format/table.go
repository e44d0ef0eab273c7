package format

import (
	"fmt"
	"io"
	"strings"
	"time"

	"aetracker/internal/model"
	"aetracker/internal/taskview"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

const titleWidth = 48

type TableOptions struct {
	// Writer is where the table will be printed; its terminal capabilities
	// pick the color profile.
	Writer  io.Writer
	NoColor bool
	// Width wraps markdown descriptions. Zero means 80.
	Width int
}

func (o TableOptions) renderer() *lipgloss.Renderer {
	w := o.Writer
	if w == nil {
		w = io.Discard
	}
	r := lipgloss.NewRenderer(w)
	if o.NoColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}

func (o TableOptions) width() int {
	if o.Width <= 0 {
		return 80
	}
	return o.Width
}

func newTable(r *lipgloss.Renderer, headers ...string) *table.Table {
	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Faint(true)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}

func swatch(r *lipgloss.Renderer, name, color string) string {
	if color == "" {
		return name
	}
	return r.NewStyle().Foreground(lipgloss.Color(color)).Render(name)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// TaskList is the result of `tasks list`.
type TaskList struct {
	Active    []model.Task `json:"active"`
	Completed []model.Task `json:"completed"`

	AEColors map[string]string `json:"-"`
	Now      time.Time         `json:"-"`
}

func (l TaskList) RenderTable(opts TableOptions) string {
	r := opts.renderer()
	var b strings.Builder
	b.WriteString(r.NewStyle().Bold(true).Render(fmt.Sprintf("Active (%d)", len(l.Active))))
	b.WriteByte('\n')
	if len(l.Active) > 0 {
		b.WriteString(l.taskTable(r, l.Active, false))
		b.WriteByte('\n')
	}
	b.WriteString(r.NewStyle().Bold(true).Render(fmt.Sprintf("Completed (%d)", len(l.Completed))))
	if len(l.Completed) > 0 {
		b.WriteByte('\n')
		b.WriteString(l.taskTable(r, l.Completed, true))
	}
	return b.String()
}

func (l TaskList) taskTable(r *lipgloss.Renderer, tasks []model.Task, completed bool) string {
	last := "Due"
	if completed {
		last = "Completed"
	}
	t := newTable(r, "ID", "Title", "AE", "Account", "Status", last)
	overdue := r.NewStyle().Bold(true)
	for _, task := range tasks {
		when := task.DueDate
		switch {
		case completed && task.CompletedAt != nil:
			when = task.CompletedAt.Format("2006-01-02")
		case completed:
			when = ""
		case taskview.IsOverdue(task, l.Now):
			when = overdue.Render(when + " !")
		}
		t.Row(
			shortID(task.ID),
			xansi.Truncate(task.Title, titleWidth, "…"),
			swatch(r, task.AE, l.AEColors[task.AE]),
			model.DisplayAccount(task.Account),
			task.Status.Label(),
			when,
		)
	}
	return t.String()
}

// TaskDetail is a single task as shown by `tasks show`.
type TaskDetail struct {
	model.Task
	AEColor string `json:"-"`
}

func (d TaskDetail) RenderTable(opts TableOptions) string {
	r := opts.renderer()
	label := r.NewStyle().Bold(true).Width(10)
	line := func(k, v string) string { return label.Render(k) + v + "\n" }

	var b strings.Builder
	b.WriteString(line("Title", d.Title))
	b.WriteString(line("ID", d.ID))
	b.WriteString(line("AE", swatch(r, d.AE, d.AEColor)))
	b.WriteString(line("Account", model.DisplayAccount(d.Account)))
	b.WriteString(line("Status", d.Status.Label()))
	if d.DueDate != "" {
		b.WriteString(line("Due", d.DueDate))
	}
	b.WriteString(line("Created", d.CreatedAt.Local().Format(time.DateTime)))
	if d.CompletedAt != nil {
		b.WriteString(line("Completed", d.CompletedAt.Local().Format(time.DateTime)))
	}
	if strings.TrimSpace(d.Description) != "" {
		b.WriteByte('\n')
		b.WriteString(RenderMarkdown(d.Description, opts.width(), markdownStyle(opts)))
	}
	return b.String()
}

type AERow struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// AEList is the result of `aes list`.
type AEList []AERow

func (l AEList) RenderTable(opts TableOptions) string {
	r := opts.renderer()
	t := newTable(r, "AE", "Color")
	for _, ae := range l {
		t.Row(swatch(r, ae.Name, ae.Color), ae.Color)
	}
	return t.String()
}

// Summaries is the result of `aes summary`.
type Summaries []taskview.AESummary

func (s Summaries) RenderTable(opts TableOptions) string {
	r := opts.renderer()
	t := newTable(r, "AE", "Open", "Overdue", "Done")
	for _, row := range s {
		t.Row(swatch(r, row.Name, row.Color), fmt.Sprint(row.Open), fmt.Sprint(row.Overdue), fmt.Sprint(row.Done))
	}
	return t.String()
}

// Names is a plain name list such as `accounts list`.
type Names []string

func (n Names) RenderTable(opts TableOptions) string {
	t := newTable(opts.renderer(), "Name")
	for _, name := range n {
		t.Row(name)
	}
	return t.String()
}
