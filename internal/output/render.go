package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"
)

// Palette used when styling is enabled.
const (
	colorPrimary = "#3b82f6"
	colorMuted   = "#6b7280"
	colorFg      = "#e5e7eb"
	colorError   = "#ef4444"
	colorWarning = "#f59e0b"
	colorSuccess = "#22c55e"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool
	locale Locale

	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style

	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer. Styling is enabled when writing to a TTY,
// or when forceStyled is true, unless NO_COLOR is set.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	width, tty := terminalInfo(w)
	styled := (tty || forceStyled) && os.Getenv("NO_COLOR") == ""

	r := &Renderer{width: width, styled: styled, locale: DetectLocale()}

	color := func(c string) lipgloss.Style {
		if !styled {
			return lipgloss.NewStyle()
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}

	r.Summary = color(colorPrimary)
	r.Muted = color(colorMuted)
	r.Data = color(colorFg)
	r.Error = color(colorError)
	r.Hint = color(colorMuted)
	r.Warning = color(colorWarning)
	r.Success = color(colorSuccess)
	r.Header = color(colorFg)
	r.Cell = color(colorFg)
	r.CellMuted = color(colorMuted)
	if styled {
		r.Summary = r.Summary.Bold(true)
		r.Error = r.Error.Bold(true)
		r.Hint = r.Hint.Italic(true)
		r.Header = r.Header.Bold(true)
	}
	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w >= 40 {
			width = w
		}
		fi, err := f.Stat()
		if err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
			isTTY = true
		}
	}
	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}
	if resp.Notice != "" {
		b.WriteString(r.Warning.Render("! " + resp.Notice))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if stats, ok := resp.Meta["stats"].(string); ok && stats != "" {
		b.WriteString("\n")
		b.WriteString(r.Muted.Render("Stats: " + stats))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")

	if len(resp.Fields) > 0 {
		names := make([]string, 0, len(resp.Fields))
		for name := range resp.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(r.Warning.Render(fmt.Sprintf("  %s: %s", name, strings.Join(resp.Fields[name], ", "))))
			b.WriteString("\n")
		}
	} else if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		r.renderTable(b, d)

	case map[string]any:
		r.renderObject(b, d)

	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		for _, item := range d {
			b.WriteString(r.Data.Render("• " + r.formatCell("", item)))
			b.WriteString("\n")
		}

	case string:
		b.WriteString(r.Data.Render(d))
		b.WriteString("\n")

	case nil:
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")

	default:
		b.WriteString(r.Data.Render(fmt.Sprintf("%v", data)))
		b.WriteString("\n")
	}
}

// Column priority for table rendering (lower = higher priority)
var columnPriority = map[string]int{
	"id":           1,
	"key":          1,
	"name":         2,
	"title":        2,
	"service":      3,
	"center_name":  3,
	"status":       4,
	"fresh":        4,
	"scheduled_at": 5,
	"address":      5,
	"price":        6,
	"age":          6,
	"message":      7,
	"created_at":   9,
}

var mutedColumns = map[string]bool{
	"id":         true,
	"created_at": true,
}

type column struct {
	key      string
	header   string
	priority int
	muted    bool
	width    int
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any) {
	columns := r.selectColumns(detectColumns(data), data)
	if len(columns) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			if col < len(columns) && columns[col].muted {
				return r.CellMuted
			}
			return r.Cell
		})

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	t.Headers(headers...)

	for _, item := range data {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = r.formatCell(col.key, item[col.key])
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

func detectColumns(data []map[string]any) []column {
	seen := map[string]bool{}
	var cols []column
	for _, item := range data {
		for key, val := range item {
			if seen[key] {
				continue
			}
			switch val.(type) {
			case map[string]any, []any, []map[string]any:
				continue
			}
			seen[key] = true
			priority := columnPriority[key]
			if priority == 0 {
				priority = 50
			}
			cols = append(cols, column{
				key:      key,
				header:   formatHeader(key),
				priority: priority,
				muted:    mutedColumns[key],
			})
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].priority != cols[j].priority {
			return cols[i].priority < cols[j].priority
		}
		return cols[i].key < cols[j].key
	})
	return cols
}

// selectColumns drops the lowest priority columns until the table fits.
func (r *Renderer) selectColumns(cols []column, data []map[string]any) []column {
	for i := range cols {
		cols[i].width = lipgloss.Width(cols[i].header)
		for _, row := range data {
			if w := lipgloss.Width(r.formatCell(cols[i].key, row[cols[i].key])); w > cols[i].width {
				cols[i].width = w
			}
		}
	}

	total := func(cs []column) int {
		sum := 0
		for _, c := range cs {
			sum += c.width + 2
		}
		return sum
	}
	for len(cols) > 1 && total(cols) > r.width {
		cols = cols[:len(cols)-1]
	}
	return cols
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any) {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		switch v.(type) {
		case map[string]any, []map[string]any:
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := columnPriority[keys[i]], columnPriority[keys[j]]
		if pi == 0 {
			pi = 50
		}
		if pj == 0 {
			pj = 50
		}
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})

	maxLen := 0
	for _, k := range keys {
		if l := len(formatHeader(k)); l > maxLen {
			maxLen = l
		}
	}
	for _, k := range keys {
		label := r.Muted.Render(fmt.Sprintf("%-*s: ", maxLen, formatHeader(k)))
		style := r.Data
		if mutedColumns[k] {
			style = r.CellMuted
		}
		b.WriteString(label + style.Render(r.formatCell(k, data[k])) + "\n")
	}
}

func formatHeader(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.TrimSuffix(key, " at")
	words := strings.Fields(key)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (r *Renderer) formatCell(key string, val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		if strings.HasSuffix(key, "_at") {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t.Local().Format("Jan 2 15:04")
			}
		}
		if len(v) > 40 {
			return v[:37] + "..."
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if key == "price" {
			return r.locale.FormatPrice(v)
		}
		return r.locale.FormatNumber(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, r.formatCell("", item))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
