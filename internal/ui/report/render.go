package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"nsref/internal/core/app"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	namespaceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// Renderer writes results to w as styled text, JSON or YAML.
type Renderer struct {
	w      io.Writer
	format string
	color  bool
}

// NewRenderer picks colours only when w is a terminal and NO_COLOR is unset.
func NewRenderer(w io.Writer, format string) (*Renderer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		format = FormatText
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return &Renderer{w: w, format: format, color: isTerminal(w)}, nil
}

func isTerminal(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *Renderer) Format() string {
	return r.format
}

// Render writes v, one of the view types of this package or an app result.
func (r *Renderer) Render(v any) error {
	switch r.format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintf(r.w, "%s\n", data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	return r.text(v)
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) text(v any) error {
	var b strings.Builder
	switch v := v.(type) {
	case ModuleView:
		r.module(&b, v)
	case Resolution:
		fmt.Fprintln(&b, v.Resolved)
	case TypeView:
		r.typeView(&b, v)
	case *app.NamespaceScan:
		r.namespaceScan(&b, v)
	case app.FilterResult:
		verdict := r.style(headerStyle, "valid")
		if !v.Valid {
			verdict = r.style(warningStyle, "invalid")
		}
		fmt.Fprintf(&b, "%s %s %v -> %v\n", verdict, v.Type, v.Input, v.Value)
	case app.SyncResult:
		fmt.Fprintf(&b, "%s %d files, %d modules\n", r.style(headerStyle, "synced"), v.Files, v.Modules)
		r.warnings(&b, v.Warnings)
	case ChangeBatch:
		fmt.Fprintf(&b, "%s %d changed, %d rescanned, %d removed\n",
			r.style(headerStyle, "update"), len(v.Paths), v.Rescanned, v.Removed)
		r.warnings(&b, v.Failures)
	default:
		return fmt.Errorf("no text rendering for %T", v)
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) module(b *strings.Builder, v ModuleView) {
	fmt.Fprintln(b, r.style(headerStyle, v.Path))
	for _, tbl := range v.Namespaces {
		name := tbl.Namespace
		if name == "" {
			name = "(global)"
		}
		fmt.Fprintf(b, "\n%s %s\n", r.style(mutedStyle, "namespace"), r.style(namespaceStyle, name))
		if len(tbl.Imports) == 0 && len(tbl.Declarations) == 0 {
			fmt.Fprintln(b, r.style(mutedStyle, "  (empty)"))
			continue
		}
		tw := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
		for _, imp := range tbl.Imports {
			fmt.Fprintf(tw, "  use %s\t%s\t=> %s\tline %d\n", imp.Kind, imp.Alias, imp.Target, imp.Line)
		}
		for _, d := range tbl.Declarations {
			fmt.Fprintf(tw, "  %s\t%s\t\tline %d\n", d.Kind, d.Name, d.Line)
		}
		_ = tw.Flush()
	}
}

func (r *Renderer) typeView(b *strings.Builder, v TypeView) {
	fmt.Fprintln(b, r.style(headerStyle, v.Type))
	tw := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  kind\t%s\n", v.Kind)
	fmt.Fprintf(tw, "  nullable\t%t\n", v.Nullable)
	if v.Dims > 0 {
		fmt.Fprintf(tw, "  elem\t%s\n", v.Elem)
		fmt.Fprintf(tw, "  dims\t%d\n", v.Dims)
	}
	_ = tw.Flush()
}

func (r *Renderer) namespaceScan(b *strings.Builder, v *app.NamespaceScan) {
	name := v.Namespace
	if name == "" {
		name = "(global)"
	}
	fmt.Fprintf(b, "%s %s %s\n", r.style(namespaceStyle, name),
		r.style(mutedStyle, fmt.Sprintf("%d files", len(v.Files))),
		r.style(mutedStyle, fmt.Sprintf("%d declarations", len(v.Declarations))))
	tw := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	for _, d := range v.Declarations {
		fmt.Fprintf(tw, "  %s\t%s\t%s:%d\n", d.Kind, d.Name, d.Path, d.Line)
	}
	_ = tw.Flush()
	r.warnings(b, v.Warnings)
}

func (r *Renderer) warnings(b *strings.Builder, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(b, "%s %s\n", r.style(warningStyle, "warning:"), w)
	}
}
