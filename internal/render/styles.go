package render

import "github.com/charmbracelet/lipgloss"

// Palette colors.
var (
	GreenColor = lipgloss.Color("#22C55E")
	RedColor   = lipgloss.Color("#EF4444")
	AmberColor = lipgloss.Color("#F59E0B")
	MutedColor = lipgloss.Color("#6B7280")
	BlueColor  = lipgloss.Color("#3B82F6")
)

// Styles groups the styles of every line kind.
type Styles struct {
	Done    lipgloss.Style
	Skipped lipgloss.Style
	Failed  lipgloss.Style
	Running lipgloss.Style
	Work    lipgloss.Style
	Detail  lipgloss.Style
	Heading lipgloss.Style
}

// NewStyles builds the styles for r, which decides the color profile.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Done:    r.NewStyle().Foreground(GreenColor),
		Skipped: r.NewStyle().Foreground(MutedColor),
		Failed:  r.NewStyle().Foreground(RedColor).Bold(true),
		Running: r.NewStyle().Foreground(BlueColor),
		Work:    r.NewStyle().Foreground(MutedColor).Italic(true),
		Detail:  r.NewStyle().Foreground(AmberColor).PaddingLeft(4),
		Heading: r.NewStyle().Bold(true).Underline(true),
	}
}
