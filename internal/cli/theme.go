package cli

import "github.com/charmbracelet/lipgloss"

// Palette defines the color roles used by CLI output.
type Palette struct {
	Name      string
	Border    lipgloss.Color
	TextDim   lipgloss.Color
	TextMuted lipgloss.Color
	Text      lipgloss.Color
	Accent    lipgloss.Color
	Green     lipgloss.Color
	Orange    lipgloss.Color
	Red       lipgloss.Color
	Blue      lipgloss.Color
	Yellow    lipgloss.Color
	Magenta   lipgloss.Color
	Cyan      lipgloss.Color
}

// FlexokiDark is the default palette.
var FlexokiDark = Palette{
	Name:      "flexoki-dark",
	Border:    lipgloss.Color("#403E3C"),
	TextDim:   lipgloss.Color("#575653"),
	TextMuted: lipgloss.Color("#878580"),
	Text:      lipgloss.Color("#FFFCF0"),
	Accent:    lipgloss.Color("#3AA99F"),
	Green:     lipgloss.Color("#879A39"),
	Orange:    lipgloss.Color("#DA702C"),
	Red:       lipgloss.Color("#D14D41"),
	Blue:      lipgloss.Color("#4385BE"),
	Yellow:    lipgloss.Color("#D0A215"),
	Magenta:   lipgloss.Color("#CE5D97"),
	Cyan:      lipgloss.Color("#24837B"),
}

// CatppuccinMocha is a soft pastel palette.
var CatppuccinMocha = Palette{
	Name:      "catppuccin-mocha",
	Border:    lipgloss.Color("#585B70"),
	TextDim:   lipgloss.Color("#6C7086"),
	TextMuted: lipgloss.Color("#A6ADC8"),
	Text:      lipgloss.Color("#CDD6F4"),
	Accent:    lipgloss.Color("#89B4FA"),
	Green:     lipgloss.Color("#A6E3A1"),
	Orange:    lipgloss.Color("#FAB387"),
	Red:       lipgloss.Color("#F38BA8"),
	Blue:      lipgloss.Color("#89B4FA"),
	Yellow:    lipgloss.Color("#F9E2AF"),
	Magenta:   lipgloss.Color("#F5C2E7"),
	Cyan:      lipgloss.Color("#94E2D5"),
}

// TokyoNight is a cool blue/purple palette.
var TokyoNight = Palette{
	Name:      "tokyo-night",
	Border:    lipgloss.Color("#565F89"),
	TextDim:   lipgloss.Color("#565F89"),
	TextMuted: lipgloss.Color("#A9B1D6"),
	Text:      lipgloss.Color("#C0CAF5"),
	Accent:    lipgloss.Color("#7AA2F7"),
	Green:     lipgloss.Color("#9ECE6A"),
	Orange:    lipgloss.Color("#FF9E64"),
	Red:       lipgloss.Color("#F7768E"),
	Blue:      lipgloss.Color("#7AA2F7"),
	Yellow:    lipgloss.Color("#E0AF68"),
	Magenta:   lipgloss.Color("#BB9AF7"),
	Cyan:      lipgloss.Color("#7DCFFF"),
}

// Terminal uses ANSI 16 colors only.
var Terminal = Palette{
	Name:      "terminal",
	Border:    lipgloss.Color("8"),
	TextDim:   lipgloss.Color("8"),
	TextMuted: lipgloss.Color("7"),
	Text:      lipgloss.Color("15"),
	Accent:    lipgloss.Color("6"),
	Green:     lipgloss.Color("2"),
	Orange:    lipgloss.Color("3"),
	Red:       lipgloss.Color("1"),
	Blue:      lipgloss.Color("4"),
	Yellow:    lipgloss.Color("3"),
	Magenta:   lipgloss.Color("5"),
	Cyan:      lipgloss.Color("6"),
}

// Palettes lists every available palette.
var Palettes = []Palette{FlexokiDark, CatppuccinMocha, TokyoNight, Terminal}

// PaletteNames returns the names accepted by SetTheme.
func PaletteNames() []string {
	names := make([]string, len(Palettes))
	for i, p := range Palettes {
		names[i] = p.Name
	}
	return names
}

// PaletteByName returns a palette by name, defaulting to FlexokiDark.
func PaletteByName(name string) Palette {
	for _, p := range Palettes {
		if p.Name == name {
			return p
		}
	}
	return FlexokiDark
}

var active = FlexokiDark

// Styles
var (
	titleStyle  lipgloss.Style
	headerStyle lipgloss.Style
	valueStyle  lipgloss.Style
	mutedStyle  lipgloss.Style
	warnStyle   lipgloss.Style
	errorStyle  lipgloss.Style
	dimStyle    lipgloss.Style
	totalStyle  lipgloss.Style
)

func init() {
	applyPalette(active)
}

// SetTheme switches the active palette by name.
func SetTheme(name string) {
	active = PaletteByName(name)
	applyPalette(active)
}

// ActivePalette returns the palette currently in use.
func ActivePalette() Palette {
	return active
}

func applyPalette(p Palette) {
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(p.Text).Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(p.Accent)
	valueStyle = lipgloss.NewStyle().Foreground(p.Text)
	mutedStyle = lipgloss.NewStyle().Foreground(p.TextMuted)
	warnStyle = lipgloss.NewStyle().Foreground(p.Orange)
	errorStyle = lipgloss.NewStyle().Foreground(p.Red)
	dimStyle = lipgloss.NewStyle().Foreground(p.TextDim)
	totalStyle = lipgloss.NewStyle().Bold(true).Foreground(p.Green)
}

// categoryColors returns one bar color per category in canonical order.
func categoryColors(p Palette) []lipgloss.Color {
	return []lipgloss.Color{p.Blue, p.Magenta, p.Orange, p.Yellow, p.Cyan, p.Green}
}
