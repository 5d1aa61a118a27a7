package viz

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/san-kum/trisim/internal/physics"
)

var background, _ = colorful.Hex("#1a1a2e")

// bodyColor returns the body's color tag, or a hue spread over the three
// bodies when the tag is empty or unparseable.
func bodyColor(b physics.Body, i int) colorful.Color {
	if c, err := colorful.Hex(b.Color); err == nil {
		return c
	}
	return colorful.Hcl(20+float64(i)*120, 0.6, 0.7).Clamped()
}

// Palette holds the rendering colors of one body.
type Palette struct {
	Body  lipgloss.Color
	Trail lipgloss.Color
}

func NewPalette(b physics.Body, i int) Palette {
	c := bodyColor(b, i)
	return Palette{
		Body:  lipgloss.Color(c.Hex()),
		Trail: lipgloss.Color(c.BlendLab(background, 0.55).Clamped().Hex()),
	}
}
