package render

import "image/color"

var (
	// Person is the default color used to annotate people, an orange that
	// reads well over most scenes
	Person = color.RGBA{R: 255, G: 160, B: 60, A: 255}

	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 50, A: 255}
	Pink   = color.RGBA{R: 255, G: 0, B: 255, A: 255}
)

// named colors selectable by name from the command line
var named = map[string]color.RGBA{
	"person": Person,
	"black":  Black,
	"white":  White,
	"yellow": Yellow,
	"pink":   Pink,
}

// ColorByName returns the named color and whether it exists
func ColorByName(name string) (color.RGBA, bool) {
	clr, ok := named[name]
	return clr, ok
}

// ColorNames returns the list of selectable color names
func ColorNames() []string {
	return []string{"person", "black", "white", "yellow", "pink"}
}
