package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// BlueScanTheme provides a custom theme for the application.
type BlueScanTheme struct{}

var _ fyne.Theme = (*BlueScanTheme)(nil)

func (t *BlueScanTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0x0E, G: 0x5B, B: 0xD6, A: 0xFF}
	case theme.ColorNameButton:
		return color.NRGBA{R: 0x09, G: 0x40, B: 0xA8, A: 0xFF}
	case theme.ColorNameSelection:
		return color.NRGBA{R: 0x0E, G: 0x5B, B: 0xD6, A: 0x60}
	case theme.ColorNameScrollBar:
		return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *BlueScanTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *BlueScanTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *BlueScanTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameScrollBar:
		return 16
	case theme.SizeNameScrollBarSmall:
		return 12
	default:
		return theme.DefaultTheme().Size(name)
	}
}
