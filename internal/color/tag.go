// Package color derives default colors for tags.
package color

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var hexPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var folder = cases.Fold()

// ForTag returns a consistent "#RRGGBB" color for a tag name.
// Names that differ only in case or surrounding space share a color.
// Saturation and lightness are fixed so every hue stays readable on light and dark backgrounds.
func ForTag(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(folder.String(strings.TrimSpace(name))))
	hue := float64(h.Sum32() % 360)

	r, g, b := hslToRGB(hue, 0.45, 0.55)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// Valid reports whether s is a "#RRGGBB" color.
func Valid(s string) bool {
	return hexPattern.MatchString(s)
}

// Normalize upper-cases a valid color. Invalid input is returned unchanged.
func Normalize(s string) string {
	if !Valid(s) {
		return s
	}
	return cases.Upper(language.Und).String(s)
}

// hslToRGB converts HSL color space to RGB.
// h: hue (0-360), s: saturation (0-1), l: lightness (0-1)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h /= 360.0

	var r1, g1, b1 float64

	if s == 0 {
		r1, g1, b1 = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q

		r1 = hueToRGB(p, q, h+1.0/3.0)
		g1 = hueToRGB(p, q, h)
		b1 = hueToRGB(p, q, h-1.0/3.0)
	}

	r = uint8(r1*255 + 0.5)
	g = uint8(g1*255 + 0.5)
	b = uint8(b1*255 + 0.5)
	return
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
