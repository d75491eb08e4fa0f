package image

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default canvas size for synthesized images.
const (
	SynthWidth  = 256
	SynthHeight = 256
)

const (
	synthMaxLines   = 4
	synthGlyphWidth = 7 // basicfont.Face7x13 advance
	synthLineHeight = 16
	synthAscent     = 11
	synthMargin     = 16
)

// SynthesizePlaceholder renders a deterministic placeholder for a domain:
// the background color is derived from a hash of the domain so the same
// domain always gets the same color, with the domain name word-wrapped and
// centered on the canvas.
func SynthesizePlaceholder(domain string, width, height int) ([]byte, error) {
	if width <= 0 {
		width = SynthWidth
	}
	if height <= 0 {
		height = SynthHeight
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		domain = "unknown"
	}
	lines := wrapLabel(domain, charBudget(width), synthMaxLines)
	return renderLabel(lines, DomainColor(domain), width, height)
}

// SynthesizeTypeIcon renders a flat-color canvas with a centered label,
// used for non-HTML file types detected by URL extension.
func SynthesizeTypeIcon(label string, bg color.RGBA, width, height int) ([]byte, error) {
	if width <= 0 {
		width = SynthWidth
	}
	if height <= 0 {
		height = SynthHeight
	}
	lines := wrapWords(label, charBudget(width), synthMaxLines)
	return renderLabel(lines, bg, width, height)
}

// DomainColor derives a stable background color from the domain. Channels
// are kept mid-range so the white label stays legible.
func DomainColor(domain string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(domain))) //nolint:errcheck
	sum := h.Sum32()
	return color.RGBA{
		R: uint8(40 + (sum & 0x7F)),
		G: uint8(40 + ((sum >> 8) & 0x7F)),
		B: uint8(40 + ((sum >> 16) & 0x7F)),
		A: 255,
	}
}

func charBudget(width int) int {
	budget := (width - 2*synthMargin) / synthGlyphWidth
	if budget < 4 {
		budget = 4
	}
	return budget
}

// wrapLabel breaks a label with no natural spaces (a domain) into at most
// maxLines chunks, preferring separator boundaries, ellipsis-truncating the
// final line on overflow.
func wrapLabel(label string, budget, maxLines int) []string {
	var lines []string
	rest := label
	for rest != "" && len(lines) < maxLines {
		if len(rest) <= budget {
			lines = append(lines, rest)
			rest = ""
			break
		}
		cut := budget
		if idx := strings.LastIndexAny(rest[:budget], ".-_"); idx > 0 {
			cut = idx + 1
		}
		lines = append(lines, rest[:cut])
		rest = rest[cut:]
	}
	if rest != "" && len(lines) == maxLines {
		last := lines[maxLines-1]
		if len(last) > budget-3 {
			last = last[:budget-3]
		}
		lines[maxLines-1] = last + "..."
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

// wrapWords wraps a space-separated label greedily.
func wrapWords(label string, budget, maxLines int) []string {
	words := strings.Fields(label)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) <= budget {
			current += " " + word
			continue
		}
		lines = append(lines, current)
		current = word
		if len(lines) == maxLines-1 {
			break
		}
	}
	lines = append(lines, current)
	for i, line := range lines {
		if len(line) > budget {
			lines[i] = line[:budget-3] + "..."
		}
	}
	return lines
}

func renderLabel(lines []string, bg color.RGBA, width, height int) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: basicfont.Face7x13,
	}

	startY := (height-synthLineHeight*len(lines))/2 + synthAscent
	for i, line := range lines {
		x := (width - synthGlyphWidth*len(line)) / 2
		if x < synthMargin {
			x = synthMargin
		}
		drawer.Dot = fixed.P(x, startY+i*synthLineHeight)
		drawer.DrawString(line)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
