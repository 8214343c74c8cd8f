package thumbnail

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	textMargin    = 10
	textLineWidth = 33 // runes per line at 7px glyph width
	textMaxLines  = 17
)

// textThumbnail renders the opening lines of a document onto a white card.
func (g *Generator) textThumbnail(text string) (string, error) {
	lines := wrapText(text, textLineWidth, textMaxLines)
	if len(lines) == 0 {
		return "", nil
	}

	img := image.NewRGBA(image.Rect(0, 0, ThumbnailSize, ThumbnailSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(textMargin, textMargin+(i+1)*face.Height)
		drawer.DrawString(line)
	}

	return encodeDataURI(img)
}

// wrapText breaks text into display lines, collapsing runs of whitespace.
func wrapText(text string, width, maxLines int) []string {
	var lines []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
	}

	for _, word := range strings.FieldsFunc(text, unicode.IsSpace) {
		for len(word) > width {
			flush()
			if len(lines) >= maxLines {
				return lines
			}
			lines = append(lines, word[:width])
			word = word[width:]
		}
		if current.Len() > 0 && current.Len()+1+len(word) > width {
			flush()
			if len(lines) >= maxLines {
				return lines
			}
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	flush()

	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
