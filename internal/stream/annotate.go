package stream

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	matchedColor = color.RGBA{G: 200, A: 255}
	unknownColor = color.RGBA{R: 220, A: 255}
)

const boxThickness = 2

// annotate draws a bounding box and identity label onto img:
// green for a matched face, red for an unknown one.
func annotate(img *image.RGBA, box image.Rectangle, label string, matched bool) {
	c := unknownColor
	if matched {
		c = matchedColor
	}

	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return
	}
	drawRect(img, box, c)
	drawLabel(img, box.Min.X, box.Min.Y-4, label, c)
}

// drawRect draws an unfilled rectangle.
func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for t := 0; t < boxThickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, r.Min.Y+t, c)
			img.SetRGBA(x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.SetRGBA(r.Min.X+t, y, c)
			img.SetRGBA(r.Max.X-1-t, y, c)
		}
	}
}

// drawLabel renders text just above the box.
func drawLabel(img *image.RGBA, x, y int, label string, c color.RGBA) {
	if y < basicfont.Face7x13.Height {
		y = basicfont.Face7x13.Height
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}
