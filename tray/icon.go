package tray

import (
	"image"
	"image/color"
	"math"

	"github.com/bamiaux/rez"
	"golang.org/x/image/draw"
)

// pixmap is the wire format StatusNotifierItem hosts expect for icons:
// width, height, and ARGB32 data in network byte order.
type pixmap struct {
	Width, Height int32
	Bytes         []byte
}

// iconSizes covers the sizes common tray hosts pick from.
var iconSizes = []int{16, 22, 24, 32, 48}

const iconBase = 96

var (
	amber    = color.NRGBA{R: 0xFF, G: 0xA9, B: 0x3B, A: 0xFF}
	dimGray  = color.NRGBA{R: 0x8A, G: 0x8A, B: 0x8A, A: 0xFF}
	alertRed = color.NRGBA{R: 0xD0, G: 0x45, B: 0x2D, A: 0xFF}
)

// renderIcon draws the filter glyph for the given state: a filled warm disc
// while enabled, an outline while disabled, and a struck-through disc while
// the display backend is rejecting applies.
func renderIcon(enabled, degraded bool) []pixmap {
	base := drawGlyph(iconBase, enabled, degraded)

	out := make([]pixmap, 0, len(iconSizes))
	for _, size := range iconSizes {
		scaled := image.NewRGBA(image.Rect(0, 0, size, size))
		if err := rez.Convert(scaled, base, rez.NewBicubicFilter()); err != nil {
			// rez is picky about geometry; the slower scaler always works.
			draw.CatmullRom.Scale(scaled, scaled.Bounds(), base, base.Bounds(), draw.Src, nil)
		}
		out = append(out, pixmap{
			Width:  int32(size),
			Height: int32(size),
			Bytes:  argbBytes(scaled),
		})
	}
	return out
}

func drawGlyph(size int, enabled, degraded bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	fill := amber
	if !enabled {
		fill = dimGray
	}

	center := float64(size) / 2
	outer := float64(size)*0.5 - 2
	inner := outer * 0.62 // ring thickness when disabled

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-center, float64(y)+0.5-center)
			if d > outer {
				continue
			}
			if !enabled && d < inner {
				continue
			}
			c := fill
			// soften the edge over one pixel
			if edge := outer - d; edge < 1 {
				c.A = uint8(float64(c.A) * edge)
			}
			img.SetRGBA(x, y, rgbaPremul(c))
		}
	}

	if degraded {
		strike(img, alertRed)
	}
	return img
}

// strike draws a diagonal bar across the glyph.
func strike(img *image.RGBA, c color.NRGBA) {
	b := img.Bounds()
	size := b.Dx()
	w := float64(size) * 0.09
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			// distance to the main diagonal
			if math.Abs(float64(x)-float64(y)) <= w {
				img.SetRGBA(x, y, rgbaPremul(c))
			}
		}
	}
}

func rgbaPremul(c color.NRGBA) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

// argbBytes converts premultiplied RGBA pixels to the ARGB32 network byte
// order layout the SNI protocol wants.
func argbBytes(img *image.RGBA) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			out = append(out, c.A, c.R, c.G, c.B)
		}
	}
	return out
}
