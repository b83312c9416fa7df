// Package imagemap exposes a decoded reference image as a colour lookup in
// screen coordinates for the gradient check.
package imagemap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png" // register PNG
	"io"
	"math"
	"os"
	"sort"

	_ "golang.org/x/image/bmp" // register BMP
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Map places an image with its centre at (X, Y) in screen coordinates, where
// y grows upwards.
type Map struct {
	img    image.Image
	bounds image.Rectangle
	x, y   float64
	colors []color.RGBA
}

// New wraps img centred at (x, y).
func New(img image.Image, x, y float64) (*Map, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}
	m := &Map{img: img, bounds: b, x: x, y: y}
	m.colors = distinctColors(img)
	return m, nil
}

// Decode reads a PNG or BMP image.
func Decode(r io.Reader, x, y float64) (*Map, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	m, err := New(img, x, y)
	if err != nil {
		return nil, fmt.Errorf("%s image: %w", format, err)
	}
	return m, nil
}

// Open decodes the image file at path.
func Open(path string, x, y float64) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	m, err := Decode(f, x, y)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Size returns the image width and height in pixels.
func (m *Map) Size() (w, h int) { return m.bounds.Dx(), m.bounds.Dy() }

// ColorAt returns the pixel under the screen point, false outside the image.
func (m *Map) ColorAt(x, y float64) (color.RGBA, bool) {
	w, h := m.Size()
	px := int(math.Floor(x - m.x + float64(w)/2))
	py := int(math.Floor(float64(h)/2 - (y - m.y)))
	if px < 0 || py < 0 || px >= w || py >= h {
		return color.RGBA{}, false
	}
	return toRGBA(m.img.At(m.bounds.Min.X+px, m.bounds.Min.Y+py)), true
}

// Colors lists the distinct colours of the image in ascending RGB order.
func (m *Map) Colors() []color.RGBA { return m.colors }

func distinctColors(img image.Image) []color.RGBA {
	b := img.Bounds()
	seen := make(map[color.RGBA]struct{})
	for py := b.Min.Y; py < b.Max.Y; py++ {
		for px := b.Min.X; px < b.Max.X; px++ {
			seen[toRGBA(img.At(px, py))] = struct{}{}
		}
	}
	out := make([]color.RGBA, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return rgb(out[i]) < rgb(out[j]) })
	return out
}

func rgb(c color.RGBA) uint32 { return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B) }

// toRGBA drops alpha; the gradient only looks at colour channels.
func toRGBA(c color.Color) color.RGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return color.RGBA{R: n.R, G: n.G, B: n.B, A: 0xff}
}
