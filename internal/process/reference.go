package process

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/Someblueman/lootforge/internal/manifest"
)

// ReferenceTransformer is LootForge's stdlib-based Transformer. It is a
// correct, unoptimized reference implementation of each step; a faster
// or GPU-backed Transformer can be swapped in without touching Run's
// ordering logic.
type ReferenceTransformer struct{}

// Trim removes fully-transparent border rows/columns.
func (ReferenceTransformer) Trim(img image.Image) image.Image {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	empty := true
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0 {
				empty = false
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if empty {
		return img
	}
	rect := image.Rect(0, 0, maxX-minX+1, maxY-minY+1)
	out := image.NewNRGBA(rect)
	draw.Draw(out, rect, img, image.Pt(minX, minY), draw.Src)
	return out
}

// Pad adds a uniform or per-edge transparent border.
func (ReferenceTransformer) Pad(img image.Image, spec manifest.PadSpec) image.Image {
	top, right, bottom, left := spec.Top, spec.Right, spec.Bottom, spec.Left
	if spec.Uniform > 0 {
		top, right, bottom, left = spec.Uniform, spec.Uniform, spec.Uniform, spec.Uniform
	}
	b := img.Bounds()
	w, h := b.Dx()+left+right, b.Dy()+top+bottom
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, image.Rect(left, top, left+b.Dx(), top+b.Dy()), img, b.Min, draw.Src)
	return out
}

// SmartCrop centers a crop of targetW x targetH over the image's opaque
// bounding box (falling back to geometric center when the image has no
// transparent border to key off of).
func (ReferenceTransformer) SmartCrop(img image.Image, targetW, targetH int) image.Image {
	b := img.Bounds()
	cx, cy := b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	found := false
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0 {
				found = true
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if found {
		cx, cy = (minX+maxX)/2, (minY+maxY)/2
	}

	srcRect := image.Rect(cx-targetW/2, cy-targetH/2, cx-targetW/2+targetW, cy-targetH/2+targetH)
	out := image.NewNRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(out, out.Bounds(), img, srcRect.Min, draw.Src)
	return out
}

// Resize scales the image with nearest-neighbor ("nearest", the default,
// preserving pixel-art edges) or bilinear ("bilinear") sampling.
func (ReferenceTransformer) Resize(img image.Image, w, h int, algorithm string) image.Image {
	if w <= 0 || h <= 0 {
		return img
	}
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	if algorithm == "bilinear" {
		for y := 0; y < h; y++ {
			srcY := float64(y) * float64(sh) / float64(h)
			for x := 0; x < w; x++ {
				srcX := float64(x) * float64(sw) / float64(w)
				out.Set(x, y, bilinearSample(img, b, srcX, srcY))
			}
		}
		return out
	}

	for y := 0; y < h; y++ {
		srcY := b.Min.Y + y*sh/h
		for x := 0; x < w; x++ {
			srcX := b.Min.X + x*sw/w
			out.Set(x, y, img.At(srcX, srcY))
		}
	}
	return out
}

func bilinearSample(img image.Image, b image.Rectangle, fx, fy float64) color.NRGBA {
	x0 := int(math.Floor(fx)) + b.Min.X
	y0 := int(math.Floor(fy)) + b.Min.Y
	x1, y1 := x0+1, y0+1
	x0, x1 = clamp(x0, b.Min.X, b.Max.X-1), clamp(x1, b.Min.X, b.Max.X-1)
	y0, y1 := clamp(y0, b.Min.Y, b.Max.Y-1), clamp(y1, b.Min.Y, b.Max.Y-1)

	tx, ty := fx-math.Floor(fx), fy-math.Floor(fy)

	c00 := colorAt(img, x0, y0)
	c10 := colorAt(img, x1, y0)
	c01 := colorAt(img, x0, y1)
	c11 := colorAt(img, x1, y1)

	lerp := func(a, b float64, t float64) float64 { return a + (b-a)*t }
	blend := func(f func(color.NRGBA) float64) uint8 {
		top := lerp(f(c00), f(c10), tx)
		bot := lerp(f(c01), f(c11), tx)
		return uint8(lerp(top, bot, ty))
	}

	return color.NRGBA{
		R: blend(func(c color.NRGBA) float64 { return float64(c.R) }),
		G: blend(func(c color.NRGBA) float64 { return float64(c.G) }),
		B: blend(func(c color.NRGBA) float64 { return float64(c.B) }),
		A: blend(func(c color.NRGBA) float64 { return float64(c.A) }),
	}
}

func colorAt(img image.Image, x, y int) color.NRGBA {
	r, g, b, a := img.At(x, y).RGBA()
	if a == 0 {
		return color.NRGBA{}
	}
	return color.NRGBA{R: uint8(r * 255 / a), G: uint8(g * 255 / a), B: uint8(b * 255 / a), A: uint8(a >> 8)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PixelPerfect snaps every pixel's alpha to fully-opaque or fully-
// transparent, removing anti-aliased fringes that blur a pixel-art grid.
func (ReferenceTransformer) PixelPerfect(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := out.NRGBAAt(x, y)
			if c.A >= 128 {
				c.A = 255
			} else {
				c.A = 0
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// Outline draws a flat-color border around the opaque silhouette.
func (ReferenceTransformer) Outline(img image.Image, spec manifest.OutlineSpec) image.Image {
	width := spec.WidthPx
	if width <= 0 {
		width = 1
	}
	outlineColor := parseHexColor(spec.Color)

	b := img.Bounds()
	out := image.NewNRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	opaque := func(x, y int) bool {
		if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
			return false
		}
		_, _, _, a := img.At(x, y).RGBA()
		return a != 0
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if opaque(x, y) {
				continue
			}
			near := false
			for dy := -width; dy <= width && !near; dy++ {
				for dx := -width; dx <= width; dx++ {
					if opaque(x+dx, y+dy) {
						near = true
						break
					}
				}
			}
			if near {
				out.SetNRGBA(x, y, outlineColor)
			}
		}
	}
	return out
}

func parseHexColor(s string) color.NRGBA {
	c := color.NRGBA{A: 255}
	if len(s) != 7 || s[0] != '#' {
		return c
	}
	var r, g, bl int
	_, err := fmtSscanHex(s[1:3], &r)
	if err != nil {
		return color.NRGBA{A: 255}
	}
	fmtSscanHex(s[3:5], &g)
	fmtSscanHex(s[5:7], &bl)
	return color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(bl), A: 255}
}

func fmtSscanHex(s string, out *int) (int, error) {
	v := 0
	for _, r := range s {
		v *= 16
		switch {
		case r >= '0' && r <= '9':
			v += int(r - '0')
		case r >= 'a' && r <= 'f':
			v += int(r-'a') + 10
		case r >= 'A' && r <= 'F':
			v += int(r-'A') + 10
		default:
			return 0, errInvalidHex
		}
	}
	*out = v
	return 1, nil
}

// SeamHeal blends each edge of a tileable image with its opposite edge
// so adjacent tiles in wrapGrid read without a visible seam.
func (ReferenceTransformer) SeamHeal(img image.Image, wrapGrid string) image.Image {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	w, h := b.Dx(), b.Dy()
	blendWidth := w / 16
	if blendWidth < 1 {
		blendWidth = 1
	}

	for y := 0; y < h; y++ {
		for i := 0; i < blendWidth; i++ {
			leftX := b.Min.X + i
			rightX := b.Max.X - 1 - i
			t := float64(i) / float64(blendWidth)
			left := colorAt(img, leftX, b.Min.Y+y)
			right := colorAt(img, rightX, b.Min.Y+y)
			out.SetNRGBA(leftX, b.Min.Y+y, blendColor(right, left, t))
			out.SetNRGBA(rightX, b.Min.Y+y, blendColor(left, right, t))
		}
	}
	return out
}

func blendColor(a, b color.NRGBA, t float64) color.NRGBA {
	lerp := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: lerp(a.A, b.A)}
}

// QuantizePalette reduces the image to the declared color budget using
// color.Palette's nearest-color mapping (median-cut is out of scope per
// spec §1; callers that need tighter palette control supply an explicit
// palette via a future extension of PaletteQuantization).
func (ReferenceTransformer) QuantizePalette(img image.Image, spec manifest.PaletteQuantization) image.Image {
	colors := spec.Colors
	if colors <= 0 {
		colors = 16
	}
	pal := buildUniformPalette(colors)
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := colorAt(img, x, y)
			if c.A == 0 {
				out.SetNRGBA(x, y, color.NRGBA{})
				continue
			}
			idx := pal.Index(c)
			nc := pal[idx].(color.NRGBA)
			nc.A = c.A
			out.SetNRGBA(x, y, nc)
		}
	}
	return out
}

func buildUniformPalette(n int) color.Palette {
	levels := int(math.Cbrt(float64(n)))
	if levels < 2 {
		levels = 2
	}
	var pal color.Palette
	step := 255 / (levels - 1)
	for r := 0; r < levels; r++ {
		for g := 0; g < levels; g++ {
			for b := 0; b < levels; b++ {
				pal = append(pal, color.NRGBA{
					R: uint8(r * step), G: uint8(g * step), B: uint8(b * step), A: 255,
				})
			}
		}
	}
	return pal
}

var errInvalidHex = &invalidHexError{}

type invalidHexError struct{}

func (*invalidHexError) Error() string { return "process: invalid hex color" }
