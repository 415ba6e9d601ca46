package media

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"

	"golang.org/x/image/draw"
)

// canvas holds an animation as full-size RGBA frames with their timing
type canvas struct {
	width, height int
	frames        []*image.RGBA
	delays        []int
	palette       color.Palette
}

// coalesce renders every frame of g onto the logical screen, applying each
// frame's disposal method, so frames no longer depend on their predecessors
func coalesce(g *gif.GIF) *canvas {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		for _, frame := range g.Image {
			bounds = bounds.Union(frame.Bounds())
		}
		bounds = image.Rect(0, 0, bounds.Max.X, bounds.Max.Y)
	}

	c := &canvas{
		width:   bounds.Dx(),
		height:  bounds.Dy(),
		palette: sharedPalette(g.Image),
	}

	screen := image.NewRGBA(bounds)
	for i, frame := range g.Image {
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var saved *image.RGBA
		if disposal == gif.DisposalPrevious {
			saved = cloneRGBA(screen)
		}

		draw.Draw(screen, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		c.frames = append(c.frames, cloneRGBA(screen))

		delay := 0
		if i < len(g.Delay) {
			delay = g.Delay[i]
		}
		c.delays = append(c.delays, delay)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(screen, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			screen = saved
		}
	}

	return c
}

// sharedPalette returns the palette common to every frame, falling back to
// Plan9 with a transparent entry when frames disagree
func sharedPalette(frames []*image.Paletted) color.Palette {
	if len(frames) > 0 {
		first := frames[0].Palette
		same := len(first) > 0
		for _, frame := range frames[1:] {
			if !samePalette(first, frame.Palette) {
				same = false
				break
			}
		}
		if same {
			return withTransparency(first)
		}
	}

	return withTransparency(palette.Plan9)
}

func samePalette(a, b color.Palette) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		r1, g1, b1, a1 := a[i].RGBA()
		r2, g2, b2, a2 := b[i].RGBA()
		if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
			return false
		}
	}
	return true
}

// withTransparency returns p with a fully transparent entry, replacing the
// last entry of a full palette if needed
func withTransparency(p color.Palette) color.Palette {
	if transparentIndex(p) >= 0 {
		return p
	}
	out := make(color.Palette, len(p), 256)
	copy(out, p)
	if len(out) < 256 {
		return append(out, color.RGBA{})
	}
	out[255] = color.RGBA{}
	return out
}

func transparentIndex(p color.Palette) int {
	for i, c := range p {
		if _, _, _, a := c.RGBA(); a == 0 {
			return i
		}
	}
	return -1
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

// scale resamples a frame to w×h
func scale(src *image.RGBA, w, h int) *image.RGBA {
	if src.Rect.Dx() == w && src.Rect.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// quantizer maps RGBA pixels onto a fixed palette, caching lookups
type quantizer struct {
	palette     color.Palette
	transparent int
	opaque      [][3]int32
	indexes     []uint8
	cache       map[uint32]uint8
}

func newQuantizer(p color.Palette) *quantizer {
	q := &quantizer{
		palette:     p,
		transparent: transparentIndex(p),
		cache:       make(map[uint32]uint8),
	}
	for i, c := range p {
		r, g, b, a := c.RGBA()
		if a == 0 {
			continue
		}
		q.opaque = append(q.opaque, [3]int32{int32(r >> 8), int32(g >> 8), int32(b >> 8)})
		q.indexes = append(q.indexes, uint8(i))
	}
	return q
}

func (q *quantizer) index(r, g, b, a uint8) uint8 {
	if a < 0x80 && q.transparent >= 0 {
		return uint8(q.transparent)
	}

	key := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	if idx, ok := q.cache[key]; ok {
		return idx
	}

	best, bestDist := 0, int32(-1)
	for i, c := range q.opaque {
		dr, dg, db := c[0]-int32(r), c[1]-int32(g), c[2]-int32(b)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}

	idx := uint8(0)
	if len(q.indexes) > 0 {
		idx = q.indexes[best]
	}
	q.cache[key] = idx
	return idx
}

func (q *quantizer) paletted(src *image.RGBA) *image.Paletted {
	dst := image.NewPaletted(src.Rect, q.palette)
	for y := src.Rect.Min.Y; y < src.Rect.Max.Y; y++ {
		for x := src.Rect.Min.X; x < src.Rect.Max.X; x++ {
			o := src.PixOffset(x, y)
			p := src.Pix[o : o+4 : o+4]
			dst.SetColorIndex(x, y, q.index(p[0], p[1], p[2], p[3]))
		}
	}
	return dst
}
