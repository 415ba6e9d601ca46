package media

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
)

// encode renders the canvas at w×h as a looping animated GIF. With optimize
// set, consecutive identical frames are merged and each remaining frame is
// cropped to the region that changed since the previous one.
func encode(c *canvas, w, h int, optimize bool) ([]byte, error) {
	q := newQuantizer(c.palette)

	out := &gif.GIF{
		LoopCount: 0,
		Config: image.Config{
			ColorModel: c.palette,
			Width:      w,
			Height:     h,
		},
	}

	var prev *image.Paletted
	for i, frame := range c.frames {
		cur := q.paletted(scale(frame, w, h))
		delay := c.delays[i]

		if !optimize || prev == nil {
			out.Image = append(out.Image, cur)
			out.Delay = append(out.Delay, delay)
			out.Disposal = append(out.Disposal, gif.DisposalNone)
			prev = cur
			continue
		}

		changed, revealsTransparency := diff(prev, cur, q.transparent)
		if changed.Empty() {
			out.Delay[len(out.Delay)-1] += delay
			continue
		}

		if revealsTransparency {
			// Drawing over the previous frame cannot make pixels transparent
			// again, so the previous frame is emitted whole and cleared.
			last := len(out.Image) - 1
			out.Image[last] = prev
			out.Disposal[last] = gif.DisposalBackground
			out.Image = append(out.Image, cur)
		} else {
			out.Image = append(out.Image, cur.SubImage(changed).(*image.Paletted))
		}
		out.Delay = append(out.Delay, delay)
		out.Disposal = append(out.Disposal, gif.DisposalNone)
		prev = cur
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode gif: %w", err)
	}
	return buf.Bytes(), nil
}

// diff returns the bounding box of pixels that differ between two frames of
// equal bounds, and whether any differing pixel turns transparent
func diff(prev, cur *image.Paletted, transparent int) (image.Rectangle, bool) {
	b := cur.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	reveals := false

	for y := b.Min.Y; y < b.Max.Y; y++ {
		po := prev.PixOffset(b.Min.X, y)
		co := cur.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			pi, ci := prev.Pix[po+x], cur.Pix[co+x]
			if pi == ci {
				continue
			}
			if transparent >= 0 && int(ci) == transparent {
				reveals = true
			}
			px := b.Min.X + x
			if px < minX {
				minX = px
			}
			if px > maxX {
				maxX = px
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), reveals
}
