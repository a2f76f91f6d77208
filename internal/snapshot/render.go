// Package snapshot renders a board's event log to a single raster image
// plus a world-space origin, and drives background compaction.
package snapshot

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"

	"github.com/fogleman/gg"

	"realtime-backend/internal/model"
)

// Result is the (image, offsetX, offsetY) tuple the Snapshot Engine
// returns. ImageData is already base64-encoded PNG, matching the
// persisted column contract; the core treats it as opaque raster bytes.
type Result struct {
	ImageData string
	OffsetX   float64
	OffsetY   float64
}

// RenderConfig bounds the output raster and its padding.
type RenderConfig struct {
	MaxDimension int
	Padding      float64
}

type bbox struct {
	minX, minY, maxX, maxY float64
	has                    bool
}

func (b *bbox) extend(x, y, pad float64) {
	if !b.has {
		b.minX, b.minY, b.maxX, b.maxY = x-pad, y-pad, x+pad, y+pad
		b.has = true
		return
	}
	b.minX = math.Min(b.minX, x-pad)
	b.minY = math.Min(b.minY, y-pad)
	b.maxX = math.Max(b.maxX, x+pad)
	b.maxY = math.Max(b.maxY, y+pad)
}

// Render implements the Snapshot Engine's algorithm: locate the last
// clear, discard everything at or before it, skip deleted strokes, bound
// the survivors, and replay them onto a freshly allocated transparent
// raster, returning the image with its world-space origin.
func Render(events []model.DrawEvent, cfg RenderConfig) (*Result, error) {
	survivors := afterLastClear(events)
	deleted := deletedStrokeIDs(survivors)

	box, ok := boundSurvivors(survivors, deleted)
	if !ok {
		return emptyResult()
	}

	minX := box.minX - cfg.Padding
	minY := box.minY - cfg.Padding
	maxX := box.maxX + cfg.Padding
	maxY := box.maxY + cfg.Padding

	width := clampDimension(maxX-minX, cfg.MaxDimension)
	height := clampDimension(maxY-minY, cfg.MaxDimension)

	dc := gg.NewContext(width, height)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	dx := -minX
	dy := -minY

	for _, ev := range survivors {
		switch ev.Type {
		case model.DrawEventStroke:
			var p model.StrokePayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil || deleted[p.StrokeID] {
				continue
			}
			drawStroke(dc, p, dx, dy)
		case model.DrawEventShape:
			var p model.ShapePayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil || deleted[p.StrokeID] {
				continue
			}
			drawShape(dc, p, dx, dy)
		case model.DrawEventText:
			var p model.TextPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil || deleted[p.StrokeID] {
				continue
			}
			drawText(dc, p, dx, dy)
		}
	}

	data, err := encodePNG(dc.Image())
	if err != nil {
		return nil, err
	}

	return &Result{ImageData: data, OffsetX: minX, OffsetY: minY}, nil
}

func afterLastClear(events []model.DrawEvent) []model.DrawEvent {
	lastClear := -1
	for i, ev := range events {
		if ev.Type == model.DrawEventClear {
			lastClear = i
		}
	}
	return events[lastClear+1:]
}

func deletedStrokeIDs(events []model.DrawEvent) map[string]bool {
	deleted := make(map[string]bool)
	for _, ev := range events {
		if ev.Type != model.DrawEventDelete {
			continue
		}
		var p model.DeletePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			continue
		}
		for _, id := range p.StrokeIDs {
			deleted[id] = true
		}
	}
	return deleted
}

func boundSurvivors(events []model.DrawEvent, deleted map[string]bool) (bbox, bool) {
	var b bbox
	for _, ev := range events {
		switch ev.Type {
		case model.DrawEventStroke:
			var p model.StrokePayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil || deleted[p.StrokeID] {
				continue
			}
			for _, pt := range p.Points {
				b.extend(pt.X, pt.Y, p.Width/2)
			}
		case model.DrawEventShape:
			var p model.ShapePayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil || deleted[p.StrokeID] {
				continue
			}
			b.extend(p.Start.X, p.Start.Y, p.Width/2)
			b.extend(p.End.X, p.End.Y, p.Width/2)
		case model.DrawEventText:
			var p model.TextPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil || deleted[p.StrokeID] {
				continue
			}
			w := 0.6 * p.FontSize * float64(len([]rune(p.Text)))
			h := 1.3 * p.FontSize
			b.extend(p.Position.X, p.Position.Y, 0)
			b.extend(p.Position.X+w, p.Position.Y+h, 0)
		}
	}
	return b, b.has
}

func clampDimension(d float64, max int) int {
	if d < 1 {
		return 1
	}
	v := int(math.Ceil(d))
	if v > max {
		return max
	}
	return v
}

func emptyResult() (*Result, error) {
	dc := gg.NewContext(1, 1)
	data, err := encodePNG(dc.Image())
	if err != nil {
		return nil, err
	}
	return &Result{ImageData: data, OffsetX: 0, OffsetY: 0}, nil
}

func drawStroke(dc *gg.Context, p model.StrokePayload, dx, dy float64) {
	r, g, b, a := parseColor(p.Color, p.Opacity)
	dc.SetRGBA(r, g, b, a)
	dc.SetLineWidth(p.Width)

	if len(p.Points) == 1 {
		pt := p.Points[0]
		dc.DrawCircle(pt.X+dx, pt.Y+dy, p.Width/2)
		dc.Fill()
		return
	}

	for i, pt := range p.Points {
		x, y := pt.X+dx, pt.Y+dy
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()
}

func drawShape(dc *gg.Context, p model.ShapePayload, dx, dy float64) {
	r, g, b, a := parseColor(p.Color, p.Opacity)
	dc.SetRGBA(r, g, b, a)
	dc.SetLineWidth(p.Width)

	x0, y0 := p.Start.X+dx, p.Start.Y+dy
	x1, y1 := p.End.X+dx, p.End.Y+dy

	switch p.ShapeType {
	case model.ShapeRectangle:
		dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
		dc.Stroke()
	case model.ShapeEllipse:
		cx, cy := (x0+x1)/2, (y0+y1)/2
		rx, ry := math.Abs(x1-x0)/2, math.Abs(y1-y0)/2
		dc.DrawEllipse(cx, cy, rx, ry)
		dc.Stroke()
	case model.ShapeLine:
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}
}

func drawText(dc *gg.Context, p model.TextPayload, dx, dy float64) {
	r, g, b, a := parseColor(p.Color, 0)
	dc.SetRGBA(r, g, b, a)
	dc.DrawString(p.Text, p.Position.X+dx, p.Position.Y+dy+p.FontSize)
}

// parseColor decodes a "#rrggbb" string into 0..1 float components; an
// unparseable color falls back to black (at the given opacity) rather than failing the
// whole render, since a single bad stroke should not blank the snapshot.
func parseColor(hex string, opacity float64) (r, g, b, a float64) {
	a = 1
	if opacity > 0 {
		a = opacity
	}
	c, ok := parseHexColor(hex)
	if !ok {
		return 0, 0, 0, a
	}
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, a
}

func parseHexColor(s string) (color.RGBA, bool) {
	c := color.RGBA{A: 0xff}
	if len(s) != 7 || s[0] != '#' {
		return c, false
	}
	r, err1 := strconv.ParseUint(s[1:3], 16, 8)
	g, err2 := strconv.ParseUint(s[3:5], 16, 8)
	bl, err3 := strconv.ParseUint(s[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return c, false
	}
	c.R, c.G, c.B = uint8(r), uint8(g), uint8(bl)
	return c, true
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
