package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kdemchenko/emocam/internal/detector"
	"github.com/kdemchenko/emocam/internal/emotion"
)

// Op identifies a drawing command.
type Op int

const (
	// OpClear wipes the overlay layer. Emitted exactly once, first.
	OpClear Op = iota
	// OpBox draws a bounding box outline.
	OpBox
	// OpStrip draws a filled label strip with text, above or below its box.
	OpStrip
	// OpDots draws landmark points as small filled circles.
	OpDots
)

// Command is one drawing instruction. Plan produces the full command list for
// a frame; Render rasterizes it.
type Command struct {
	Op     Op
	Box    detector.Box
	Text   string
	Points []detector.Point
	Below  bool
}

var (
	boxColor   = color.RGBA{R: 0, G: 200, B: 90, A: 255}
	stripColor = color.RGBA{R: 0, G: 0, B: 0, A: 170}
	textColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	dotColor   = color.RGBA{R: 90, G: 180, B: 255, A: 255}
)

const (
	boxThickness = 2
	stripHeight  = 16
	dotRadius    = 2
)

// Plan turns a capped detection list into drawing commands. It is a pure
// function: no drawing happens here. The list always starts with a single
// OpClear; each detection contributes one box, one confidence strip, its
// landmark dots, and an emotion strip only when emotions are enabled and the
// face's top expression clears the highlight threshold.
func Plan(detections []detector.Detection, emotionEnabled bool) []Command {
	cmds := make([]Command, 0, 1+len(detections)*4)
	cmds = append(cmds, Command{Op: OpClear})

	if len(detections) == 0 {
		cmds = append(cmds, Command{
			Op:   OpStrip,
			Box:  detector.Box{X: 8, Y: 8 + stripHeight, Width: 140},
			Text: "no faces detected",
		})
		return cmds
	}

	for i, d := range detections {
		cmds = append(cmds, Command{Op: OpBox, Box: d.Box})

		label := fmt.Sprintf("#%d %d%%", i+1, int(math.Round(d.Confidence*100)))
		cmds = append(cmds, Command{Op: OpStrip, Box: d.Box, Text: label})

		if len(d.Landmarks) > 0 {
			cmds = append(cmds, Command{Op: OpDots, Points: d.Landmarks})
		}

		if emotionEnabled && emotion.Highlight(d.Expressions) {
			top, prob := emotion.TopExpression(d.Expressions)
			text := fmt.Sprintf("%s %d%%", top, int(math.Round(prob*100)))
			cmds = append(cmds, Command{Op: OpStrip, Box: d.Box, Text: text, Below: true})
		}
	}

	return cmds
}

// Render rasterizes commands onto dst. dst is the transparent overlay layer
// and must already match the frame's native pixel dimensions; OpClear resets
// it so nothing accumulates across frames.
func Render(dst *image.RGBA, cmds []Command) {
	for _, cmd := range cmds {
		switch cmd.Op {
		case OpClear:
			draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case OpBox:
			drawBoxOutline(dst, cmd.Box)
		case OpStrip:
			drawStrip(dst, cmd.Box, cmd.Text, cmd.Below)
		case OpDots:
			for _, p := range cmd.Points {
				drawDot(dst, p)
			}
		}
	}
}

// Composite draws the overlay over the frame into a fresh image sized to the
// frame's native dimensions.
func Composite(frame image.Image, layer *image.RGBA) *image.RGBA {
	out := image.NewRGBA(frame.Bounds())
	draw.Draw(out, out.Bounds(), frame, frame.Bounds().Min, draw.Src)
	draw.Draw(out, out.Bounds(), layer, layer.Bounds().Min, draw.Over)
	return out
}

func drawBoxOutline(dst *image.RGBA, b detector.Box) {
	x0, y0 := int(b.X), int(b.Y)
	x1, y1 := int(b.X+b.Width), int(b.Y+b.Height)

	for t := 0; t < boxThickness; t++ {
		fillRect(dst, x0, y0+t, x1, y0+t+1, boxColor)
		fillRect(dst, x0, y1-t-1, x1, y1-t, boxColor)
		fillRect(dst, x0+t, y0, x0+t+1, y1, boxColor)
		fillRect(dst, x1-t-1, y0, x1-t, y1, boxColor)
	}
}

func drawStrip(dst *image.RGBA, b detector.Box, text string, below bool) {
	x0 := int(b.X)
	x1 := int(b.X + b.Width)

	var y0 int
	if below {
		y0 = int(b.Y + b.Height)
	} else {
		y0 = int(b.Y) - stripHeight
	}
	y1 := y0 + stripHeight

	fillRect(dst, x0, y0, x1, y1, stripColor)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x0+3, y0+stripHeight-4),
	}
	drawer.DrawString(text)
}

func drawDot(dst *image.RGBA, p detector.Point) {
	cx, cy := int(p.X), int(p.Y)
	for dy := -dotRadius; dy <= dotRadius; dy++ {
		for dx := -dotRadius; dx <= dotRadius; dx++ {
			if dx*dx+dy*dy <= dotRadius*dotRadius {
				setClipped(dst, cx+dx, cy+dy, dotColor)
			}
		}
	}
}

func fillRect(dst *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	r := image.Rect(x0, y0, x1, y1).Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

func setClipped(dst *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.SetRGBA(x, y, c)
	}
}
