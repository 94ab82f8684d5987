package render

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"earth-timelapse/internal/imagery"
	"earth-timelapse/internal/timeline"
)

// Stretch is the fixed linear mapping from reflectance to display range.
// Values at or below Min map to 0, at or above Max to 255.
type Stretch struct {
	Min float32
	Max float32
}

// DefaultStretch matches the service's true-color visualization range for
// land scenes.
var DefaultStretch = Stretch{Min: 0, Max: 0.3}

// Default label styling, constant across all frames so playback doesn't
// jitter. Position follows the original layout: 3% from the left, 5% from
// the top.
const (
	DefaultFontSize = 30.0

	labelMarginXPct = 0.03
	labelMarginYPct = 0.05
)

// Frame is one display-ready raster plus its interval, ordered by interval
// start ascending through the whole pipeline.
type Frame struct {
	Image    *image.RGBA
	Interval timeline.Interval
}

// Options configures the renderer. Height is derived from Width: 16:9
// landscape by default, 9:16 when Vertical is set. Dimensions are rounded
// down to even values for encoder compatibility.
type Options struct {
	Width    int
	Vertical bool
	Stretch  Stretch
	FontSize float64
}

// Renderer rasterizes smoothed composites into fixed-size labelled frames.
// Rendering is deterministic: the same composite and label always produce
// identical pixels.
type Renderer struct {
	width   int
	height  int
	stretch Stretch
	face    font.Face
}

// NewRenderer creates a renderer for the given output geometry. The label
// font is compiled in, so frames look identical on every machine.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Width <= 0 {
		return nil, fmt.Errorf("output width must be positive, got %d", opts.Width)
	}

	width := opts.Width &^ 1
	var height int
	if opts.Vertical {
		height = (width * 16 / 9) &^ 1
	} else {
		height = (width * 9 / 16) &^ 1
	}

	stretch := opts.Stretch
	if stretch.Max <= stretch.Min {
		stretch = DefaultStretch
	}

	size := opts.FontSize
	if size <= 0 {
		size = DefaultFontSize
	}

	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}

	return &Renderer{
		width:   width,
		height:  height,
		stretch: stretch,
		face:    face,
	}, nil
}

// Size returns the output frame dimensions.
func (r *Renderer) Size() (width, height int) {
	return r.width, r.height
}

// RenderFrame converts one smoothed composite into a labelled output frame:
// linear stretch to 8-bit, deterministic scale with center-crop to the
// target aspect, then the interval label burned in at a fixed position.
func (r *Renderer) RenderFrame(c *imagery.Composite) (Frame, error) {
	if c == nil {
		return Frame{}, fmt.Errorf("cannot render nil composite")
	}
	if c.NoData {
		return Frame{}, fmt.Errorf("cannot render no-data composite for %s", c.Interval.Label)
	}
	if err := c.Validate(); err != nil {
		return Frame{}, fmt.Errorf("invalid composite for %s: %w", c.Interval.Label, err)
	}

	src := r.stretchToRGBA(c)
	dst := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	r.scaleAndCrop(dst, src)
	r.drawLabel(dst, c.Interval.Label)

	return Frame{Image: dst, Interval: c.Interval}, nil
}

// stretchToRGBA applies the per-band linear stretch at source resolution.
func (r *Renderer) stretchToRGBA(c *imagery.Composite) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	span := r.stretch.Max - r.stretch.Min

	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			offset := img.PixOffset(x, y)
			img.Pix[offset+0] = stretchValue(c.At(imagery.BandRed, x, y), r.stretch.Min, span)
			img.Pix[offset+1] = stretchValue(c.At(imagery.BandGreen, x, y), r.stretch.Min, span)
			img.Pix[offset+2] = stretchValue(c.At(imagery.BandBlue, x, y), r.stretch.Min, span)
			img.Pix[offset+3] = 0xff
		}
	}
	return img
}

func stretchValue(v, min, span float32) uint8 {
	scaled := (v - min) / span
	if scaled <= 0 {
		return 0
	}
	if scaled >= 1 {
		return 255
	}
	return uint8(scaled*255 + 0.5)
}

// scaleAndCrop fills dst with src using a cover fit: the source rectangle
// matching the target aspect ratio is center-cropped, then scaled. The crop
// depends only on the dimensions, never on the frame index.
func (r *Renderer) scaleAndCrop(dst *image.RGBA, src *image.RGBA) {
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	dstAspect := float64(r.width) / float64(r.height)
	srcAspect := float64(sw) / float64(sh)

	cropW, cropH := sw, sh
	if srcAspect > dstAspect {
		cropW = int(float64(sh) * dstAspect)
	} else if srcAspect < dstAspect {
		cropH = int(float64(sw) / dstAspect)
	}
	if cropW < 1 {
		cropW = 1
	}
	if cropH < 1 {
		cropH = 1
	}

	x0 := (sw - cropW) / 2
	y0 := (sh - cropH) / 2
	srcRect := image.Rect(x0, y0, x0+cropW, y0+cropH)

	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, srcRect, xdraw.Src, nil)
}

// drawLabel burns the interval label in with a drop shadow for legibility.
func (r *Renderer) drawLabel(dst *image.RGBA, label string) {
	if label == "" {
		return
	}

	x := int(float64(r.width) * labelMarginXPct)
	y := int(float64(r.height)*labelMarginYPct) + r.face.Metrics().Ascent.Ceil()

	shadow := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{0, 0, 0, 180}),
		Face: r.face,
		Dot:  fixed.P(x+2, y+2),
	}
	shadow.DrawString(label)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: r.face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(label)
}

// Close releases the font face.
func (r *Renderer) Close() error {
	if r.face != nil {
		return r.face.Close()
	}
	return nil
}
