package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"sentinel/internal/media"
	"sentinel/internal/model"
)

// Reference frame assumed for bounding boxes when the analysis reports no frame size.
const (
	ReferenceWidth  = 640
	ReferenceHeight = 480
)

const (
	boxThickness = 3
	labelHeight  = 16
)

// ErrNotImage is returned when annotating a video upload.
var ErrNotImage = errors.New("upload is not an image")

var (
	colorCritical = color.RGBA{R: 220, G: 38, B: 38, A: 255}
	colorHigh     = color.RGBA{R: 234, G: 88, B: 12, A: 255}
	colorMedium   = color.RGBA{R: 234, G: 179, B: 8, A: 255}
	colorNormal   = color.RGBA{R: 22, G: 163, B: 74, A: 255}
)

// Annotate draws the bounding boxes of result onto the image in src and returns a PNG.
// Boxes are scaled from the analysis frame to the image size.
func Annotate(src []byte, mimeType string, result *model.AnomalyResult) ([]byte, error) {
	if media.IsVideo(mimeType) {
		return nil, ErrNotImage
	}
	if result == nil {
		return nil, errors.New("no analysis results to draw")
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)

	frameWidth, frameHeight := FrameSize(result.Metadata)
	for _, box := range result.BoundingBoxes {
		rect := ScaleBox(box.BBox, frameWidth, frameHeight, width, height)
		if rect.Empty() {
			continue
		}
		c := boxColor(box)
		drawRect(canvas, rect, c)
		drawLabel(canvas, rect, fmt.Sprintf("%s %.0f%%", box.ClassName, box.Confidence*100), c)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

// FrameSize returns the analysis frame size, falling back to the 640x480 reference frame.
func FrameSize(meta model.ResultMetadata) (int, int) {
	if meta.FrameWidth > 0 && meta.FrameHeight > 0 {
		return meta.FrameWidth, meta.FrameHeight
	}
	return ReferenceWidth, ReferenceHeight
}

// ScaleBox maps an [x1, y1, x2, y2] box in frame coordinates to image pixels,
// clipped to the image.
func ScaleBox(bbox [4]float64, frameWidth, frameHeight, width, height int) image.Rectangle {
	sx := float64(width) / float64(frameWidth)
	sy := float64(height) / float64(frameHeight)

	rect := image.Rect(
		int(math.Round(bbox[0]*sx)),
		int(math.Round(bbox[1]*sy)),
		int(math.Round(bbox[2]*sx)),
		int(math.Round(bbox[3]*sy)),
	)
	return rect.Intersect(image.Rect(0, 0, width, height))
}

func boxColor(box model.BoundingBox) color.RGBA {
	if !box.IsAnomaly {
		return colorNormal
	}
	switch model.ClassifySeverity(box.Priority) {
	case model.SeverityCritical:
		return colorCritical
	case model.SeverityHigh:
		return colorHigh
	case model.SeverityMedium:
		return colorMedium
	default:
		return colorNormal
	}
}

func drawRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	t := min(boxThickness, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, edge := range edges {
		draw.Draw(dst, edge, src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a filled band above the box, or inside it at the top edge.
func drawLabel(dst *image.RGBA, box image.Rectangle, text string, c color.Color) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()

	top := box.Min.Y - labelHeight
	if top < 0 {
		top = box.Min.Y
	}
	band := image.Rect(box.Min.X, top, box.Min.X+textWidth+4, top+labelHeight).Intersect(dst.Bounds())
	draw.Draw(dst, band, image.NewUniform(c), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(band.Min.X+2, top+labelHeight-4),
	}
	drawer.DrawString(text)
}
