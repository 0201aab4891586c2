package imaging

import (
	"AttendanceBackend/internal/entity"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	DefaultJPEGQuality = 85
	MaxFramePixels     = 4096 * 4096
	boxThickness       = 2
)

var (
	ErrEmptyImage    = errors.New("empty image payload")
	ErrFrameTooLarge = errors.New("image exceeds frame size limit")

	RecognizedColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	UnknownColor    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// DecodeFrame decodes jpeg, png, bmp or webp bytes into a 3-channel BGR frame.
// Alpha is dropped and grayscale is expanded.
func DecodeFrame(data []byte) (entity.Frame, error) {
	if len(data) == 0 {
		return entity.Frame{}, ErrEmptyImage
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return entity.Frame{}, fmt.Errorf("decode image header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxFramePixels {
		return entity.Frame{}, fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return entity.Frame{}, fmt.Errorf("decode image: %w", err)
	}

	frame := FromImage(img)
	if frame.Empty() {
		return entity.Frame{}, fmt.Errorf("decoded %s image has no pixels", format)
	}
	return frame, nil
}

// FromImage converts img to a BGR frame. Colors are taken unpremultiplied,
// so translucent pixels keep their hue.
func FromImage(img image.Image) entity.Frame {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	src := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(src, src.Bounds(), img, bounds.Min, draw.Src)

	pix := make([]byte, width*height*3)
	for i, j := 0, 0; j < len(pix); i, j = i+4, j+3 {
		pix[j], pix[j+1], pix[j+2] = src.Pix[i+2], src.Pix[i+1], src.Pix[i]
	}

	return entity.Frame{
		Width:    width,
		Height:   height,
		Channels: 3,
		Order:    entity.ChannelOrderBGR,
		Pix:      pix,
	}
}

func ToImage(frame entity.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	if !frame.IsColor() {
		return img
	}

	for i, j := 0, 0; i+2 < len(frame.Pix); i, j = i+3, j+4 {
		if frame.Order == entity.ChannelOrderBGR {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2] = frame.Pix[i+2], frame.Pix[i+1], frame.Pix[i]
		} else {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2] = frame.Pix[i], frame.Pix[i+1], frame.Pix[i+2]
		}
		img.Pix[j+3] = 0xff
	}
	return img
}

// Annotate draws one box per detection on a copy of frame, green when the
// face was recognized and red otherwise, labelled with the student id or
// "Unknown".
func Annotate(frame entity.Frame, detections []entity.Detection) *image.RGBA {
	img := ToImage(frame)
	for _, d := range detections {
		c := UnknownColor
		if d.Recognized {
			c = RecognizedColor
		}
		rect := image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
		drawRect(img, rect, c, boxThickness)
		drawLabel(img, d.Label(), d.X, max(d.Y-10, 20), c)
	}
	return img
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func drawRect(img *image.RGBA, rect image.Rectangle, c color.Color, thickness int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness),
		image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y),
		image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, edge := range edges {
		draw.Draw(img, edge.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}
}

func drawLabel(img *image.RGBA, label string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}
