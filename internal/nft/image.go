package nft

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/spf13/afero"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	canvasWidth  = 400
	canvasHeight = 300
	lineSpacing  = 2
)

var errOverlayDoesNotFit = errors.New("watermark does not fit image")

var (
	canvasBackground = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	colorWhite       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorGold        = color.RGBA{R: 255, G: 200, B: 0, A: 255}
	colorGrey        = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	colorGreen       = color.RGBA{R: 0, G: 255, B: 100, A: 255}
)

var face = basicfont.Face7x13

// loadRGB decodes an image file and flattens it onto an opaque canvas
func loadRGB(fs afero.Fs, path string) (*image.RGBA, os.FileInfo, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat image: %w", err)
	}

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)

	return dst, info, nil
}

// watermark writes lines at (10,10). Images too small to hold the first
// line are left untouched and reported with errOverlayDoesNotFit.
func watermark(img *image.RGBA, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	need := image.Pt(10+font.MeasureString(face, lines[0]).Ceil(), 10+face.Height)
	if img.Bounds().Dx() < need.X || img.Bounds().Dy() < need.Y {
		return fmt.Errorf("%w: %dx%d", errOverlayDoesNotFit, img.Bounds().Dx(), img.Bounds().Dy())
	}

	y := 10
	for _, line := range lines {
		drawText(img, 10, y, colorWhite, line)
		y += face.Height + lineSpacing
	}
	return nil
}

// productCanvas renders product fields onto a blank canvas
func productCanvas(sectionName, productName, specs string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(canvasBackground), image.Point{}, draw.Src)

	drawText(img, 20, 20, colorGold, "NTRLI' "+sectionName)
	drawText(img, 20, 60, colorWhite, productName)
	drawText(img, 20, 100, colorGrey, specs)
	drawText(img, 20, 150, colorGreen, "Verified Product")

	return img
}

// drawText draws text with its top-left corner at (x, y)
func drawText(dst draw.Image, x, y int, c color.Color, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}

func writePNG(fs afero.Fs, path string, img image.Image) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
