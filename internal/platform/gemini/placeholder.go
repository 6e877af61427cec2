package gemini

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
)

// Placeholder geometry matches generated scene art.
const (
	placeholderWidth  = 1024
	placeholderHeight = 576
)

// placeholderPalette holds the soft tints cycled by scene order, so each
// scene's placeholder looks distinct while staying child friendly.
var placeholderPalette = []color.RGBA{
	{R: 255, G: 214, B: 224, A: 255}, // rose
	{R: 214, G: 230, B: 255, A: 255}, // sky
	{R: 214, G: 255, B: 224, A: 255}, // mint
	{R: 255, G: 240, B: 204, A: 255}, // honey
	{R: 234, G: 218, B: 255, A: 255}, // lilac
	{R: 204, G: 244, B: 255, A: 255}, // ice
}

// placeholderJPEG renders the stand-in illustration used when every
// generation attempt for a scene fails. Rendering is pure, so a given
// scene order always produces the same bytes.
func placeholderJPEG(sceneOrder int) []byte {
	if sceneOrder < 0 {
		sceneOrder = 0
	}
	tint := placeholderPalette[sceneOrder%len(placeholderPalette)]
	cream := color.RGBA{R: 255, G: 250, B: 245, A: 255}

	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))

	// Vertical wash from cream down into the scene tint.
	for y := 0; y < placeholderHeight; y++ {
		row := blend(cream, tint, 0.6*float64(y)/float64(placeholderHeight))
		for x := 0; x < placeholderWidth; x++ {
			img.SetRGBA(x, y, row)
		}
	}

	// Double decorative frame in the house colors.
	drawFrame(img, 30, 10, color.RGBA{R: 255, G: 182, B: 193, A: 255})
	drawFrame(img, 50, 5, color.RGBA{R: 200, G: 150, B: 200, A: 255})

	var buf bytes.Buffer
	// Encoding into a memory buffer cannot fail.
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	return buf.Bytes()
}

// blend mixes two colors, t=0 giving a and t=1 giving b.
func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// drawFrame paints a rectangular ring inset from the image edge.
func drawFrame(img *image.RGBA, inset, thickness int, c color.RGBA) {
	bounds := img.Bounds()
	outer := image.Rect(bounds.Min.X+inset, bounds.Min.Y+inset, bounds.Max.X-inset, bounds.Max.Y-inset)
	inner := outer.Inset(thickness)

	for y := outer.Min.Y; y < outer.Max.Y; y++ {
		for x := outer.Min.X; x < outer.Max.X; x++ {
			if x < inner.Min.X || x >= inner.Max.X || y < inner.Min.Y || y >= inner.Max.Y {
				img.SetRGBA(x, y, c)
			}
		}
	}
}
