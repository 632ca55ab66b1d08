package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultMaxDimension is the default maximum dimension for downscaling
// receipt images before OCR. High quality requests skip downscaling.
const DefaultMaxDimension = 1024

// ResizeConfig holds configuration for image resizing
type ResizeConfig struct {
	MaxDimension int    // Maximum width or height (default 1024)
	Quality      int    // JPEG quality 1-100 (default 85)
	OutputFormat string // "png" or "jpeg" (default: keep original)
}

// DefaultResizeConfig returns the default resize configuration
func DefaultResizeConfig() *ResizeConfig {
	return &ResizeConfig{
		MaxDimension: DefaultMaxDimension,
		Quality:      85,
	}
}

// Downscale shrinks an image to the max dimension while keeping its aspect
// ratio. Images already within bounds, or bytes that do not decode as an
// image, are returned unchanged — receipt capture payloads are noisy and the
// OCR engine makes the final call.
func Downscale(imageData []byte, config *ResizeConfig) []byte {
	if config == nil {
		config = DefaultResizeConfig()
	}

	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return imageData
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= config.MaxDimension && height <= config.MaxDimension {
		return imageData
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = config.MaxDimension
		newHeight = int(float64(height) * float64(config.MaxDimension) / float64(width))
	} else {
		newHeight = config.MaxDimension
		newWidth = int(float64(width) * float64(config.MaxDimension) / float64(height))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	encoded, err := encode(dst, config, format)
	if err != nil {
		return imageData
	}
	return encoded
}

func encode(img image.Image, config *ResizeConfig, originalFormat string) ([]byte, error) {
	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = originalFormat
	}

	var buf bytes.Buffer
	var err error
	switch outputFormat {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: config.Quality})
	case "png":
		err = png.Encode(&buf, img)
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
