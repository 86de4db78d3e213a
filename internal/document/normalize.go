package document

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"
)

const (
	claheClipLimit = 2.0
	claheGridSize  = 8
)

// Normalize prepares one raster image for extraction: orientation is fixed
// from EXIF metadata, the image is converted to RGB, downscaled to the
// long-side cap if needed (never upscaled), and local contrast is enhanced
// on the luminance channel. The result is written next to the source with a
// _prepped suffix and its path returned.
func Normalize(path string, maxLongSide int) (string, error) {
	slog.Info("preprocess_start", "image", path)

	img, err := openImage(path)
	if err != nil {
		return "", err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if long := max(w, h); long > maxLongSide {
		if w >= h {
			img = imaging.Resize(img, maxLongSide, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxLongSide, imaging.Lanczos)
		}
		scaled := img.Bounds()
		slog.Info("image_resized",
			"original_size", fmt.Sprintf("%dx%d", w, h),
			"scaled_size", fmt.Sprintf("%dx%d", scaled.Dx(), scaled.Dy()),
		)
	}

	enhanced := claheLuminance(img, claheClipLimit, claheGridSize)

	outPath := preppedPath(path)
	if err := imaging.Save(enhanced, outPath); err != nil {
		return "", fmt.Errorf("saving normalized image: %w", err)
	}

	slog.Info("preprocess_complete", "output", outPath)
	return outPath, nil
}

// openImage decodes the file honoring EXIF orientation. HEIC/HEIF (common on
// iPhones) is decoded explicitly since Go's image registry doesn't know it.
func openImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	if isHEIC(data) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// preppedPath derives the output path: same directory, _prepped suffix.
// HEIC sources switch to .png since nothing encodes HEIC back.
func preppedPath(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	switch strings.ToLower(ext) {
	case ".heic", ".heif", "":
		ext = ".png"
	}
	return stem + "_prepped" + ext
}

// isHEIC sniffs the ftyp box brands HEIC containers start with.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
