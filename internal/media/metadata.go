// Package media inspects and cleans profile pictures before they are
// forwarded to the backend.
package media

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"mime"
	"net/http"
	"strings"
)

// MaxPictureSize is the largest profile picture accepted, in bytes.
const MaxPictureSize = 5 << 20

// DetectType sniffs the media type of data, without parameters.
func DetectType(data []byte) string {
	ct := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

// IsImage reports whether contentType names an image.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// StripMetadata re-encodes images to remove EXIF, GPS, and other metadata.
// For other types (GIF, WebP, BMP) data is returned unchanged.
func StripMetadata(data []byte, contentType string) ([]byte, error) {
	switch contentType {
	case "image/jpeg":
		return stripJPEG(data)
	case "image/png":
		return stripPNG(data)
	default:
		return data, nil
	}
}

func stripJPEG(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("media: decode jpeg: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("media: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func stripPNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("media: decode png: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("media: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
