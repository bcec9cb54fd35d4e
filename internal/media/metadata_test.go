package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func newTestImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.Black)
	img.Set(1, 0, color.White)
	img.Set(2, 2, color.RGBA{R: 200, A: 255})
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

// withAPP1 splices a fake EXIF segment after the JPEG SOI marker.
func withAPP1(data []byte) []byte {
	payload := append([]byte("Exif\x00\x00"), []byte("GPS 51.5N 0.12W")...)
	seg := []byte{0xFF, 0xE1, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
	seg = append(seg, payload...)
	out := append([]byte{}, data[:2]...)
	out = append(out, seg...)
	return append(out, data[2:]...)
}

func TestStripJPEG(t *testing.T) {
	data := withAPP1(encodeJPEG(t, newTestImage()))
	if !bytes.Contains(data, []byte("GPS")) {
		t.Fatal("fixture lost its EXIF segment")
	}

	out, err := StripMetadata(data, "image/jpeg")
	if err != nil {
		t.Fatalf("StripMetadata failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
	if bytes.Contains(out, []byte("GPS")) {
		t.Error("EXIF payload survived re-encoding")
	}
}

func TestStripPNG(t *testing.T) {
	out, err := StripMetadata(encodePNG(t, newTestImage()), "image/png")
	if err != nil {
		t.Fatalf("StripMetadata failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("width = %d", img.Bounds().Dx())
	}
}

func TestStripPassthrough(t *testing.T) {
	data := []byte("GIF89a....")
	out, err := StripMetadata(data, "image/gif")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Error("gif should pass through unchanged")
	}
}

func TestStripCorrupt(t *testing.T) {
	if _, err := StripMetadata([]byte("\xFF\xD8garbage"), "image/jpeg"); err == nil {
		t.Error("expected decode error for corrupt jpeg")
	}
	if _, err := StripMetadata([]byte("\x89PNG\r\n\x1a\nxx"), "image/png"); err == nil {
		t.Error("expected decode error for corrupt png")
	}
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", encodePNG(t, newTestImage()), "image/png"},
		{"jpeg", encodeJPEG(t, newTestImage()), "image/jpeg"},
		{"gif", []byte("GIF89a\x01\x00\x01\x00"), "image/gif"},
		{"text", []byte("hello world"), "text/plain"},
		{"pdf", []byte("%PDF-1.7\n"), "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectType(tt.data)
			if got != tt.want {
				t.Errorf("DetectType = %q, want %q", got, tt.want)
			}
			if IsImage(got) != (tt.want[:6] == "image/") {
				t.Errorf("IsImage(%q) mismatch", got)
			}
		})
	}
}
