package image

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestRecompress(t *testing.T) {
	p := NewProcessor(80)

	out, err := p.Recompress(testPNG(t))
	if err != nil {
		t.Fatalf("recompress: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
}

func TestRecompressInvalidData(t *testing.T) {
	p := NewProcessor(80)

	if _, err := p.Recompress([]byte("not an image")); err == nil {
		t.Fatal("expected error for invalid image data")
	}
}
