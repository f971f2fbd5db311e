package attendance

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestEncodePNG(t *testing.T) {
	png, err := encodePNG("https://app.example.com/staff/verify?token=abc", 400)
	if err != nil {
		t.Fatalf("encodePNG: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestPNGDataURI(t *testing.T) {
	png, err := encodePNG("abc", 200)
	if err != nil {
		t.Fatalf("encodePNG: %v", err)
	}
	uri := pngDataURI(png)
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("data URI prefix = %q", uri[:min(len(uri), 30)])
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("decode data URI body: %v", err)
	}
	if !bytes.Equal(decoded, png) {
		t.Error("data URI body does not round-trip to the PNG bytes")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
