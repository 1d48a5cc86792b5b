// Package icon turns the raw icon extracted from an IPA or APK into a data URL
// the dashboard can display. It recognises common image signatures, strips the
// CgBI chunk Xcode inserts into "optimized" PNGs, and falls back to a
// placeholder when nothing usable is available.
package icon

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
	mimeGIF  = "image/gif"
	mimeWebP = "image/webp"
	mimeICO  = "image/x-icon"
	mimeBMP  = "image/bmp"
)

var (
	pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	cgbiChunk    = []byte("CgBI")

	// ErrEmpty is returned when the icon value decodes to zero bytes.
	ErrEmpty = errors.New("icon buffer is empty")
	// ErrUnsupported is returned for icon values of an unknown Go type.
	ErrUnsupported = errors.New("icon format not supported")
)

// Fallback placeholders keyed by platform.
const (
	FallbackIOS     = "https://via.placeholder.com/60x60/3b82f6/ffffff?text=iOS"
	FallbackAndroid = "https://via.placeholder.com/60x60/10b981/ffffff?text=AND"
)

// DetectFormat inspects magic bytes and returns a MIME type, defaulting to PNG.
func DetectFormat(b []byte) string {
	switch {
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8:
		return mimeJPEG
	case len(b) >= 4 && b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47:
		return mimePNG
	case len(b) >= 3 && b[0] == 0x47 && b[1] == 0x49 && b[2] == 0x46:
		return mimeGIF
	case len(b) >= 4 && b[0] == 0x52 && b[1] == 0x49 && b[2] == 0x46 && b[3] == 0x46:
		return mimeWebP
	case len(b) >= 4 && b[0] == 0x00 && b[1] == 0x00 && b[2] == 0x01 && b[3] == 0x00:
		return mimeICO
	case len(b) >= 2 && b[0] == 0x42 && b[1] == 0x4D:
		return mimeBMP
	}
	return mimePNG
}

// chunk is one PNG chunk located inside a buffer: [start, end) spans the
// length field, type, data and CRC.
type chunk struct {
	typ        []byte
	start, end int
}

// chunks walks the PNG chunk stream after the signature. ok is false when the
// stream is truncated or a length runs past the buffer.
func chunks(b []byte) (out []chunk, ok bool) {
	offset := len(pngSignature)
	for offset < len(b) {
		if len(b)-offset < 12 {
			return out, false
		}
		length := int(binary.BigEndian.Uint32(b[offset : offset+4]))
		end := offset + 12 + length
		if length < 0 || end > len(b) || end < offset {
			return out, false
		}
		out = append(out, chunk{typ: b[offset+4 : offset+8], start: offset, end: end})
		offset = end
	}
	return out, true
}

// IsVendorOptimizedPNG reports whether b is a PNG carrying a CgBI chunk.
func IsVendorOptimizedPNG(b []byte) bool {
	if len(b) < len(pngSignature) || !bytes.Equal(b[:len(pngSignature)], pngSignature) {
		return false
	}
	// A truncated tail does not hide a CgBI chunk found before it.
	cs, _ := chunks(b)
	for _, c := range cs {
		if bytes.Equal(c.typ, cgbiChunk) {
			return true
		}
	}
	return false
}

// Repair strips CgBI chunks and keeps every other chunk byte for byte in the
// original order. It returns b unchanged when b is not vendor optimized or its
// chunk stream cannot be walked.
func Repair(b []byte) []byte {
	if !IsVendorOptimizedPNG(b) {
		return b
	}
	cs, ok := chunks(b)
	if !ok {
		return b
	}
	out := make([]byte, 0, len(b))
	out = append(out, b[:len(pngSignature)]...)
	for _, c := range cs {
		if bytes.Equal(c.typ, cgbiChunk) {
			continue
		}
		out = append(out, b[c.start:c.end]...)
	}
	return out
}

// ToDataURL normalises an icon value into a data URL. raw may be a data URL
// string, a base64 string or raw bytes.
func ToDataURL(raw any) (string, error) {
	var buf []byte
	switch v := raw.(type) {
	case nil:
		return "", ErrEmpty
	case []byte:
		buf = v
	case string:
		decoded, err := decodeString(v)
		if err != nil {
			return "", err
		}
		buf = decoded
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupported, raw)
	}
	if len(buf) == 0 {
		return "", ErrEmpty
	}
	buf = Repair(buf)
	return "data:" + DetectFormat(buf) + ";base64," + base64.StdEncoding.EncodeToString(buf), nil
}

func decodeString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, errors.New("malformed data url")
		}
		s = s[comma+1:]
	}
	if s == "" {
		return nil, ErrEmpty
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some parsers hand back unpadded base64.
		if b2, err2 := base64.RawStdEncoding.DecodeString(s); err2 == nil {
			return b2, nil
		}
		return nil, fmt.Errorf("decode base64 icon: %w", err)
	}
	return b, nil
}

// Fallback returns the placeholder icon for platform ("ios" or "android").
func Fallback(platform string) string {
	if strings.EqualFold(platform, "ios") {
		return FallbackIOS
	}
	return FallbackAndroid
}
