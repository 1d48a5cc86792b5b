package icon

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"strings"
	"testing"
)

func pngChunk(typ string, data []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint32(len(data)))
	b.WriteString(typ)
	b.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	binary.Write(&b, binary.BigEndian, crc.Sum32())
	return b.Bytes()
}

func buildPNG(chunks ...[]byte) []byte {
	out := append([]byte{}, pngSignature...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

var (
	ihdr = pngChunk("IHDR", []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0})
	idat = pngChunk("IDAT", []byte{0x78, 0x9c, 0x63, 0x00, 0x01})
	iend = pngChunk("IEND", nil)
	cgbi = pngChunk("CgBI", []byte{0x50, 0x00, 0x20, 0x02})
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want string
	}{
		{"png", pngSignature, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"gif", []byte("GIF89a"), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"ico", []byte{0x00, 0x00, 0x01, 0x00}, "image/x-icon"},
		{"bmp", []byte("BM\x00\x00"), "image/bmp"},
		{"unknown", []byte{0x01, 0x02, 0x03, 0x04}, "image/png"},
		{"empty", nil, "image/png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFormat(tc.in); got != tc.want {
				t.Errorf("DetectFormat = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsVendorOptimizedPNG(t *testing.T) {
	if !IsVendorOptimizedPNG(buildPNG(cgbi, ihdr, idat, iend)) {
		t.Errorf("CgBI PNG not detected")
	}
	if IsVendorOptimizedPNG(buildPNG(ihdr, idat, iend)) {
		t.Errorf("standard PNG detected as optimized")
	}
	if IsVendorOptimizedPNG(append([]byte{0xFF, 0xD8}, cgbi...)) {
		t.Errorf("non-PNG with CgBI bytes detected as optimized")
	}
}

func TestRepairStripsCgBI(t *testing.T) {
	in := buildPNG(cgbi, ihdr, idat, iend)
	got := Repair(in)
	want := buildPNG(ihdr, idat, iend)
	if !bytes.Equal(got, want) {
		t.Fatalf("Repair result differs:\n got %x\nwant %x", got, want)
	}
	if IsVendorOptimizedPNG(got) {
		t.Fatalf("repaired PNG still optimized")
	}
}

func TestRepairWithoutMarkerReturnsIdenticalBuffer(t *testing.T) {
	inputs := [][]byte{
		buildPNG(ihdr, idat, iend),
		{0xFF, 0xD8, 0xFF, 0xDB},
		nil,
	}
	for _, in := range inputs {
		orig := append([]byte(nil), in...)
		got := Repair(in)
		if !bytes.Equal(got, orig) {
			t.Errorf("Repair changed buffer %x -> %x", orig, got)
		}
	}
}

func TestRepairTruncatedStreamFailsOpen(t *testing.T) {
	in := buildPNG(cgbi, ihdr, idat)
	in = append(in, 0x00, 0x00, 0xFF, 0xFF, 'I', 'E') // length past end
	got := Repair(in)
	if !bytes.Equal(got, in) {
		t.Fatalf("truncated stream should be returned unchanged")
	}
}

func TestToDataURL(t *testing.T) {
	png := buildPNG(cgbi, ihdr, idat, iend)
	repaired := base64.StdEncoding.EncodeToString(buildPNG(ihdr, idat, iend))

	fromBytes, err := ToDataURL(png)
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if fromBytes != "data:image/png;base64,"+repaired {
		t.Fatalf("unexpected data url %q", fromBytes)
	}

	b64 := base64.StdEncoding.EncodeToString(png)
	fromB64, err := ToDataURL(b64)
	if err != nil || fromB64 != fromBytes {
		t.Fatalf("base64 input: %q, %v", fromB64, err)
	}

	fromDataURL, err := ToDataURL("data:image/png;base64," + b64)
	if err != nil || fromDataURL != fromBytes {
		t.Fatalf("data url input: %q, %v", fromDataURL, err)
	}

	jpeg, err := ToDataURL([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	if err != nil || !strings.HasPrefix(jpeg, "data:image/jpeg;base64,") {
		t.Fatalf("jpeg: %q, %v", jpeg, err)
	}
}

func TestToDataURLErrors(t *testing.T) {
	if _, err := ToDataURL(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("nil: %v", err)
	}
	if _, err := ToDataURL([]byte{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty bytes: %v", err)
	}
	if _, err := ToDataURL("data:image/png;base64,"); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty data url: %v", err)
	}
	if _, err := ToDataURL("!!not base64!!"); err == nil {
		t.Errorf("expected error for invalid base64")
	}
	if _, err := ToDataURL(42); !errors.Is(err, ErrUnsupported) {
		t.Errorf("int: %v", err)
	}
}

func TestFallback(t *testing.T) {
	if Fallback("ios") != FallbackIOS || Fallback("IOS") != FallbackIOS {
		t.Errorf("ios fallback mismatch")
	}
	if Fallback("android") != FallbackAndroid {
		t.Errorf("android fallback mismatch")
	}
}
