package image

import (
	"bytes"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const defaultFormat = "jpg"

var imageSignatures = map[string][]byte{
	"jpg":  {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
	"bmp":  {0x42, 0x4D},
}

// sniffOrder keeps detection deterministic; longer signatures first.
var sniffOrder = []string{"png", "gif", "webp", "jpg", "bmp"}

// detectFormat picks the artifact extension. It never rejects: the
// quality oracle, not the decoder, decides whether bytes are usable.
func detectFormat(raw []byte, mimeType string) (format string, width, height int) {
	if cfg, name, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil {
		if name == "jpeg" {
			name = "jpg"
		}
		return name, cfg.Width, cfg.Height
	}

	for _, name := range sniffOrder {
		if bytes.HasPrefix(raw, imageSignatures[name]) {
			return name, 0, 0
		}
	}

	if ext := formatFromMime(mimeType); ext != "" {
		return ext, 0, 0
	}
	return defaultFormat, 0, 0
}

func formatFromMime(mimeType string) string {
	sub, ok := strings.CutPrefix(strings.ToLower(mimeType), "image/")
	if !ok {
		return ""
	}
	switch sub {
	case "jpeg", "jpg":
		return "jpg"
	case "png", "gif", "webp", "bmp":
		return sub
	default:
		return ""
	}
}

// splitDataURI separates "data:image/png;base64,<payload>" into mime and payload.
// Input without the marker is returned unchanged as payload.
func splitDataURI(encoded string) (mimeType, payload string) {
	idx := strings.Index(encoded, "base64,")
	if idx < 0 {
		return "", encoded
	}
	header := encoded[:idx]
	payload = encoded[idx+len("base64,"):]
	if rest, ok := strings.CutPrefix(header, "data:"); ok {
		mimeType = strings.TrimSuffix(rest, ";")
	}
	return mimeType, payload
}
