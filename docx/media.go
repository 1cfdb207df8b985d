package docx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type picture struct {
	data   []byte
	ext    string
	width  int
	height int
}

// decodePicture keeps PNG, JPEG and GIF as they are. Other formats the
// decoders know (webp, bmp, tiff) are converted to PNG since Word may not
// render them.
func decodePicture(data []byte) (picture, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return picture{}, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return picture{}, fmt.Errorf("image has no size (%dx%d)", cfg.Width, cfg.Height)
	}

	switch format {
	case "png", "jpeg", "gif":
		// Word reads these directly, but DecodeConfig only looks at the
		// header; a truncated body must still fail here.
		if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
			return picture{}, fmt.Errorf("decode image: %w", err)
		}
		return picture{data: data, ext: format, width: cfg.Width, height: cfg.Height}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return picture{}, fmt.Errorf("decode %s image: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return picture{}, fmt.Errorf("convert %s to png: %w", format, err)
	}
	b := img.Bounds()
	return picture{data: buf.Bytes(), ext: "png", width: b.Dx(), height: b.Dy()}, nil
}
