package imagerender

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// GrayPath is where the grayscale variant of a cached raster lives.
func GrayPath(path string) string {
	return strings.TrimSuffix(path, ".png") + "-gray.png"
}

// GrayVariant returns the path of a grayscale copy of the raster at path,
// creating it on first use. The original raster is never modified, so
// repeated or concurrent calls all observe the same result.
func GrayVariant(path string) (string, error) {
	dst := GrayPath(path)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}

	if err := writePNG(dst, toGray(img)); err != nil {
		return "", fmt.Errorf("write grayscale variant: %w", err)
	}
	log.Debug().Str("src", path).Str("dst", dst).Msg("created grayscale variant")
	return dst, nil
}
