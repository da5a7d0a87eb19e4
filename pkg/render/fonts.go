package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/probe-labeler/probe-labeler/pkg/types"
)

var (
	fontsOnce   sync.Once
	fontRegular *opentype.Font
	fontBold    *opentype.Font
	fontsErr    error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		fontRegular, fontsErr = opentype.Parse(goregular.TTF)
		if fontsErr != nil {
			return
		}
		fontBold, fontsErr = opentype.Parse(gobold.TTF)
	})
	return fontsErr
}

// newFace returns a face of the given point size rasterised at dpi. The caller
// must Close it.
func newFace(weight types.FontWeight, size, dpi float64) (font.Face, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("failed to parse fonts: %w", err)
	}
	f := fontBold
	if weight == types.FontNormal {
		f = fontRegular
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
}
