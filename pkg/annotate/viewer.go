package annotate

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	"github.com/probe-labeler/probe-labeler/internal/utils"
)

// SystemViewer writes the figure to a temporary PNG and opens it with the
// desktop's default image viewer.
type SystemViewer struct {
	Dir string // empty uses the OS temp dir
}

func (v SystemViewer) Show(name string, img image.Image) error {
	f, err := os.CreateTemp(v.Dir, utils.ImageStem(name)+"_*.png")
	if err != nil {
		return fmt.Errorf("failed to create preview file: %w", err)
	}
	path := f.Name()
	f.Close()

	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return utils.OpenWithSystemViewer(path)
}
