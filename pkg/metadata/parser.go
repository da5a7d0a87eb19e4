// Package metadata reads the text sidecar files that JEOL microprobes write next
// to each acquired image.
//
// A sidecar is a list of records, one per line, each starting with a key such as
// $CM_FULL_SIZE followed by whitespace-separated values. Only the four keys needed
// to place stage coordinates on the image are extracted; everything else is ignored.
package metadata

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/probe-labeler/probe-labeler/pkg/types"
)

// Record keys understood by the parser
const (
	KeyFullSize     = "$CM_FULL_SIZE"
	KeyStagePos     = "$CM_STAGE_POS"
	KeyMicronBar    = "$$SM_MICRON_BAR"
	KeyMicronMarker = "$$SM_MICRON_MARKER"
)

// requiredKeys is also the order missing keys are reported in
var requiredKeys = []string{KeyFullSize, KeyStagePos, KeyMicronBar, KeyMicronMarker}

var (
	// ErrMetadataNotFound is returned when an image has no sidecar file.
	ErrMetadataNotFound = errors.New("metadata file not found")

	// ErrMetadataIncomplete is returned when one or more required keys are absent.
	ErrMetadataIncomplete = errors.New("metadata incomplete")

	// ErrMetadataMalformed is returned when a required key is present but its values can't be used.
	ErrMetadataMalformed = errors.New("metadata malformed")
)

// MissingKeysError lists the required keys a sidecar file did not contain
type MissingKeysError struct {
	Path string
	Keys []string
}

func (e *MissingKeysError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: missing %v", ErrMetadataIncomplete, strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("%v: %v missing %v", ErrMetadataIncomplete, e.Path, strings.Join(e.Keys, ", "))
}

func (e *MissingKeysError) Is(target error) bool {
	return target == ErrMetadataIncomplete
}

// SidecarPath returns the metadata file belonging to an image, which shares the
// image's directory and stem.
func SidecarPath(imagePath, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(imagePath), stem+ext)
}

// ParseFile reads and parses a sidecar file
func ParseFile(path string) (*types.ImageMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrMetadataNotFound, path)
		}
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()

	meta, err := Parse(f)
	if err != nil {
		var missing *MissingKeysError
		if errors.As(err, &missing) {
			missing.Path = path
			return nil, missing
		}
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return meta, nil
}

// Parse extracts image metadata from sidecar content. Line order doesn't matter
// and when a key repeats, the last occurrence wins.
func Parse(r io.Reader) (*types.ImageMetadata, error) {
	meta := &types.ImageMetadata{}
	seen := map[string]bool{}
	malformed := map[string]error{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		fields := strings.Fields(line)
		key := fields[0]
		values := fields[1:]

		var err error
		switch key {
		case KeyFullSize:
			err = parseFullSize(meta, values)
		case KeyStagePos:
			err = parseStagePos(meta, values)
		case KeyMicronBar:
			err = parseMicronBar(meta, values)
		case KeyMicronMarker:
			err = parseMicronMarker(meta, values)
		default:
			continue
		}
		if err != nil {
			malformed[key] = fmt.Errorf("%w: line %d (%v): %v", ErrMetadataMalformed, lineNo, key, err)
			continue
		}
		delete(malformed, key)
		seen[key] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	// Only a bad last occurrence counts
	for _, key := range requiredKeys {
		if err, ok := malformed[key]; ok {
			return nil, err
		}
	}

	var missing []string
	for _, key := range requiredKeys {
		if !seen[key] {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingKeysError{Keys: missing}
	}

	return meta, nil
}

func parseFullSize(meta *types.ImageMetadata, values []string) error {
	if len(values) < 2 {
		return fmt.Errorf("expected width and height, got %d values", len(values))
	}
	w, err := strconv.Atoi(values[0])
	if err != nil {
		return fmt.Errorf("invalid width %q", values[0])
	}
	h, err := strconv.Atoi(values[1])
	if err != nil {
		return fmt.Errorf("invalid height %q", values[1])
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", w, h)
	}
	meta.FullWidth = w
	meta.FullHeight = h
	return nil
}

// Stage records may carry Z, tilt and rotation after X and Y
func parseStagePos(meta *types.ImageMetadata, values []string) error {
	if len(values) < 2 {
		return fmt.Errorf("expected x and y, got %d values", len(values))
	}
	x, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return fmt.Errorf("invalid stage x %q", values[0])
	}
	y, err := strconv.ParseFloat(values[1], 64)
	if err != nil {
		return fmt.Errorf("invalid stage y %q", values[1])
	}
	meta.StageX = x
	meta.StageY = y
	return nil
}

func parseMicronBar(meta *types.ImageMetadata, values []string) error {
	if len(values) < 1 {
		return fmt.Errorf("expected bar length in pixels")
	}
	px, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return fmt.Errorf("invalid bar length %q", values[0])
	}
	if px <= 0 {
		return fmt.Errorf("bar length must be positive, got %v", px)
	}
	meta.ScaleBarPixels = px
	return nil
}

func parseMicronMarker(meta *types.ImageMetadata, values []string) error {
	if len(values) < 1 {
		return fmt.Errorf("expected marker length")
	}
	microns, err := parseMicrons(values[0])
	if err != nil {
		return err
	}
	meta.ScaleBarMicrons = microns
	return nil
}

// parseMicrons reads a marker token such as "10u", "10um" or "10µm". Anything
// after the number is dropped, including a µ sign written in Latin-1.
func parseMicrons(token string) (float64, error) {
	number := strings.TrimRightFunc(token, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	if number == "" {
		return 0, fmt.Errorf("invalid marker length %q", token)
	}
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid marker length %q", token)
	}
	if v <= 0 {
		return 0, fmt.Errorf("marker length must be positive, got %v", v)
	}
	return v, nil
}
