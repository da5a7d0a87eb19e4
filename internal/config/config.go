package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/probe-labeler/probe-labeler/pkg/render"
	"github.com/probe-labeler/probe-labeler/pkg/samples"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Annotation AnnotationConfig `json:"annotation"`
	ScaleBar   ScaleBarConfig   `json:"scale_bar"`
	Table      TableConfig      `json:"table"`
	Output     OutputConfig     `json:"output"`
}

// AnnotationConfig holds configuration for sample markers and labels
type AnnotationConfig struct {
	PointColor    string  `json:"point_color"`
	TextColor     string  `json:"text_color"`
	PointSize     float64 `json:"point_size"`
	TextOffsetX   float64 `json:"text_offset_x"`
	TextOffsetY   float64 `json:"text_offset_y"`
	FontSize      float64 `json:"font_size"`
	FontWeight    string  `json:"font_weight"`
	FontThickness int     `json:"font_thickness"`
	ShowBBox      bool    `json:"show_bbox"`
}

// ScaleBarConfig holds configuration for the scale bar
type ScaleBarConfig struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Thickness float64 `json:"thickness"`
	Color     string  `json:"color"`
	TextColor string  `json:"text_color"`
}

// TableConfig holds configuration for reading the sample table and matching it to images
type TableConfig struct {
	Sheet          string `json:"sheet"`
	SampleIDColumn string `json:"sample_id_column"`
	XColumn        string `json:"x_column"`
	YColumn        string `json:"y_column"`
	Separators     string `json:"separators"`
}

// OutputConfig holds configuration for inputs and output generation
type OutputConfig struct {
	Export         string  `json:"export"`
	ImageExtension string  `json:"image_extension"`
	MetaExtension  string  `json:"meta_extension"`
	DPI            float64 `json:"dpi"`
	Workers        int     `json:"workers"`
}

// Default returns a configuration with default values
func Default() *Config {
	cols := samples.DefaultColumns()
	return &Config{
		Annotation: AnnotationConfig{
			PointColor:    "royalblue",
			TextColor:     "royalblue",
			PointSize:     5,
			TextOffsetX:   0,
			TextOffsetY:   -30,
			FontSize:      7,
			FontWeight:    string(types.FontBold),
			FontThickness: 2,
			ShowBBox:      true,
		},
		ScaleBar: ScaleBarConfig{
			X:         100,
			Y:         900,
			Thickness: 2,
			Color:     "k",
			TextColor: "k",
		},
		Table: TableConfig{
			SampleIDColumn: cols.SampleID,
			XColumn:        cols.X,
			YColumn:        cols.Y,
			Separators:     samples.DefaultSeparators,
		},
		Output: OutputConfig{
			Export:         "pdf",
			ImageExtension: ".tif",
			MetaExtension:  ".txt",
			DPI:            300,
			Workers:        1,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields absent from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Annotation.PointSize <= 0 {
		return fmt.Errorf("annotation.point_size must be positive")
	}

	if c.Annotation.FontSize <= 0 {
		return fmt.Errorf("annotation.font_size must be positive")
	}

	if c.Annotation.FontThickness < 1 {
		return fmt.Errorf("annotation.font_thickness must be at least 1")
	}

	switch types.FontWeight(c.Annotation.FontWeight) {
	case types.FontBold, types.FontNormal:
	default:
		return fmt.Errorf("annotation.font_weight must be %q or %q", types.FontBold, types.FontNormal)
	}

	if c.ScaleBar.Thickness <= 0 {
		return fmt.Errorf("scale_bar.thickness must be positive")
	}

	if c.Table.SampleIDColumn == "" || c.Table.XColumn == "" || c.Table.YColumn == "" {
		return fmt.Errorf("table column names cannot be empty")
	}

	if c.Table.Separators == "" {
		return fmt.Errorf("table.separators cannot be empty")
	}

	if c.Output.DPI <= 0 {
		return fmt.Errorf("output.dpi must be positive")
	}

	if c.Output.Workers < 1 {
		return fmt.Errorf("output.workers must be at least 1")
	}

	if !strings.HasPrefix(c.Output.ImageExtension, ".") || !strings.HasPrefix(c.Output.MetaExtension, ".") {
		return fmt.Errorf("output extensions must start with a dot")
	}

	if _, err := render.ParseExportSelector(c.Output.Export); err != nil {
		return fmt.Errorf("output.export: %w", err)
	}

	return nil
}

// Resolve validates the configuration and converts it into the form used while
// annotating, with colour names resolved.
func (c *Config) Resolve() (*types.AnnotationConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	out := &types.AnnotationConfig{
		PointSize:         c.Annotation.PointSize,
		TextOffsetX:       c.Annotation.TextOffsetX,
		TextOffsetY:       c.Annotation.TextOffsetY,
		FontSize:          c.Annotation.FontSize,
		FontWeight:        types.FontWeight(c.Annotation.FontWeight),
		FontThickness:     c.Annotation.FontThickness,
		ScaleBarX:         c.ScaleBar.X,
		ScaleBarY:         c.ScaleBar.Y,
		ScaleBarThickness: c.ScaleBar.Thickness,
		Separators:        c.Table.Separators,
		MetaExtension:     c.Output.MetaExtension,
		SampleIDColumn:    c.Table.SampleIDColumn,
		XColumn:           c.Table.XColumn,
		YColumn:           c.Table.YColumn,
		ShowBBox:          c.Annotation.ShowBBox,
		DPI:               c.Output.DPI,
	}

	colors := []struct {
		field string
		name  string
		dst   *color.NRGBA
	}{
		{"annotation.point_color", c.Annotation.PointColor, &out.PointColor},
		{"annotation.text_color", c.Annotation.TextColor, &out.TextColor},
		{"scale_bar.color", c.ScaleBar.Color, &out.ScaleBarColor},
		{"scale_bar.text_color", c.ScaleBar.TextColor, &out.ScaleBarTextColor},
	}
	for _, col := range colors {
		v, err := render.ParseColor(col.name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col.field, err)
		}
		*col.dst = v
	}

	return out, nil
}

// Columns returns the table column names
func (c *Config) Columns() samples.Columns {
	return samples.Columns{
		SampleID: c.Table.SampleIDColumn,
		X:        c.Table.XColumn,
		Y:        c.Table.YColumn,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "probe-labeler", "config.json")
}
