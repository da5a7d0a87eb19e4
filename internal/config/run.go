package config

import (
	"fmt"

	"github.com/probe-labeler/probe-labeler/internal/utils"
)

// RunConfig holds the options of a single invocation. Values come from the
// configuration file and are overridden by command line flags.
type RunConfig struct {
	ImageDir  string
	ImageFile string
	TablePath string
	Sheet     string
	Export    string
	Extension string
	Display   bool
	Workers   int
}

// RunConfig returns run options prefilled from the configuration
func (c *Config) RunConfig() RunConfig {
	return RunConfig{
		Sheet:     c.Table.Sheet,
		Export:    c.Output.Export,
		Extension: c.Output.ImageExtension,
		Workers:   c.Output.Workers,
	}
}

// Validate checks the run options. ImageFile is only required for single
// image runs and is checked by the caller.
func (r RunConfig) Validate() error {
	if r.ImageDir == "" {
		return fmt.Errorf("image directory is required")
	}
	if !utils.DirExists(r.ImageDir) {
		return fmt.Errorf("image directory %s does not exist", r.ImageDir)
	}
	if r.TablePath == "" {
		return fmt.Errorf("sample table is required")
	}
	if !utils.FileExists(r.TablePath) {
		return fmt.Errorf("sample table %s does not exist", r.TablePath)
	}
	if r.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}
