// Package config handles exporter configuration loading and management.
package config

import (
	"fmt"

	"github.com/taigrr/ps1export/pkg/encode"
	"github.com/taigrr/ps1export/pkg/export"
	"github.com/taigrr/ps1export/pkg/header"
	"github.com/taigrr/ps1export/pkg/models"
)

// Config holds all exporter settings.
type Config struct {
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// ExportConfig holds the settings of one export run.
type ExportConfig struct {
	ZUp              bool    `yaml:"z_up"`
	ForceUnlit       bool    `yaml:"force_unlit"`
	Animations       bool    `yaml:"animations"`
	HeaderType       string  `yaml:"header_type"` // psyq or psyqo
	SemiTransparency bool    `yaml:"semi_transparency"`
	Cutout           bool    `yaml:"cutout"`
	Specular         bool    `yaml:"specular"`
	Metallic         bool    `yaml:"metallic"`
	TexelInset       float64 `yaml:"texel_inset"`
	WhiteThreshold   float64 `yaml:"white_threshold"`
	FPS              float64 `yaml:"fps"`
	WeldVertices     bool    `yaml:"weld_vertices"`
	MergeQuads       bool    `yaml:"merge_quads"`
	Name             string  `yaml:"name"`       // Output base name, defaults to the scene file stem
	OutputDir        string  `yaml:"output_dir"` // Defaults to the scene's directory
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the exporter defaults.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			ZUp:            true,
			Animations:     true,
			HeaderType:     string(header.DialectPSYQ),
			TexelInset:     encode.DefaultTexelInset,
			WhiteThreshold: encode.DefaultWhiteThreshold,
			FPS:            models.DefaultFPS,
			MergeQuads:     true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings no export can run with.
func (c *Config) Validate() error {
	if _, err := header.ParseDialect(c.Export.HeaderType); err != nil {
		return err
	}
	if c.Export.TexelInset < 0 {
		return fmt.Errorf("texel_inset must not be negative, got %g", c.Export.TexelInset)
	}
	if c.Export.WhiteThreshold <= 0 || c.Export.WhiteThreshold > 1 {
		return fmt.Errorf("white_threshold must be in (0, 1], got %g", c.Export.WhiteThreshold)
	}
	if c.Export.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %g", c.Export.FPS)
	}
	return nil
}

// ExportOptions converts the export section into exporter options.
func (c *Config) ExportOptions() (export.Options, error) {
	dialect, err := header.ParseDialect(c.Export.HeaderType)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		ZUp:        c.Export.ZUp,
		Animations: c.Export.Animations,
		Dialect:    dialect,
		Encode: encode.Options{
			ForceUnlit:       c.Export.ForceUnlit,
			SemiTransparency: c.Export.SemiTransparency,
			Cutout:           c.Export.Cutout,
			Specular:         c.Export.Specular,
			Metallic:         c.Export.Metallic,
			TexelInset:       c.Export.TexelInset,
			WhiteThreshold:   c.Export.WhiteThreshold,
		},
	}, nil
}

// Loader returns a glTF loader configured from the export section.
func (c *Config) Loader() *models.GLTFLoader {
	l := models.NewGLTFLoader()
	l.WeldVertices = c.Export.WeldVertices
	l.MergeQuads = c.Export.MergeQuads
	l.FPS = c.Export.FPS
	return l
}
