package config

import "github.com/spf13/pflag"

// Flags are command-line overrides for a Config. Only flags set on the
// command line override the loaded values.
type Flags struct {
	fs     *pflag.FlagSet
	config string
	debug  bool
	values Config
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	d := Default()
	v := &f.values

	fs.StringVarP(&f.config, "config", "c", "", "Path to config file")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&v.Logging.Level, "log-level", d.Logging.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&v.Logging.LogFile, "log-file", "", "Also log to this file")

	fs.StringVarP(&v.Export.Name, "name", "n", "", "Output base name (default: scene file name)")
	fs.StringVarP(&v.Export.OutputDir, "output", "o", "", "Output directory (default: scene directory)")
	fs.StringVar(&v.Export.HeaderType, "header-type", d.Export.HeaderType, "Header dialect (psyq, psyqo)")
	fs.BoolVar(&v.Export.ZUp, "z-up", d.Export.ZUp, "Convert Y-up scenes to the PS1 Z-up convention")
	fs.BoolVar(&v.Export.Animations, "animations", d.Export.Animations, "Bake animation clips")
	fs.BoolVar(&v.Export.ForceUnlit, "force-unlit", false, "Mark every face unlit")
	fs.BoolVar(&v.Export.SemiTransparency, "semi-transparency", false, "Flag alpha faces semi-transparent")
	fs.BoolVar(&v.Export.Cutout, "cutout", false, "Flag alpha faces as cutout")
	fs.BoolVar(&v.Export.Specular, "specular", false, "Write per-face specular bytes")
	fs.BoolVar(&v.Export.Metallic, "metallic", false, "Write per-face metallic bytes")
	fs.Float64Var(&v.Export.TexelInset, "texel-inset", d.Export.TexelInset, "Texels trimmed from texture size when mapping UVs")
	fs.Float64Var(&v.Export.WhiteThreshold, "white-threshold", d.Export.WhiteThreshold, "Channel value counted as white")
	fs.Float64Var(&v.Export.FPS, "fps", d.Export.FPS, "Frame rate for animation clips")
	fs.BoolVar(&v.Export.WeldVertices, "weld", d.Export.WeldVertices, "Merge vertices sharing position and normal")
	fs.BoolVar(&v.Export.MergeQuads, "merge-quads", d.Export.MergeQuads, "Join coplanar triangle pairs into quads")

	return f
}

// ConfigPath returns the explicit config path if provided via --config.
func (f *Flags) ConfigPath() string {
	return f.config
}

// Apply copies every flag set on the command line into cfg.
func (f *Flags) Apply(cfg *Config) {
	v := &f.values
	overrides := map[string]func(){
		"log-level":         func() { cfg.Logging.Level = v.Logging.Level },
		"log-file":          func() { cfg.Logging.LogFile = v.Logging.LogFile },
		"name":              func() { cfg.Export.Name = v.Export.Name },
		"output":            func() { cfg.Export.OutputDir = v.Export.OutputDir },
		"header-type":       func() { cfg.Export.HeaderType = v.Export.HeaderType },
		"z-up":              func() { cfg.Export.ZUp = v.Export.ZUp },
		"animations":        func() { cfg.Export.Animations = v.Export.Animations },
		"force-unlit":       func() { cfg.Export.ForceUnlit = v.Export.ForceUnlit },
		"semi-transparency": func() { cfg.Export.SemiTransparency = v.Export.SemiTransparency },
		"cutout":            func() { cfg.Export.Cutout = v.Export.Cutout },
		"specular":          func() { cfg.Export.Specular = v.Export.Specular },
		"metallic":          func() { cfg.Export.Metallic = v.Export.Metallic },
		"texel-inset":       func() { cfg.Export.TexelInset = v.Export.TexelInset },
		"white-threshold":   func() { cfg.Export.WhiteThreshold = v.Export.WhiteThreshold },
		"fps":               func() { cfg.Export.FPS = v.Export.FPS },
		"weld":              func() { cfg.Export.WeldVertices = v.Export.WeldVertices },
		"merge-quads":       func() { cfg.Export.MergeQuads = v.Export.MergeQuads },
	}
	for name, apply := range overrides {
		if f.fs.Changed(name) {
			apply()
		}
	}
	if f.debug {
		cfg.Logging.Level = "debug"
	}
}
