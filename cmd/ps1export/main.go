// ps1export - PS1 Scene Exporter
// Convert glTF/GLB scenes into C headers of fixed-point geometry, per-face
// material flags and baked vertex animation for PlayStation 1 programs.
//
// Usage:
//
//	ps1export export scene.glb -o include/ --header-type psyqo
//	ps1export inspect scene.glb
//	ps1export config init
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/ps1export/internal/config"
	"github.com/taigrr/ps1export/internal/logger"
	"github.com/taigrr/ps1export/pkg/encode"
	"github.com/taigrr/ps1export/pkg/export"
	"github.com/taigrr/ps1export/pkg/models"
)

var version = "dev"

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ps1export [scene.glb]",
		Short: "Export glTF scenes as PS1 C headers",
		Long: "ps1export converts a glTF or GLB scene into C headers holding fixed-point\n" +
			"vertices, normals, texel UVs, faces, per-face material flags, vertex colors\n" +
			"and one baked vertex animation header per clip.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := config.BindFlags(root.PersistentFlags())

	exportCmd := &cobra.Command{
		Use:   "export <scene.glb>",
		Short: "Write the model header and one header per animation clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.OutOrStdout(), flags, args[0])
		},
	}
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runExport(cmd.OutOrStdout(), flags, args[0])
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <scene.glb>",
		Short: "List objects, textures and clips without writing headers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), flags, args[0])
		},
	}

	var force bool
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the exporter configuration",
	}
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file holding the defaults and any flags given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			return runConfigInit(cmd.OutOrStdout(), flags, path, force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	configCmd.AddCommand(initCmd)

	root.AddCommand(exportCmd, inspectCmd, configCmd)
	return root
}

// setup loads the config, applies flag overrides and starts logging.
func setup(flags *config.Flags) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigPath())
	if err != nil {
		return nil, err
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// loadScene reads the scene and derives the save target from it.
func loadScene(cfg *config.Config, path string) (*models.Scene, export.Target, error) {
	loader := cfg.Loader()
	loader.Logger = logger.Log
	scene, err := loader.Load(path)
	if err != nil {
		return nil, export.Target{}, fmt.Errorf("load %s: %w", path, err)
	}

	target := export.Target{Dir: cfg.Export.OutputDir, BaseName: cfg.Export.Name}
	if target.Dir == "" {
		target.Dir = filepath.Dir(path)
	}
	if target.BaseName == "" {
		target.BaseName = scene.Name
	}
	return scene, target, nil
}

func runExport(out io.Writer, flags *config.Flags, path string) error {
	cfg, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts, err := cfg.ExportOptions()
	if err != nil {
		return err
	}
	scene, target, err := loadScene(cfg, path)
	if err != nil {
		return err
	}

	res, err := export.New(opts, logger.Log).Export(scene, target)
	if err != nil {
		return err
	}
	if res.Model.Dropped > 0 {
		logger.Warn("polygons with unsupported corner counts were dropped",
			zap.Int("polygons", res.Model.Dropped))
	}
	logger.Info("export finished",
		zap.String("scene", path),
		zap.Int("files", len(res.Files)),
		zap.Int("clips", len(res.Clips)))

	for _, f := range res.Files {
		fmt.Fprintln(out, f)
	}
	return nil
}

func runInspect(out io.Writer, flags *config.Flags, path string) error {
	cfg, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts, err := cfg.ExportOptions()
	if err != nil {
		return err
	}
	scene, target, err := loadScene(cfg, path)
	if err != nil {
		return err
	}
	res, files, err := export.New(opts, logger.Log).Render(scene, target)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	m := res.Model
	fmt.Fprintf(tw, "Scene:\t%s\n", scene.Name)
	fmt.Fprintf(tw, "Vertices:\t%d\n", len(m.Vertices))
	fmt.Fprintf(tw, "Faces:\t%d (%d tris, %d quads)\n", len(m.Faces), m.TriCount(), m.QuadCount())
	if res.Ngons > 0 {
		fmt.Fprintf(tw, "N-gons split:\t%d\n", res.Ngons)
	}
	if m.Dropped > 0 {
		fmt.Fprintf(tw, "Dropped:\t%d\n", m.Dropped)
	}

	fmt.Fprintln(tw, "\nObjects:")
	for _, o := range encode.SortObjects(scene.Objects) {
		fmt.Fprintf(tw, "  %s\t%d vertices\t%d polygons\n", o.Name, len(o.Mesh.Vertices), len(o.Mesh.Polygons))
	}

	fmt.Fprintln(tw, "\nTextures:")
	if len(m.Textures) == 0 {
		fmt.Fprintln(tw, "  (none)")
	}
	for i, tex := range m.Textures {
		alpha := ""
		if tex.HasAlpha {
			alpha = "alpha"
		}
		fmt.Fprintf(tw, "  %d\t%s\t%dx%d\t%s\n", i, tex.Name, tex.Width, tex.Height, alpha)
	}

	fmt.Fprintln(tw, "\nClips:")
	if len(res.Clips) == 0 {
		fmt.Fprintln(tw, "  (none)")
	}
	for _, c := range res.Clips {
		fmt.Fprintf(tw, "  %s\tframes %d-%d\t%d frames\n", c.Clip.Name, c.Clip.Start, c.Clip.End, len(c.Frames))
	}

	fmt.Fprintln(tw, "\nHeaders:")
	for _, f := range files {
		fmt.Fprintf(tw, "  %s\t%d bytes\n", f.Path, len(f.Data))
	}
	return tw.Flush()
}

func runConfigInit(out io.Writer, flags *config.Flags, path string, force bool) error {
	cfg := config.Default()
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}
