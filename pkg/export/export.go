// Package export runs a complete scene export: it resolves n-gons, encodes
// the model, bakes clips and writes every header in one atomic step.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/taigrr/ps1export/pkg/anim"
	"github.com/taigrr/ps1export/pkg/encode"
	"github.com/taigrr/ps1export/pkg/fixed"
	"github.com/taigrr/ps1export/pkg/header"
	"github.com/taigrr/ps1export/pkg/models"
)

var (
	// ErrNoSaveTarget is returned when there is no directory or base name
	// to write to.
	ErrNoSaveTarget = errors.New("no save target")
	// ErrNoMeshObjects is returned for scenes without mesh objects.
	ErrNoMeshObjects = errors.New("no mesh objects in scene")
)

// Target is where headers are written: <Dir>/<BaseName>.h plus one
// <Dir>/<BaseName>-<clip>.h per clip.
type Target struct {
	Dir      string
	BaseName string
}

// Validate checks that the target names a place to write.
func (t Target) Validate() error {
	if t.Dir == "" || t.BaseName == "" {
		return ErrNoSaveTarget
	}
	return nil
}

// Options configure an export.
type Options struct {
	ZUp        bool
	Animations bool
	Encode     encode.Options
	Dialect    header.Dialect
}

// DefaultOptions returns the exporter defaults.
func DefaultOptions() Options {
	return Options{
		ZUp:        true,
		Animations: true,
		Encode:     encode.DefaultOptions(),
		Dialect:    header.DialectPSYQ,
	}
}

// Result describes a finished export.
type Result struct {
	Files []string
	Model *encode.Model
	Clips []anim.FrameSeries
	Ngons int // Polygons split because they had more than four corners
}

// Exporter writes scenes as PS1 headers.
type Exporter struct {
	Options Options
	Logger  *zap.Logger
}

// New creates an exporter. A nil logger disables logging.
func New(opts Options, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{Options: opts, Logger: logger}
}

// File is a rendered header.
type File struct {
	Path string
	Data []byte
}

// Export encodes scene and writes its headers to target. Nothing is written
// unless every header rendered.
func (e *Exporter) Export(scene *models.Scene, target Target) (*Result, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	res, files, err := e.Render(scene, target)
	if err != nil {
		return nil, err
	}
	if err := writeAll(target.Dir, files); err != nil {
		return nil, err
	}
	for _, f := range files {
		res.Files = append(res.Files, f.Path)
		e.logger().Info("wrote header", zap.String("path", f.Path), zap.Int("bytes", len(f.Data)))
	}
	return res, nil
}

// Render encodes scene and renders its headers in memory.
func (e *Exporter) Render(scene *models.Scene, target Target) (*Result, []File, error) {
	log := e.logger()
	if scene == nil || len(encode.SortObjects(scene.Objects)) == 0 {
		return nil, nil, ErrNoMeshObjects
	}

	objects, ngons := resolveNgons(scene.Objects)
	if ngons > 0 {
		log.Info("faces with more than 4 vertices were triangulated", zap.Int("polygons", ngons))
	}

	t := fixed.Transform{ZUp: e.Options.ZUp}
	model := encode.NewEncoder(t, e.Options.Encode, log).Encode(objects)
	log.Info("encoded model",
		zap.Int("vertices", len(model.Vertices)),
		zap.Int("faces", len(model.Faces)),
		zap.Int("textures", len(model.Textures)),
		zap.Int("dropped", model.Dropped))

	res := &Result{Model: model, Ngons: ngons}
	if e.Options.Animations && scene.Stage != nil {
		clips, err := anim.NewBaker(t, log).Bake(scene.Stage, model.MeshNames)
		if err != nil {
			return nil, nil, fmt.Errorf("bake animations: %w", err)
		}
		res.Clips = clips
	}

	hopts := header.Options{Dialect: e.Options.Dialect, ZUp: e.Options.ZUp}
	var buf bytes.Buffer
	if err := header.WriteModel(&buf, target.BaseName, model, hopts); err != nil {
		return nil, nil, fmt.Errorf("render model: %w", err)
	}
	files := []File{{
		Path: filepath.Join(target.Dir, header.ModelFileName(target.BaseName)),
		Data: bytes.Clone(buf.Bytes()),
	}}

	for _, clip := range res.Clips {
		buf.Reset()
		if err := header.WriteAnimation(&buf, target.BaseName, clip, hopts); err != nil {
			return nil, nil, fmt.Errorf("render animation: %w", err)
		}
		files = append(files, File{
			Path: filepath.Join(target.Dir, header.AnimationFileName(target.BaseName, clip.Clip.Name)),
			Data: bytes.Clone(buf.Bytes()),
		})
	}
	return res, files, nil
}

// resolveNgons returns the objects with every n-gon split. Meshes without
// n-gons are shared with the input.
func resolveNgons(objects []*models.Object) ([]*models.Object, int) {
	out := make([]*models.Object, 0, len(objects))
	total := 0
	for _, o := range objects {
		if o == nil || o.Mesh == nil || !o.Mesh.HasNgons() {
			out = append(out, o)
			continue
		}
		mesh, n := models.ResolveNgons(o.Mesh)
		total += n
		out = append(out, &models.Object{Name: o.Name, World: o.World, Mesh: mesh})
	}
	return out, total
}

// writeAll writes every file to a temporary file in dir, then renames them
// into place once all writes succeeded. Headers already on disk are moved
// aside first and put back if any rename fails, so a failed run leaves the
// previous set of headers intact.
func writeAll(dir string, files []File) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	temps := make([]string, 0, len(files))
	defer func() {
		if err == nil {
			return
		}
		for _, tmp := range temps {
			if rerr := os.Remove(tmp); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				err = multierr.Append(err, rerr)
			}
		}
	}()

	for _, f := range files {
		tmp, err := writeTemp(dir, f.Data)
		if tmp != "" {
			temps = append(temps, tmp)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(f.Path), err)
		}
	}
	return commit(files, temps)
}

type placement struct {
	path   string
	backup string // Previous header, empty when there was none
}

// commit renames temps[i] to files[i].Path. On failure every header placed so
// far is rolled back.
func commit(files []File, temps []string) (err error) {
	placed := make([]placement, 0, len(files))
	defer func() {
		if err != nil {
			err = multierr.Append(err, rollback(placed))
			return
		}
		for _, p := range placed {
			if p.backup != "" {
				err = multierr.Append(err, os.Remove(p.backup))
			}
		}
	}()

	for i, f := range files {
		p := placement{path: f.Path}
		if _, serr := os.Stat(f.Path); serr == nil {
			p.backup = temps[i] + ".old"
			if err := os.Rename(f.Path, p.backup); err != nil {
				return fmt.Errorf("back up %s: %w", filepath.Base(f.Path), err)
			}
		}
		if err := os.Rename(temps[i], f.Path); err != nil {
			if p.backup != "" {
				err = multierr.Append(err, os.Rename(p.backup, f.Path))
			}
			return fmt.Errorf("rename %s: %w", filepath.Base(f.Path), err)
		}
		placed = append(placed, p)
	}
	return nil
}

// rollback undoes placements in reverse order.
func rollback(placed []placement) error {
	var err error
	for i := len(placed) - 1; i >= 0; i-- {
		p := placed[i]
		if p.backup != "" {
			err = multierr.Append(err, os.Rename(p.backup, p.path))
		} else {
			err = multierr.Append(err, os.Remove(p.path))
		}
	}
	return err
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".ps1export-*.h.tmp")
	if err != nil {
		return "", err
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := multierr.Combine(werr, cerr); err != nil {
		return f.Name(), err
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		return f.Name(), err
	}
	return f.Name(), nil
}

func (e *Exporter) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
