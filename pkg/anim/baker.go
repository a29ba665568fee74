package anim

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/taigrr/ps1export/pkg/fixed"
)

// ErrFrameLength is returned when frames of one clip differ in vertex count.
var ErrFrameLength = errors.New("frame vertex count changed during clip")

// FrameSeries is a baked clip: one fixed-point position table per frame.
type FrameSeries struct {
	Clip   Clip
	Frames [][]fixed.SVector
}

// VertexCount returns the number of vertices per frame.
func (s FrameSeries) VertexCount() int {
	if len(s.Frames) == 0 {
		return 0
	}
	return len(s.Frames[0])
}

// Baker samples clips into frame tables.
type Baker struct {
	Transform fixed.Transform
	Logger    *zap.Logger
}

// NewBaker creates a baker. A nil logger disables logging.
func NewBaker(t fixed.Transform, logger *zap.Logger) *Baker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Baker{Transform: t, Logger: logger}
}

// Bake samples every clip of the stage. Each frame concatenates the posed
// vertices of objects in the given order, so frames line up with the static
// vertex table. The stage's clips and frame are restored before returning.
// Clips without frames are skipped.
func (b *Baker) Bake(stage Stage, objects []string) (_ []FrameSeries, err error) {
	pose := Acquire(stage)
	defer func() {
		if rerr := pose.Release(); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("restore pose: %w", rerr))
		}
	}()

	var out []FrameSeries
	for _, clip := range stage.Clips() {
		if clip.FrameCount() == 0 {
			b.logger().Warn("skipping empty clip", zap.String("clip", clip.Name))
			continue
		}
		series, err := b.bakeClip(pose, stage, clip, objects)
		if err != nil {
			return nil, fmt.Errorf("bake %q: %w", clip.Name, err)
		}
		b.logger().Info("baked clip",
			zap.String("clip", clip.Name),
			zap.Int("frames", len(series.Frames)),
			zap.Int("vertices", series.VertexCount()))
		out = append(out, series)
	}
	return out, nil
}

func (b *Baker) bakeClip(pose *PoseContext, stage Stage, clip Clip, objects []string) (FrameSeries, error) {
	if err := pose.Bind(clip.Name); err != nil {
		return FrameSeries{}, err
	}

	series := FrameSeries{Clip: clip, Frames: make([][]fixed.SVector, 0, clip.FrameCount())}
	for frame := clip.Start; frame <= clip.End; frame++ {
		if err := pose.Seek(frame); err != nil {
			return FrameSeries{}, err
		}

		var table []fixed.SVector
		if len(series.Frames) > 0 {
			table = make([]fixed.SVector, 0, len(series.Frames[0]))
		}
		for _, name := range objects {
			positions, world, err := stage.Evaluate(name)
			if err != nil {
				return FrameSeries{}, fmt.Errorf("evaluate %q at frame %d: %w", name, frame, err)
			}
			for _, p := range positions {
				table = append(table, fixed.Position(b.Transform.Point(world, p)))
			}
		}

		if len(series.Frames) > 0 && len(table) != len(series.Frames[0]) {
			return FrameSeries{}, fmt.Errorf("frame %d has %d vertices, want %d: %w",
				frame, len(table), len(series.Frames[0]), ErrFrameLength)
		}
		series.Frames = append(series.Frames, table)
	}
	return series, nil
}

func (b *Baker) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
