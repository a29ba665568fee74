package anim

import (
	"fmt"

	"go.uber.org/multierr"
)

type savedClip struct {
	ctrl Controller
	clip string
}

// PoseContext records a stage's pose state and puts it back on Release.
//
//	pose := anim.Acquire(stage)
//	defer pose.Release()
type PoseContext struct {
	stage    Stage
	frame    int
	clips    []savedClip
	released bool
}

// Acquire snapshots the active clip of every controller and the current frame.
func Acquire(stage Stage) *PoseContext {
	p := &PoseContext{
		stage: stage,
		frame: stage.Frame(),
	}
	for _, c := range stage.Controllers() {
		p.clips = append(p.clips, savedClip{ctrl: c, clip: c.Clip()})
	}
	return p
}

// Bind activates clip on every controller.
func (p *PoseContext) Bind(clip string) error {
	for _, s := range p.clips {
		if err := s.ctrl.SetClip(clip); err != nil {
			return fmt.Errorf("bind %q on %q: %w", clip, s.ctrl.Name(), err)
		}
	}
	return nil
}

// Seek moves the stage to frame.
func (p *PoseContext) Seek(frame int) error {
	if err := p.stage.SetFrame(frame); err != nil {
		return fmt.Errorf("set frame %d: %w", frame, err)
	}
	return nil
}

// Release restores every controller's clip, then the frame. Every restore is
// attempted even when one fails. Calling Release again is a no-op.
func (p *PoseContext) Release() error {
	if p.released {
		return nil
	}
	p.released = true

	var err error
	for _, s := range p.clips {
		if cerr := s.ctrl.SetClip(s.clip); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("restore clip on %q: %w", s.ctrl.Name(), cerr))
		}
	}
	if ferr := p.stage.SetFrame(p.frame); ferr != nil {
		err = multierr.Append(err, fmt.Errorf("restore frame %d: %w", p.frame, ferr))
	}
	return err
}
