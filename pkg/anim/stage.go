// Package anim bakes time-sampled vertex animation into fixed-point frame
// tables. It drives any scene that implements Stage.
package anim

import (
	"github.com/taigrr/ps1export/pkg/math3d"
)

// Clip is a named animation with an inclusive frame range.
type Clip struct {
	Name  string
	Start int
	End   int
}

// FrameCount returns the number of frames in the clip.
func (c Clip) FrameCount() int {
	return max(c.End-c.Start+1, 0)
}

// Controller owns the active clip of part of a scene, such as an armature
// or an animated object.
type Controller interface {
	Name() string
	// Clip returns the name of the active clip, or "" for none.
	Clip() string
	// SetClip activates a clip by name. "" clears it.
	SetClip(name string) error
}

// Stage is an animatable scene.
type Stage interface {
	Clips() []Clip
	Controllers() []Controller
	Frame() int
	// SetFrame moves the scene to frame and re-evaluates every pose.
	SetFrame(frame int) error
	// Evaluate returns the posed vertex positions of an object in mesh
	// vertex order, with the world matrix that places them.
	Evaluate(object string) ([]math3d.Vec3, math3d.Mat4, error)
}
