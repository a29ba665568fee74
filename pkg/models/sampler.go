package models

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
)

// channel is one animated node property with its keyframes.
type channel struct {
	node   int
	path   gltf.TRSProperty
	interp gltf.Interpolation
	times  []float64
	width  int       // Components per keyframe value
	values []float64 // Keyframe values; cubic splines store in-tangent, value, out-tangent
}

// newChannel reads the sampler of a glTF animation channel.
func newChannel(doc *gltf.Document, a *gltf.Animation, ch *gltf.AnimationChannel) (*channel, error) {
	if ch.Target.Node == nil {
		return nil, nil
	}
	if ch.Sampler < 0 || ch.Sampler >= len(a.Samplers) {
		return nil, fmt.Errorf("sampler %d out of range", ch.Sampler)
	}
	s := a.Samplers[ch.Sampler]

	times, err := readScalarAccessor(doc, s.Input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	values, _, err := readAccessor(doc, s.Output)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(times) == 0 {
		return nil, nil
	}

	perKey := 1
	if s.Interpolation == gltf.InterpolationCubicSpline {
		perKey = 3
	}
	width := len(values) / (len(times) * perKey)
	if width == 0 || width*len(times)*perKey != len(values) {
		return nil, fmt.Errorf("output has %d values for %d keyframes", len(values), len(times))
	}

	return &channel{
		node:   *ch.Target.Node,
		path:   ch.Target.Path,
		interp: s.Interpolation,
		times:  times,
		width:  width,
		values: values,
	}, nil
}

// value returns keyframe k's value. For cubic splines part selects the
// in-tangent (0), value (1) or out-tangent (2).
func (c *channel) value(k, part int) []float64 {
	if c.interp == gltf.InterpolationCubicSpline {
		k = k*3 + part
	}
	return c.values[k*c.width : (k+1)*c.width]
}

func (c *channel) keyValue(k int) []float64 {
	return c.value(k, 1)
}

// Sample evaluates the channel at time t in seconds. Times before the first
// or after the last keyframe clamp to it.
func (c *channel) Sample(t float64) []float64 {
	last := len(c.times) - 1
	if t <= c.times[0] {
		return clone(c.keyValue(0))
	}
	if t >= c.times[last] {
		return clone(c.keyValue(last))
	}

	// Find surrounding keyframes
	next := sort.SearchFloat64s(c.times, t)
	if c.times[next] == t {
		return clone(c.keyValue(next))
	}
	prev := next - 1

	t0, t1 := c.times[prev], c.times[next]
	alpha := (t - t0) / (t1 - t0)

	switch c.interp {
	case gltf.InterpolationStep:
		return clone(c.keyValue(prev))
	case gltf.InterpolationCubicSpline:
		return c.hermite(prev, next, alpha, t1-t0)
	}

	a, b := c.keyValue(prev), c.keyValue(next)
	if c.path == gltf.TRSRotation && c.width == 4 {
		qa, qb := quat(a), quat(b)
		if qa.Dot(qb) < 0 {
			qb = qb.Scale(-1) // Shortest path
		}
		q := mgl64.QuatSlerp(qa, qb, alpha)
		return []float64{q.V[0], q.V[1], q.V[2], q.W}
	}
	out := make([]float64, c.width)
	for i := range out {
		out[i] = a[i] + alpha*(b[i]-a[i])
	}
	return out
}

// hermite evaluates the cubic spline segment between keyframes prev and next.
func (c *channel) hermite(prev, next int, s, dt float64) []float64 {
	p0, m0 := c.value(prev, 1), c.value(prev, 2)
	p1, m1 := c.value(next, 1), c.value(next, 0)

	s2, s3 := s*s, s*s*s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	out := make([]float64, c.width)
	for i := range out {
		out[i] = h00*p0[i] + h10*dt*m0[i] + h01*p1[i] + h11*dt*m1[i]
	}
	if c.path == gltf.TRSRotation && c.width == 4 {
		q := quat(out).Normalize()
		return []float64{q.V[0], q.V[1], q.V[2], q.W}
	}
	return out
}

// End returns the time of the last keyframe.
func (c *channel) End() float64 {
	return c.times[len(c.times)-1]
}

// Start returns the time of the first keyframe.
func (c *channel) Start() float64 {
	return c.times[0]
}

func quat(v []float64) mgl64.Quat {
	return mgl64.Quat{W: v[3], V: mgl64.Vec3{v[0], v[1], v[2]}}
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

// frameRange converts a time span in seconds to an inclusive frame range.
func frameRange(start, end, fps float64) (int, int) {
	return int(math.Floor(start*fps + 1e-6)), int(math.Ceil(end*fps - 1e-6))
}
