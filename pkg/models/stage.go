package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/tiendc/go-deepcopy"

	"github.com/taigrr/ps1export/pkg/anim"
	"github.com/taigrr/ps1export/pkg/math3d"
)

// DefaultFPS converts glTF keyframe times into frames.
const DefaultFPS = 24.0

// ErrUnknownObject is returned by Stage.Evaluate for objects it cannot pose.
var ErrUnknownObject = errors.New("unknown object")

// nodePose is the local transform state of one node.
type nodePose struct {
	Translation math3d.Vec3
	Rotation    [4]float64 // x, y, z, w
	Scale       math3d.Vec3
	Matrix      *math3d.Mat4 // Set for nodes given by a matrix, which cannot be animated
	Weights     []float64    // Morph target weights
}

func (p *nodePose) local() math3d.Mat4 {
	if p.Matrix != nil {
		return *p.Matrix
	}
	return math3d.TRS(p.Translation, p.Rotation, p.Scale)
}

func (p *nodePose) apply(path gltf.TRSProperty, v []float64) {
	if path == gltf.TRSWeights {
		p.Weights = v
		return
	}
	if p.Matrix != nil {
		return
	}
	switch path {
	case gltf.TRSTranslation:
		p.Translation = math3d.V3(v[0], v[1], v[2])
	case gltf.TRSRotation:
		p.Rotation = [4]float64{v[0], v[1], v[2], v[3]}
	case gltf.TRSScale:
		p.Scale = math3d.V3(v[0], v[1], v[2])
	}
}

type clipData struct {
	clip     anim.Clip
	channels []*channel
}

type skinData struct {
	joints      []int
	inverseBind []math3d.Mat4
}

// binding ties a scene object to the data needed to pose its mesh.
type binding struct {
	node         int
	rest         []math3d.Vec3   // Mesh-local positions in mesh vertex order
	targets      [][]math3d.Vec3 // Morph target position deltas
	skin         int             // -1 when not skinned
	joints       [][4]int
	jointWeights [][4]float64
}

// controller drives the nodes it owns from its active clip.
type controller struct {
	stage *Stage
	index int
	name  string
	clip  string
}

func (c *controller) Name() string { return c.name }
func (c *controller) Clip() string { return c.clip }

func (c *controller) SetClip(name string) error {
	if name != "" {
		if _, ok := c.stage.clipIndex[name]; !ok {
			return fmt.Errorf("unknown clip %q", name)
		}
	}
	c.clip = name
	c.stage.dirty = true
	return nil
}

// Stage evaluates glTF animations. Each skin is a controller for its joints
// and every other animated node is a controller of its own. Clips start
// unbound, which leaves the scene in its rest pose.
type Stage struct {
	fps         float64
	clips       []clipData
	clipIndex   map[string]int
	controllers []*controller
	owner       []int // Controller index per node, -1 for none
	parents     []int
	rest        []nodePose
	pose        []nodePose
	world       []math3d.Mat4
	skins       []skinData
	bindings    map[string]*binding
	frame       int
	dirty       bool
}

var _ anim.Stage = (*Stage)(nil)

func newStage(doc *gltf.Document, fps float64, bindings map[string]*binding) (*Stage, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	s := &Stage{
		fps:       fps,
		clipIndex: make(map[string]int),
		owner:     make([]int, len(doc.Nodes)),
		parents:   parentIndices(doc),
		rest:      restPoses(doc),
		bindings:  bindings,
		dirty:     true,
	}
	for i := range s.owner {
		s.owner[i] = -1
	}

	for i, skin := range doc.Skins {
		data := skinData{joints: skin.Joints}
		if skin.InverseBindMatrices != nil {
			ibm, err := readMat4Accessor(doc, *skin.InverseBindMatrices)
			if err != nil {
				return nil, fmt.Errorf("skin %d inverse bind matrices: %w", i, err)
			}
			data.inverseBind = ibm
		}
		for len(data.inverseBind) < len(data.joints) {
			data.inverseBind = append(data.inverseBind, math3d.Identity())
		}
		s.skins = append(s.skins, data)

		c := s.addController(nameOr(skin.Name, "skin", i))
		for _, j := range skin.Joints {
			if j >= 0 && j < len(s.owner) && s.owner[j] < 0 {
				s.owner[j] = c.index
			}
		}
	}

	names := make(map[string]int)
	for i, a := range doc.Animations {
		cd := clipData{}
		start, end := math.Inf(1), math.Inf(-1)
		for j, ch := range a.Channels {
			c, err := newChannel(doc, a, ch)
			if err != nil {
				return nil, fmt.Errorf("animation %d channel %d: %w", i, j, err)
			}
			if c == nil || c.node < 0 || c.node >= len(doc.Nodes) {
				continue
			}
			cd.channels = append(cd.channels, c)
			start, end = min(start, c.Start()), max(end, c.End())

			if s.owner[c.node] < 0 {
				s.owner[c.node] = s.addController(nameOr(doc.Nodes[c.node].Name, "node", c.node)).index
			}
		}
		if len(cd.channels) == 0 {
			continue
		}

		first, last := frameRange(start, end, s.fps)
		cd.clip = anim.Clip{Name: uniqueName(names, nameOr(a.Name, "animation", i)), Start: first, End: last}
		s.clipIndex[cd.clip.Name] = len(s.clips)
		s.clips = append(s.clips, cd)
	}

	return s, nil
}

func (s *Stage) addController(name string) *controller {
	c := &controller{stage: s, index: len(s.controllers), name: name}
	s.controllers = append(s.controllers, c)
	return c
}

// Clips returns the animation clips in document order.
func (s *Stage) Clips() []anim.Clip {
	out := make([]anim.Clip, len(s.clips))
	for i, cd := range s.clips {
		out[i] = cd.clip
	}
	return out
}

// Controllers returns the skins and animated nodes.
func (s *Stage) Controllers() []anim.Controller {
	out := make([]anim.Controller, len(s.controllers))
	for i, c := range s.controllers {
		out[i] = c
	}
	return out
}

// Frame returns the current frame.
func (s *Stage) Frame() int {
	return s.frame
}

// SetFrame moves to frame and re-evaluates every node.
func (s *Stage) SetFrame(frame int) error {
	s.frame = frame
	return s.evaluate()
}

// Evaluate returns the posed positions of an object. Skinned meshes come
// back in world space with an identity matrix, as glTF ignores the
// transform of a skinned mesh node.
func (s *Stage) Evaluate(object string) ([]math3d.Vec3, math3d.Mat4, error) {
	b, ok := s.bindings[object]
	if !ok {
		return nil, math3d.Mat4{}, fmt.Errorf("%q: %w", object, ErrUnknownObject)
	}
	if s.dirty {
		if err := s.evaluate(); err != nil {
			return nil, math3d.Mat4{}, err
		}
	}

	positions := append([]math3d.Vec3(nil), b.rest...)
	weights := s.pose[b.node].Weights
	for t, deltas := range b.targets {
		if t >= len(weights) || weights[t] == 0 {
			continue
		}
		for v := range positions {
			if v < len(deltas) {
				positions[v] = positions[v].Add(deltas[v].Scale(weights[t]))
			}
		}
	}

	if b.skin < 0 || b.skin >= len(s.skins) {
		return positions, s.world[b.node], nil
	}

	skin := s.skins[b.skin]
	jointMats := make([]math3d.Mat4, len(skin.joints))
	for i, j := range skin.joints {
		if j < 0 || j >= len(s.world) {
			jointMats[i] = math3d.Identity()
			continue
		}
		jointMats[i] = s.world[j].Mul(skin.inverseBind[i])
	}

	for v, p := range positions {
		var m math3d.Mat4
		total := 0.0
		for k := range 4 {
			w, j := b.jointWeights[v][k], b.joints[v][k]
			if w == 0 || j < 0 || j >= len(jointMats) {
				continue
			}
			m = m.AddScaled(jointMats[j], w)
			total += w
		}
		if total == 0 {
			positions[v] = s.world[b.node].MulVec3(p)
			continue
		}
		positions[v] = m.MulVec3(p)
	}
	return positions, math3d.Identity(), nil
}

// evaluate rebuilds the pose from the rest pose and every bound clip.
func (s *Stage) evaluate() error {
	var pose []nodePose
	if err := deepcopy.Copy(&pose, s.rest); err != nil {
		return fmt.Errorf("copy rest pose: %w", err)
	}

	t := float64(s.frame) / s.fps
	for _, c := range s.controllers {
		if c.clip == "" {
			continue
		}
		for _, ch := range s.clips[s.clipIndex[c.clip]].channels {
			if s.owner[ch.node] == c.index {
				pose[ch.node].apply(ch.path, ch.Sample(t))
			}
		}
	}

	s.pose = pose
	s.world = worldMatrices(pose, s.parents)
	s.dirty = false
	return nil
}

// restPoses reads every node's local transform.
func restPoses(doc *gltf.Document) []nodePose {
	poses := make([]nodePose, len(doc.Nodes))
	for i, n := range doc.Nodes {
		p := &poses[i]
		if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
			var mat math3d.Mat4
			for k := range m {
				mat[k] = float64(m[k])
			}
			p.Matrix = &mat
		}
		t, r, sc := n.TranslationOrDefault(), n.RotationOrDefault(), n.ScaleOrDefault()
		p.Translation = math3d.V3(float64(t[0]), float64(t[1]), float64(t[2]))
		p.Rotation = [4]float64{float64(r[0]), float64(r[1]), float64(r[2]), float64(r[3])}
		p.Scale = math3d.V3(float64(sc[0]), float64(sc[1]), float64(sc[2]))

		var weights []float64
		for _, w := range n.Weights {
			weights = append(weights, float64(w))
		}
		if weights == nil && n.Mesh != nil && *n.Mesh < len(doc.Meshes) {
			for _, w := range doc.Meshes[*n.Mesh].Weights {
				weights = append(weights, float64(w))
			}
		}
		p.Weights = weights
	}
	return poses
}

// parentIndices maps each node to its parent, -1 for roots.
func parentIndices(doc *gltf.Document) []int {
	parents := make([]int, len(doc.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(parents) {
				parents[c] = i
			}
		}
	}
	return parents
}

// worldMatrices composes local transforms down the node hierarchy.
func worldMatrices(pose []nodePose, parents []int) []math3d.Mat4 {
	world := make([]math3d.Mat4, len(pose))
	done := make([]bool, len(pose))

	var resolve func(i, depth int) math3d.Mat4
	resolve = func(i, depth int) math3d.Mat4 {
		if done[i] {
			return world[i]
		}
		m := pose[i].local()
		if p := parents[i]; p >= 0 && depth < len(pose) {
			m = resolve(p, depth+1).Mul(m)
		}
		world[i], done[i] = m, true
		return m
	}

	for i := range pose {
		resolve(i, 0)
	}
	return world
}

func nameOr(name, prefix string, i int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%s_%d", prefix, i)
}

// uniqueName returns name, or name with a numeric suffix when it was
// already taken.
func uniqueName(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	candidate := fmt.Sprintf("%s.%03d", name, n)
	for seen[candidate] > 0 {
		n++
		candidate = fmt.Sprintf("%s.%03d", name, n)
	}
	seen[candidate] = 1
	return candidate
}
