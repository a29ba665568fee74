package models

// NodeKind identifies the role of a shader node.
type NodeKind int

const (
	NodeOther        NodeKind = iota
	NodeImageTexture          // Samples an image
	NodePrincipled            // Physically-based shading node
)

// Principled input names.
const (
	InputSpecularIORLevel = "Specular IOR Level"
	InputSpecular         = "Specular"
	InputMetallic         = "Metallic"
)

// BlendMode is the material's transparency mode.
type BlendMode int

const (
	BlendOpaque BlendMode = iota
	BlendClip             // Alpha-tested
	BlendBlend            // Alpha-blended
)

// Image describes a texture image. Pixel data is never kept.
type Image struct {
	Name     string
	Width    int
	Height   int
	HasAlpha bool
}

// ShaderNode is a single node of a material's shading graph.
type ShaderNode struct {
	Kind   NodeKind
	Name   string
	Image  *Image             // Set for image-texture nodes
	Inputs map[string]float64 // Scalar inputs by socket name
}

// Input returns a scalar input and whether it was present.
func (n *ShaderNode) Input(name string) (float64, bool) {
	if n.Inputs == nil {
		return 0, false
	}
	v, ok := n.Inputs[name]
	return v, ok
}

// Material is a named shading graph.
type Material struct {
	Name  string
	Nodes []ShaderNode
	Blend BlendMode
}

// FirstNode returns the first node of the given kind, or nil.
func (m *Material) FirstNode(kind NodeKind) *ShaderNode {
	if m == nil {
		return nil
	}
	for i := range m.Nodes {
		if m.Nodes[i].Kind == kind {
			if kind == NodeImageTexture && m.Nodes[i].Image == nil {
				continue
			}
			return &m.Nodes[i]
		}
	}
	return nil
}
