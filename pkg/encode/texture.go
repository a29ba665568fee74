package encode

import (
	"sort"

	"github.com/taigrr/ps1export/pkg/models"
)

// Texture is one entry of the scene's texture table.
type Texture struct {
	Name     string
	Width    int
	Height   int
	HasAlpha bool
}

// TextureIndex collects the textures referenced by a scene. Names are the
// identity: the first image seen under a name is kept. Indices follow the
// sorted name order, so they do not depend on traversal order.
type TextureIndex struct {
	byName map[string]Texture
	sorted []string
}

// NewTextureIndex creates an empty index.
func NewTextureIndex() *TextureIndex {
	return &TextureIndex{byName: make(map[string]Texture)}
}

// Add records img. Later images with an already known name are ignored.
func (x *TextureIndex) Add(img *models.Image) {
	if img == nil {
		return
	}
	if _, ok := x.byName[img.Name]; ok {
		return
	}
	x.byName[img.Name] = Texture{
		Name:     img.Name,
		Width:    img.Width,
		Height:   img.Height,
		HasAlpha: img.HasAlpha,
	}
	x.sorted = nil
}

// Len returns the number of distinct textures.
func (x *TextureIndex) Len() int {
	return len(x.byName)
}

// Index returns the final index of name, or -1 when it was never added.
func (x *TextureIndex) Index(name string) int {
	names := x.names()
	i := sort.SearchStrings(names, name)
	if i < len(names) && names[i] == name {
		return i
	}
	return -1
}

// Textures returns the entries in index order.
func (x *TextureIndex) Textures() []Texture {
	names := x.names()
	out := make([]Texture, len(names))
	for i, n := range names {
		out[i] = x.byName[n]
	}
	return out
}

func (x *TextureIndex) names() []string {
	if x.sorted == nil && len(x.byName) > 0 {
		x.sorted = make([]string, 0, len(x.byName))
		for n := range x.byName {
			x.sorted = append(x.sorted, n)
		}
		sort.Strings(x.sorted)
	}
	return x.sorted
}
