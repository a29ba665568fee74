package models

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/ps1export/pkg/math3d"
)

var errSparse = errors.New("sparse accessors are not supported")

// readAccessor reads any accessor as a flat float64 slice with width
// components per element. Normalized integers map to [0,1] or [-1,1].
func readAccessor(doc *gltf.Document, accessorIdx int) ([]float64, int, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, 0, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	accessor := doc.Accessors[accessorIdx]
	if accessor.Sparse != nil {
		return nil, 0, errSparse
	}

	width := componentCount(accessor.Type)
	size := componentSize(accessor.ComponentType)
	if width == 0 || size == 0 {
		return nil, 0, fmt.Errorf("unsupported accessor type: %v / %v", accessor.Type, accessor.ComponentType)
	}

	count := accessor.Count
	result := make([]float64, count*width)

	// Accessors without a buffer view are all zeros.
	if accessor.BufferView == nil {
		return result, width, nil
	}

	bufferView := doc.BufferViews[*accessor.BufferView]
	buffer := doc.Buffers[bufferView.Buffer]

	// gltf.Open loads embedded, data-URI and external buffers alike.
	bufData := buffer.Data
	if bufData == nil {
		return nil, 0, fmt.Errorf("buffer %d has no data", bufferView.Buffer)
	}

	// Calculate data bounds
	start := bufferView.ByteOffset + accessor.ByteOffset
	stride := bufferView.ByteStride
	if stride == 0 {
		stride = size * width
	}
	if count > 0 && start+(count-1)*stride+size*width > len(bufData) {
		return nil, 0, fmt.Errorf("accessor %d exceeds buffer %d", accessorIdx, bufferView.Buffer)
	}

	for i := range count {
		offset := start + i*stride
		for j := range width {
			result[i*width+j] = readComponent(bufData[offset+j*size:], accessor.ComponentType, accessor.Normalized)
		}
	}

	return result, width, nil
}

// readComponent decodes one little-endian component.
func readComponent(b []byte, ct gltf.ComponentType, normalized bool) float64 {
	switch ct {
	case gltf.ComponentFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case gltf.ComponentUbyte:
		if normalized {
			return float64(b[0]) / 255
		}
		return float64(b[0])
	case gltf.ComponentByte:
		if normalized {
			return max(float64(int8(b[0]))/127, -1)
		}
		return float64(int8(b[0]))
	case gltf.ComponentUshort:
		v := binary.LittleEndian.Uint16(b)
		if normalized {
			return float64(v) / 65535
		}
		return float64(v)
	case gltf.ComponentShort:
		v := int16(binary.LittleEndian.Uint16(b))
		if normalized {
			return max(float64(v)/32767, -1)
		}
		return float64(v)
	case gltf.ComponentUint:
		return float64(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func componentSize(ct gltf.ComponentType) int {
	switch ct {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	case gltf.ComponentFloat, gltf.ComponentUint:
		return 4
	}
	return 0
}

func componentCount(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	}
	return 0
}

// readVec3Accessor reads Vec3 data from a glTF accessor.
func readVec3Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec3, error) {
	data, width, err := readAccessor(doc, accessorIdx)
	if err != nil {
		return nil, err
	}
	if width != 3 {
		return nil, fmt.Errorf("expected VEC3, got %d components", width)
	}

	result := make([]math3d.Vec3, len(data)/3)
	for i := range result {
		result[i] = math3d.V3(data[i*3], data[i*3+1], data[i*3+2])
	}
	return result, nil
}

// readVec2Accessor reads Vec2 data from a glTF accessor.
func readVec2Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec2, error) {
	data, width, err := readAccessor(doc, accessorIdx)
	if err != nil {
		return nil, err
	}
	if width != 2 {
		return nil, fmt.Errorf("expected VEC2, got %d components", width)
	}

	result := make([]math3d.Vec2, len(data)/2)
	for i := range result {
		result[i] = math3d.V2(data[i*2], data[i*2+1])
	}
	return result, nil
}

// readScalarAccessor reads SCALAR data from a glTF accessor.
func readScalarAccessor(doc *gltf.Document, accessorIdx int) ([]float64, error) {
	data, width, err := readAccessor(doc, accessorIdx)
	if err != nil {
		return nil, err
	}
	if width != 1 {
		return nil, fmt.Errorf("expected SCALAR, got %d components", width)
	}
	return data, nil
}

// readIndices reads index data from a glTF accessor.
func readIndices(doc *gltf.Document, accessorIdx int) ([]int, error) {
	data, err := readScalarAccessor(doc, accessorIdx)
	if err != nil {
		return nil, err
	}
	result := make([]int, len(data))
	for i, x := range data {
		result[i] = int(x)
	}
	return result, nil
}

// readColorAccessor reads VEC3 or VEC4 colors, dropping alpha.
func readColorAccessor(doc *gltf.Document, accessorIdx int) ([]Color, error) {
	data, width, err := readAccessor(doc, accessorIdx)
	if err != nil {
		return nil, err
	}
	if width != 3 && width != 4 {
		return nil, fmt.Errorf("expected VEC3 or VEC4 color, got %d components", width)
	}

	result := make([]Color, len(data)/width)
	for i := range result {
		result[i] = Color{data[i*width], data[i*width+1], data[i*width+2]}
	}
	return result, nil
}

// readVec4Accessor reads VEC4 data such as JOINTS_0 and WEIGHTS_0.
func readVec4Accessor(doc *gltf.Document, accessorIdx int) ([][4]float64, error) {
	data, width, err := readAccessor(doc, accessorIdx)
	if err != nil {
		return nil, err
	}
	if width != 4 {
		return nil, fmt.Errorf("expected VEC4, got %d components", width)
	}

	result := make([][4]float64, len(data)/4)
	for i := range result {
		copy(result[i][:], data[i*4:i*4+4])
	}
	return result, nil
}

// readMat4Accessor reads MAT4 data such as inverse bind matrices.
func readMat4Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Mat4, error) {
	data, width, err := readAccessor(doc, accessorIdx)
	if err != nil {
		return nil, err
	}
	if width != 16 {
		return nil, fmt.Errorf("expected MAT4, got %d components", width)
	}

	result := make([]math3d.Mat4, len(data)/16)
	for i := range result {
		copy(result[i][:], data[i*16:i*16+16])
	}
	return result, nil
}
