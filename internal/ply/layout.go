package ply

import "fmt"

// Names used by the Gaussian splat vertex.
const (
	VertexElement      = "vertex"
	DefaultAnchor      = "f_dc_2"
	DefaultFieldPrefix = "f_rest_"
	DefaultFieldCount  = 45
)

// GaussianSplatLayout returns the vertex layout the renderer loads: position,
// normal, three DC colour terms, 45 higher-order harmonics, opacity, three
// scales and a rotation quaternion, all float.
func GaussianSplatLayout() []Property {
	var props []Property
	add := func(names ...string) {
		for _, n := range names {
			props = append(props, Property{Name: n, Type: Float, TypeName: "float"})
		}
	}
	add("x", "y", "z", "nx", "ny", "nz", "f_dc_0", "f_dc_1", "f_dc_2")
	add(indexedNames(DefaultFieldPrefix, DefaultFieldCount)...)
	add("opacity", "scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3")
	return props
}

// ReferenceStride returns the record size of [GaussianSplatLayout], 248 bytes.
func ReferenceStride() int {
	s, _ := NewSchema(GaussianSplatLayout())
	return s.Stride()
}

// CompactSplatLayout is GaussianSplatLayout without the f_rest fields: the
// 17-float vertex the reconstruction writes.
func CompactSplatLayout() []Property {
	var props []Property
	for _, p := range GaussianSplatLayout() {
		if len(p.Name) > len(DefaultFieldPrefix) && p.Name[:len(DefaultFieldPrefix)] == DefaultFieldPrefix {
			continue
		}
		props = append(props, p)
	}
	return props
}

func indexedNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return names
}
