package tsdf

import (
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Mesh is a triangle soup: every three consecutive vertices form one
// triangle, and Positions and Normals stay in 1:1 correspondence. Ownership
// transfers to the caller on extraction; the volume keeps no reference.
type Mesh struct {
	Positions []r3.Vector
	Normals   []r3.Vector
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Positions) / 3
}

// Transform applies an invertible affine transform in place: positions get
// the full homogeneous transform, normals get the inverse-transpose of the
// linear part and are re-normalized. Vertex order is preserved.
func (m *Mesh) Transform(outputFromWorld mgl64.Mat4) {
	normalMat := outputFromWorld.Inv().Transpose()
	for i, p := range m.Positions {
		v := outputFromWorld.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
		if w := v.W(); w != 0 && w != 1 {
			v = v.Mul(1 / w)
		}
		m.Positions[i] = r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
	}
	for i, n := range m.Normals {
		v := normalMat.Mul4x1(mgl64.Vec4{n.X, n.Y, n.Z, 0})
		out := r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
		if norm := out.Norm(); norm > 0 {
			out = out.Mul(1 / norm)
		}
		m.Normals[i] = out
	}
}

// WritePLY writes the mesh as an ASCII PLY file with per-vertex normals.
func (m *Mesh) WritePLY(out io.Writer) error {
	if _, err := fmt.Fprintf(out, "ply\n"+
		"format ascii 1.0\n"+
		"element vertex %d\n"+
		"property float x\n"+
		"property float y\n"+
		"property float z\n"+
		"property float nx\n"+
		"property float ny\n"+
		"property float nz\n"+
		"element face %d\n"+
		"property list uchar int vertex_indices\n"+
		"end_header\n",
		m.VertexCount(), m.TriangleCount(),
	); err != nil {
		return err
	}
	for i, p := range m.Positions {
		n := m.Normals[i]
		if _, err := fmt.Fprintf(out, "%f %f %f %f %f %f\n", p.X, p.Y, p.Z, n.X, n.Y, n.Z); err != nil {
			return err
		}
	}
	for i := 0; i < m.TriangleCount(); i++ {
		if _, err := fmt.Fprintf(out, "3 %d %d %d\n", 3*i, 3*i+1, 3*i+2); err != nil {
			return err
		}
	}
	return nil
}
