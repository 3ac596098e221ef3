package tsdf

import (
	"github.com/golang/geo/r3"
)

// Offsets of the eight corners of a voxel cell, ordered so corners 0 and 6
// span the main diagonal.
var cellCornerOffsets = [8][3]int{
	{0, 0, 0},
	{1, 0, 0},
	{1, 1, 0},
	{0, 1, 0},
	{0, 0, 1},
	{1, 0, 1},
	{1, 1, 1},
	{0, 1, 1},
}

// Decomposition of a cell into six tetrahedra sharing the 0-6 diagonal.
var cellTetrahedra = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

// Triangulate extracts the zero level set of the signed distance field as a
// triangle soup: three consecutive vertices form one triangle. Positions are
// in world space; normals come from the field gradient. Cells touching any
// unobserved voxel are skipped. The volume is not mutated and the returned
// mesh is freshly allocated.
func (g *RegularGrid) Triangulate() *Mesh {
	mesh := &Mesh{}

	var corners [8]r3.Vector
	var values [8]float64
	for z := 0; z < g.resZ-1; z++ {
		for y := 0; y < g.resY-1; y++ {
			for x := 0; x < g.resX-1; x++ {
				observed := true
				for i, off := range cellCornerOffsets {
					cx, cy, cz := x+off[0], y+off[1], z+off[2]
					idx := g.index(cx, cy, cz)
					if g.weight[idx] <= 0 {
						observed = false
						break
					}
					corners[i] = r3.Vector{
						X: float64(cx) + 0.5,
						Y: float64(cy) + 0.5,
						Z: float64(cz) + 0.5,
					}
					values[i] = float64(g.dist[idx])
				}
				if !observed {
					continue
				}
				for _, tet := range cellTetrahedra {
					g.emitTetrahedron(mesh, &corners, &values, tet)
				}
			}
		}
	}
	return mesh
}

// emitTetrahedron triangulates the zero crossing inside one tetrahedron,
// appending zero, one, or two triangles to the mesh.
func (g *RegularGrid) emitTetrahedron(mesh *Mesh, corners *[8]r3.Vector, values *[8]float64, tet [4]int) {
	mask := 0
	for i, ci := range tet {
		if values[ci] < 0 {
			mask |= 1 << i
		}
	}
	if mask == 0x0 || mask == 0xF {
		return
	}
	// The crossed edges are the same for a sign configuration and its
	// complement, but the surface faces the other way: reuse the
	// construction with reversed winding.
	flipped := false
	if mask > 0x7 {
		mask = ^mask & 0xF
		flipped = true
	}

	edge := func(i, j int) r3.Vector {
		return g.edgeVertex(corners[tet[i]], corners[tet[j]], values[tet[i]], values[tet[j]])
	}
	emit := func(a, b, c r3.Vector) {
		if flipped {
			b, c = c, b
		}
		g.emitTriangle(mesh, a, b, c)
	}
	switch mask {
	case 0x1:
		emit(edge(0, 1), edge(0, 2), edge(0, 3))
	case 0x2:
		emit(edge(1, 0), edge(1, 3), edge(1, 2))
	case 0x3:
		p0, p1, p2, p3 := edge(0, 2), edge(0, 3), edge(1, 3), edge(1, 2)
		emit(p0, p1, p2)
		emit(p0, p2, p3)
	case 0x4:
		emit(edge(2, 0), edge(2, 1), edge(2, 3))
	case 0x5:
		p0, p1, p2, p3 := edge(0, 1), edge(2, 1), edge(2, 3), edge(0, 3)
		emit(p0, p1, p2)
		emit(p0, p2, p3)
	case 0x6:
		p0, p1, p2, p3 := edge(1, 0), edge(2, 0), edge(2, 3), edge(1, 3)
		emit(p0, p1, p2)
		emit(p0, p2, p3)
	case 0x7:
		emit(edge(0, 3), edge(1, 3), edge(2, 3))
	}
}

// edgeVertex interpolates the zero crossing on the edge between two corners
// with opposite-signed values, in grid coordinates.
func (g *RegularGrid) edgeVertex(pa, pb r3.Vector, va, vb float64) r3.Vector {
	t := 0.5
	if va != vb {
		t = va / (va - vb)
	}
	return pa.Add(pb.Sub(pa).Mul(t))
}

func (g *RegularGrid) emitTriangle(mesh *Mesh, a, b, c r3.Vector) {
	for _, p := range []r3.Vector{a, b, c} {
		world := g.worldFromGrid.TransformPoint(p)
		norm, ok := g.gradient(p)
		if !ok {
			norm = r3.Vector{X: 0, Y: 0, Z: 1}
		}
		mesh.Positions = append(mesh.Positions, world)
		mesh.Normals = append(mesh.Normals, norm)
	}
}
