package tsdf

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/fusion/spatialmath"
)

func TestTriangulatePlane(t *testing.T) {
	g, _ := fusedPlaneGrid(t)
	mesh := g.Triangulate()

	test.That(t, mesh.TriangleCount(), test.ShouldBeGreaterThan, 0)
	test.That(t, len(mesh.Positions), test.ShouldEqual, len(mesh.Normals))
	test.That(t, len(mesh.Positions)%3, test.ShouldEqual, 0)

	interior := 0
	for i, p := range mesh.Positions {
		test.That(t, math.Abs(p.Z-testPlaneZ), test.ShouldBeLessThan, 1e-3)
		// Away from the edge of the observed region the gradient is well
		// defined and normals point out of the surface, back toward the
		// viewer.
		if math.Abs(p.X) < 0.3 && math.Abs(p.Y) < 0.3 {
			test.That(t, mesh.Normals[i].Dot(r3.Vector{Z: -1}), test.ShouldBeGreaterThan, 0.99)
			interior++
		}
	}
	test.That(t, interior, test.ShouldBeGreaterThan, 0)
}

// windingNormal is the geometric normal implied by a triangle's vertex
// order.
func windingNormal(a, b, c r3.Vector) r3.Vector {
	return b.Sub(a).Cross(c.Sub(a))
}

func TestTriangulateWindingConsistent(t *testing.T) {
	// Observed from the origin looking down +Z, the wall's surface faces
	// -Z; every triangle must be wound to match, not just carry a matching
	// shading normal.
	g, _ := fusedPlaneGrid(t)
	mesh := g.Triangulate()
	test.That(t, mesh.TriangleCount(), test.ShouldBeGreaterThan, 0)
	for i := 0; i < mesh.TriangleCount(); i++ {
		wn := windingNormal(mesh.Positions[3*i], mesh.Positions[3*i+1], mesh.Positions[3*i+2])
		test.That(t, wn.Norm(), test.ShouldBeGreaterThan, 0.0)
		test.That(t, wn.Dot(r3.Vector{Z: -1}), test.ShouldBeGreaterThan, 0.0)
	}

	// The same wall observed from the far side faces +Z, flipping every
	// tetrahedron's sign configuration.
	g2 := newTestGrid(t)
	behindPose := spatialmath.NewPoseFromAxisAngle(r3.Vector{Y: 1}, math.Pi, r3.Vector{Z: 2})
	test.That(t, g2.Fuse(testCameraAt(behindPose), planeDepthMap(t, testPlaneZ)), test.ShouldBeNil)
	mesh2 := g2.Triangulate()
	test.That(t, mesh2.TriangleCount(), test.ShouldBeGreaterThan, 0)
	for i := 0; i < mesh2.TriangleCount(); i++ {
		wn := windingNormal(mesh2.Positions[3*i], mesh2.Positions[3*i+1], mesh2.Positions[3*i+2])
		test.That(t, wn.Norm(), test.ShouldBeGreaterThan, 0.0)
		test.That(t, wn.Dot(r3.Vector{Z: 1}), test.ShouldBeGreaterThan, 0.0)
	}
}

func TestTriangulateEmptyVolume(t *testing.T) {
	g := newTestGrid(t)
	mesh := g.Triangulate()
	test.That(t, mesh.VertexCount(), test.ShouldEqual, 0)
	test.That(t, mesh.TriangleCount(), test.ShouldEqual, 0)
}

func TestTriangulateAfterReset(t *testing.T) {
	g, _ := fusedPlaneGrid(t)
	g.Reset()
	mesh := g.Triangulate()
	test.That(t, mesh.TriangleCount(), test.ShouldEqual, 0)
}

func TestMeshTransform(t *testing.T) {
	g, _ := fusedPlaneGrid(t)

	outputFromWorld := spatialmath.NewPose(
		spatialmath.NewPoseFromAxisAngle(r3.Vector{Z: 1}, math.Pi/2, r3.Vector{}).Rotation(),
		r3.Vector{X: 0.5, Y: -0.25, Z: 1},
	)
	mat := outputFromWorld.Matrix()

	reference := g.Triangulate()
	transformed := g.Triangulate()
	transformed.Transform(mat)

	test.That(t, transformed.VertexCount(), test.ShouldEqual, reference.VertexCount())
	for i, p := range reference.Positions {
		want := outputFromWorld.TransformPoint(p)
		test.That(t, transformed.Positions[i].Sub(want).Norm(), test.ShouldBeLessThan, 1e-9)

		wantN := outputFromWorld.RotateVector(reference.Normals[i])
		test.That(t, transformed.Normals[i].Sub(wantN).Norm(), test.ShouldBeLessThan, 1e-9)
		test.That(t, math.Abs(transformed.Normals[i].Norm()-1), test.ShouldBeLessThan, 1e-9)
	}
}

func TestMeshTransformIdentity(t *testing.T) {
	g, _ := fusedPlaneGrid(t)
	reference := g.Triangulate()
	ident := g.Triangulate()
	ident.Transform(mgl64.Ident4())
	test.That(t, ident.Positions, test.ShouldResemble, reference.Positions)
}

func TestMeshWritePLY(t *testing.T) {
	g, _ := fusedPlaneGrid(t)
	mesh := g.Triangulate()

	var buf bytes.Buffer
	test.That(t, mesh.WritePLY(&buf), test.ShouldBeNil)
	out := buf.String()
	test.That(t, out, test.ShouldContainSubstring, "ply\n")
	test.That(t, out, test.ShouldContainSubstring, "element vertex")
	test.That(t, out, test.ShouldContainSubstring, "element face")
	test.That(t, out, test.ShouldContainSubstring, "end_header")
}
