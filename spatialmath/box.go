package spatialmath

import (
	"github.com/golang/geo/r3"
)

// Box3 is an axis-aligned box, described by its minimum and maximum corners.
type Box3 struct {
	Min r3.Vector
	Max r3.Vector
}

// NewBox3 returns the axis-aligned box spanning the two given corners.
func NewBox3(min, max r3.Vector) Box3 {
	return Box3{Min: min, Max: max}
}

// Center returns the box center.
func (b Box3) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the box extent along each axis.
func (b Box3) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Corners returns the eight corners of the box.
func (b Box3) Corners() [8]r3.Vector {
	var corners [8]r3.Vector
	for i := 0; i < 8; i++ {
		c := b.Min
		if i&1 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&4 != 0 {
			c.Z = b.Max.Z
		}
		corners[i] = c
	}
	return corners
}

// Contains reports whether the point lies inside the box (inclusive).
func (b Box3) Contains(pt r3.Vector) bool {
	return pt.X >= b.Min.X && pt.X <= b.Max.X &&
		pt.Y >= b.Min.Y && pt.Y <= b.Max.Y &&
		pt.Z >= b.Min.Z && pt.Z <= b.Max.Z
}
