package rimage

import (
	"fmt"
	"io"
)

// WritePCD writes the valid samples of a point map as an ASCII PCD point
// cloud, one x y z row per hit.
func (pm *PointMap) WritePCD(out io.Writer) error {
	n := pm.ValidCount()
	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA ascii\n",
		n, 1, n,
	)
	if err != nil {
		return err
	}
	for y := 0; y < pm.height; y++ {
		for x := 0; x < pm.width; x++ {
			pt, ok := pm.At(x, y)
			if !ok {
				continue
			}
			if _, err := fmt.Fprintf(out, "%f %f %f\n", pt.X, pt.Y, pt.Z); err != nil {
				return err
			}
		}
	}
	return nil
}
