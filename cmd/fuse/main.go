// Package main contains a command that fuses depth frames from multiple
// calibrated cameras into a shared TSDF volume and writes the triangulated
// surface as a PLY mesh, with an optional raycast point cloud.
package main

import (
	"context"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/fusion/pipeline"
	"go.viam.com/fusion/rimage"
	"go.viam.com/fusion/tsdf"
)

var logger = golog.NewDevelopmentLogger("fuse")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Config     string `flag:"config,required,usage=pipeline config JSON"`
	Depth      string `flag:"depth,required,usage=comma-separated 16-bit PNG depth frames (millimeters), one per camera"`
	Out        string `flag:"out,default=mesh.ply,usage=output PLY mesh path"`
	RaycastOut string `flag:"raycast-out,usage=optional output PCD of a raycast from camera 0"`
	Batch      bool   `flag:"batch,usage=fuse all cameras in one batched sweep"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	return runFuse(argsParsed, logger)
}

func runFuse(args Arguments, logger golog.Logger) error {
	cfg, err := pipeline.ReadConfigFromFile(args.Config)
	if err != nil {
		return err
	}
	p, err := pipeline.New(*cfg, logger)
	if err != nil {
		return err
	}

	depthPaths := strings.Split(args.Depth, ",")
	if len(depthPaths) != p.NumCameras() {
		return errors.Errorf("have %d depth frames but %d cameras", len(depthPaths), p.NumCameras())
	}
	for i, path := range depthPaths {
		buffer, err := p.InputBuffer(i)
		if err != nil {
			return err
		}
		if err := loadDepthPNG(path, buffer.DepthMeters); err != nil {
			return errors.Wrapf(err, "loading depth frame for camera %d", i)
		}
		if err := p.NotifyInputUpdated(i, false, true); err != nil {
			return err
		}
	}

	if args.Batch {
		err = p.FuseMultiple()
	} else {
		err = p.Fuse()
	}
	if err != nil {
		return err
	}

	mesh := p.Triangulate(mgl64.Ident4())
	logger.Infow("triangulated", "vertices", mesh.VertexCount(), "triangles", mesh.TriangleCount())
	if err := writeMesh(args.Out, mesh); err != nil {
		return err
	}

	if args.RaycastOut != "" {
		if err := writeRaycast(p, args.RaycastOut); err != nil {
			return err
		}
	}
	return nil
}

func writeMesh(path string, mesh *tsdf.Mesh) (err error) {
	//nolint:gosec
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, out.Close())
	}()
	return mesh.WritePLY(out)
}

// writeRaycast renders the volume from camera 0's own viewpoint and writes
// the hit positions as a PCD point cloud.
func writeRaycast(p *pipeline.MultiCameraPipeline, path string) (err error) {
	viewpoint, err := p.DepthCamera(0)
	if err != nil {
		return err
	}
	points, err := rimage.NewPointMap(viewpoint.Intrinsics.Width, viewpoint.Intrinsics.Height)
	if err != nil {
		return err
	}
	normals, err := rimage.NewPointMap(viewpoint.Intrinsics.Width, viewpoint.Intrinsics.Height)
	if err != nil {
		return err
	}
	if err := p.Raycast(viewpoint, points, normals); err != nil {
		return err
	}
	//nolint:gosec
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, out.Close())
	}()
	return points.WritePCD(out)
}

// loadDepthPNG reads a 16-bit grayscale PNG of millimeter depths into a
// metric depth map. The frame resolution must match the calibrated one.
func loadDepthPNG(path string, dst *rimage.DepthMap) (err error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	img, err := png.Decode(f)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	if bounds.Dx() != dst.Width() || bounds.Dy() != dst.Height() {
		return errors.Errorf("frame resolution (%d, %d) does not match calibrated resolution (%d, %d)",
			bounds.Dx(), bounds.Dy(), dst.Width(), dst.Height())
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		return errors.Errorf("expected 16-bit grayscale PNG, got %T", img)
	}
	for y := 0; y < dst.Height(); y++ {
		for x := 0; x < dst.Width(); x++ {
			mm := gray.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y
			dst.Set(x, y, float32(mm)/1000.0)
		}
	}
	return nil
}
