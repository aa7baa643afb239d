package pointcloud

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// NewFromFile returns a pointcloud read in from the given file.
func NewFromFile(fn string) (cloud PointCloud, err error) {
	if ext := filepath.Ext(fn); ext != ".pcd" {
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ReadPCD(f)
}

// WriteToFile writes the point cloud out to the given file as ASCII PCD.
func WriteToFile(cloud PointCloud, fn string) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteToPCD(cloud, f)
}

// This file reads and writes the ASCII flavor of the PCD format. Binary and
// compressed PCD payloads are not supported.

type pcdFieldLayout struct {
	x, y, z int
	nx      int
	rgb     int
	count   int
}

// ReadPCD reads an ASCII PCD formatted stream into a point cloud. Recognized
// fields are x, y, z, normal_x, normal_y, normal_z and rgb (packed 0xRRGGBB);
// any other field is ignored.
func ReadPCD(in io.Reader) (PointCloud, error) {
	scanner := bufio.NewScanner(in)
	layout := pcdFieldLayout{x: -1, y: -1, z: -1, nx: -1, rgb: -1}
	numPoints := -1
	inHeader := true

	cloud := New()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.Fields(line)
		if inHeader {
			switch tokens[0] {
			case "FIELDS":
				layout.count = len(tokens) - 1
				for i, name := range tokens[1:] {
					switch name {
					case "x":
						layout.x = i
					case "y":
						layout.y = i
					case "z":
						layout.z = i
					case "normal_x":
						layout.nx = i
					case "rgb":
						layout.rgb = i
					}
				}
			case "POINTS":
				n, err := strconv.Atoi(tokens[1])
				if err != nil {
					return nil, errors.Wrap(err, "invalid POINTS header")
				}
				numPoints = n
			case "DATA":
				if tokens[1] != "ascii" {
					return nil, errors.Errorf("unsupported PCD data format %q", tokens[1])
				}
				if layout.x < 0 || layout.y < 0 || layout.z < 0 {
					return nil, errors.New("PCD header is missing x, y or z fields")
				}
				inHeader = false
			}
			continue
		}

		if len(tokens) < layout.count {
			return nil, errors.Errorf("point line has %d fields, header declared %d", len(tokens), layout.count)
		}
		p, d, err := parsePCDPoint(tokens, layout)
		if err != nil {
			return nil, err
		}
		if err := cloud.Set(p, d); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if numPoints >= 0 && cloud.Size() != numPoints {
		return nil, errors.Errorf("read %d points, header declared %d", cloud.Size(), numPoints)
	}
	return cloud, nil
}

func parsePCDPoint(tokens []string, layout pcdFieldLayout) (r3.Vector, Data, error) {
	coord := func(i int) (float64, error) {
		return strconv.ParseFloat(tokens[i], 64)
	}
	x, err := coord(layout.x)
	if err != nil {
		return r3.Vector{}, nil, errors.Wrap(err, "invalid x component")
	}
	y, err := coord(layout.y)
	if err != nil {
		return r3.Vector{}, nil, errors.Wrap(err, "invalid y component")
	}
	z, err := coord(layout.z)
	if err != nil {
		return r3.Vector{}, nil, errors.Wrap(err, "invalid z component")
	}

	var d Data
	if layout.nx >= 0 {
		// normal_x, normal_y, normal_z are declared adjacently.
		nx, err := coord(layout.nx)
		if err != nil {
			return r3.Vector{}, nil, errors.Wrap(err, "invalid normal")
		}
		ny, err := coord(layout.nx + 1)
		if err != nil {
			return r3.Vector{}, nil, errors.Wrap(err, "invalid normal")
		}
		nz, err := coord(layout.nx + 2)
		if err != nil {
			return r3.Vector{}, nil, errors.Wrap(err, "invalid normal")
		}
		d = NewNormalData(r3.Vector{X: nx, Y: ny, Z: nz})
	}
	if layout.rgb >= 0 {
		packed, err := strconv.ParseUint(tokens[layout.rgb], 10, 32)
		if err != nil {
			return r3.Vector{}, nil, errors.Wrap(err, "invalid rgb component")
		}
		c := color.NRGBA{
			R: uint8(packed >> 16),
			G: uint8(packed >> 8),
			B: uint8(packed),
			A: 255,
		}
		if d == nil {
			d = NewColoredData(c)
		} else {
			d = d.SetColor(c)
		}
	}
	return r3.Vector{X: x, Y: y, Z: z}, d, nil
}

// WriteToPCD writes the cloud out in ASCII PCD format. Normals and colors are
// written when the cloud's meta data says any point carries them.
func WriteToPCD(cloud PointCloud, out io.Writer) error {
	w := bufio.NewWriter(out)
	meta := cloud.MetaData()

	fields := "x y z"
	size := "4 4 4"
	typ := "F F F"
	count := "1 1 1"
	if meta.HasNormal {
		fields += " normal_x normal_y normal_z"
		size += " 4 4 4"
		typ += " F F F"
		count += " 1 1 1"
	}
	if meta.HasColor {
		fields += " rgb"
		size += " 4"
		typ += " U"
		count += " 1"
	}

	_, err := fmt.Fprintf(w, "VERSION .7\n"+
		"FIELDS %s\n"+
		"SIZE %s\n"+
		"TYPE %s\n"+
		"COUNT %s\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA ascii\n",
		fields, size, typ, count, cloud.Size(), cloud.Size())
	if err != nil {
		return err
	}

	cloud.Iterate(0, 0, func(i int, p r3.Vector, d Data) bool {
		_, err = fmt.Fprintf(w, "%f %f %f", p.X, p.Y, p.Z)
		if err != nil {
			return false
		}
		if meta.HasNormal {
			n := r3.Vector{}
			if d != nil && d.HasNormal() {
				n = d.Normal()
			}
			if _, err = fmt.Fprintf(w, " %f %f %f", n.X, n.Y, n.Z); err != nil {
				return false
			}
		}
		if meta.HasColor {
			var packed uint32
			if d != nil && d.HasColor() {
				r, g, b := d.RGB255()
				packed = uint32(r)<<16 | uint32(g)<<8 | uint32(b)
			}
			if _, err = fmt.Fprintf(w, " %d", packed); err != nil {
				return false
			}
		}
		_, err = fmt.Fprintln(w)
		return err == nil
	})
	if err != nil {
		return err
	}
	return w.Flush()
}
