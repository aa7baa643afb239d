// Package pointcloud defines an ordered point cloud and the spatial queries the
// registration code needs over one.
//
// Points keep their insertion order and are addressable by index, which lets
// callers hold index-based correspondences between clouds.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor  bool
	HasNormal bool
	HasValue  bool

	MinX, MaxX             float64
	MinY, MaxY             float64
	MinZ, MaxZ             float64
	totalX, totalY, totalZ float64
}

// PointCloud is a general purpose container of points. The cloud is ordered:
// every point has a stable index assigned at insertion time.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// MetaData returns meta data.
	MetaData() MetaData

	// Set appends the given point to the cloud.
	Set(p r3.Vector, d Data) error

	// At returns the position and data of the point at the given index.
	At(i int) (r3.Vector, Data)

	// SetAt overwrites the position of the point at the given index,
	// keeping its data. Meta data bounds are not recomputed.
	SetAt(i int, p r3.Vector)

	// Iterate iterates over all points in the cloud and calls the given
	// function for each point. If the supplied function returns false,
	// iteration will stop after the function returns.
	// numBatches lets you divide up the work. 0 means don't divide.
	// myBatch is used iff numBatches > 0 and is which batch you want.
	Iterate(numBatches, myBatch int, fn func(i int, p r3.Vector, d Data) bool)
}

// NewMetaData returns a new point cloud metadata struct.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the meta data with the new data points.
func (meta *MetaData) Merge(p r3.Vector, data Data) {
	if data != nil {
		if data.HasColor() {
			meta.HasColor = true
		}
		if data.HasNormal() {
			meta.HasNormal = true
		}
		if data.HasValue() {
			meta.HasValue = true
		}
	}

	if p.X > meta.MaxX {
		meta.MaxX = p.X
	}
	if p.Y > meta.MaxY {
		meta.MaxY = p.Y
	}
	if p.Z > meta.MaxZ {
		meta.MaxZ = p.Z
	}

	if p.X < meta.MinX {
		meta.MinX = p.X
	}
	if p.Y < meta.MinY {
		meta.MinY = p.Y
	}
	if p.Z < meta.MinZ {
		meta.MinZ = p.Z
	}
	meta.totalX += p.X
	meta.totalY += p.Y
	meta.totalZ += p.Z
}

// TotalX returns the sum of all X coordinates merged so far.
func (meta *MetaData) TotalX() float64 {
	return meta.totalX
}

// TotalY returns the sum of all Y coordinates merged so far.
func (meta *MetaData) TotalY() float64 {
	return meta.totalY
}

// TotalZ returns the sum of all Z coordinates merged so far.
func (meta *MetaData) TotalZ() float64 {
	return meta.totalZ
}

// DiagonalLength returns the length of the diagonal of the cloud's axis
// aligned bounding box. It is a cheap stand-in for the true diameter.
func (meta *MetaData) DiagonalLength() float64 {
	if meta.MinX > meta.MaxX {
		return 0
	}
	dx := meta.MaxX - meta.MinX
	dy := meta.MaxY - meta.MinY
	dz := meta.MaxZ - meta.MinZ
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// CloudToPoints extracts the positions of a cloud's points into a Vectors slice,
// preserving the cloud's ordering.
func CloudToPoints(cloud PointCloud) []r3.Vector {
	points := make([]r3.Vector, 0, cloud.Size())
	cloud.Iterate(0, 0, func(i int, p r3.Vector, d Data) bool {
		points = append(points, p)
		return true
	})
	return points
}

// CloudCentroid returns the centroid of all points in the cloud, or the zero
// vector for an empty cloud.
func CloudCentroid(cloud PointCloud) r3.Vector {
	n := float64(cloud.Size())
	if n == 0 {
		return r3.Vector{}
	}
	meta := cloud.MetaData()
	return r3.Vector{X: meta.TotalX() / n, Y: meta.TotalY() / n, Z: meta.TotalZ() / n}
}

// CloneCloud returns a new cloud with the same points and data in the same
// order as the given one. Data values are shared, not deep copied.
func CloneCloud(cloud PointCloud) PointCloud {
	out := NewWithPrealloc(cloud.Size())
	cloud.Iterate(0, 0, func(i int, p r3.Vector, d Data) bool {
		// Set on a fresh basic cloud never fails.
		//nolint:errcheck
		out.Set(p, d)
		return true
	})
	return out
}
