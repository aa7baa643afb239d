package pointcloud

import (
	"github.com/golang/geo/r3"

	"github.com/viam-labs/fourpcs/utils"
)

// basicPointCloud is the basic implementation of the PointCloud interface,
// backed by an ordered slice of points.
type basicPointCloud struct {
	points []PointAndData
	meta   MetaData
}

// PointAndData is a position and its associated attribute data.
type PointAndData struct {
	P r3.Vector
	D Data
}

// New returns an empty PointCloud backed by a basicPointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud backed by a
// basicPointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: make([]PointAndData, 0, size),
		meta:   NewMetaData(),
	}
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

func (cloud *basicPointCloud) At(i int) (r3.Vector, Data) {
	pd := cloud.points[i]
	return pd.P, pd.D
}

func (cloud *basicPointCloud) SetAt(i int, p r3.Vector) {
	cloud.points[i].P = p
}

func (cloud *basicPointCloud) Set(p r3.Vector, d Data) error {
	cloud.points = append(cloud.points, PointAndData{P: p, D: d})
	cloud.meta.Merge(p, d)
	return nil
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(i int, p r3.Vector, d Data) bool) {
	if numBatches <= 0 {
		for i, pd := range cloud.points {
			if !fn(i, pd.P, pd.D) {
				return
			}
		}
		return
	}
	batchSize := (len(cloud.points) + numBatches - 1) / numBatches
	from := myBatch * batchSize
	to := utils.MinInt(from+batchSize, len(cloud.points))
	for i := from; i < to; i++ {
		pd := cloud.points[i]
		if !fn(i, pd.P, pd.D) {
			return
		}
	}
}
