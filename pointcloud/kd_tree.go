package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// kdPoint adapts a cloud point to the gonum kd-tree Comparable interface. It
// carries the index of the point in the source cloud so queries can report
// correspondences.
type kdPoint struct {
	pos   r3.Vector
	index int
}

func (p kdPoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.pos.X
	case 1:
		return p.pos.Y
	default:
		return p.pos.Z
	}
}

// Compare returns the signed distance along dimension d.
func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(kdPoint)
	return p.coord(d) - q.coord(d)
}

// Dims returns the number of dimensions described by the point.
func (p kdPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the points.
func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(kdPoint)
	diff := p.pos.Sub(q.pos)
	return diff.Dot(diff)
}

type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p kdPoints) Len() int                              { return len(p) }
func (p kdPoints) Pivot(d kdtree.Dim) int                { return kdPlane{Dim: d, kdPoints: p}.Pivot() }
func (p kdPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// kdPlane is required by the gonum kd-tree to sort points during construction.
type kdPlane struct {
	kdtree.Dim
	kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return p.kdPoints[i].coord(p.Dim) < p.kdPoints[j].coord(p.Dim)
}

func (p kdPlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.kdPoints = p.kdPoints[start:end]
	return p
}

func (p kdPlane) Swap(i, j int) {
	p.kdPoints[i], p.kdPoints[j] = p.kdPoints[j], p.kdPoints[i]
}

// KDTree is a read-only spatial index over a fixed set of points. It is safe
// for concurrent queries once built.
type KDTree struct {
	tree *kdtree.Tree
	size int
}

// NewKDTree builds a KDTree from a slice of positions. The index returned by
// queries refers to the position in the given slice.
func NewKDTree(points []r3.Vector) *KDTree {
	adapted := make(kdPoints, len(points))
	for i, p := range points {
		adapted[i] = kdPoint{pos: p, index: i}
	}
	return &KDTree{tree: kdtree.New(adapted, false), size: len(points)}
}

// ToKDTree converts a point cloud to a KDTree over its positions.
func ToKDTree(cloud PointCloud) *KDTree {
	return NewKDTree(CloudToPoints(cloud))
}

// Size returns the number of indexed points.
func (t *KDTree) Size() int {
	return t.size
}

// NearestNeighbor returns the index of the point closest to the query, its
// position and the Euclidean distance to it. ok is false for an empty tree.
func (t *KDTree) NearestNeighbor(p r3.Vector) (int, r3.Vector, float64, bool) {
	if t.size == 0 {
		return 0, r3.Vector{}, 0, false
	}
	got, distSq := t.tree.Nearest(kdPoint{pos: p})
	if got == nil {
		return 0, r3.Vector{}, 0, false
	}
	kp := got.(kdPoint)
	return kp.index, kp.pos, math.Sqrt(distSq), true
}

// RadiusSearch returns all indexed points within the given Euclidean radius
// of the query, ordered closest first, along with their distances.
func (t *KDTree) RadiusSearch(p r3.Vector, radius float64) ([]int, []float64) {
	if radius < 0 || t.size == 0 {
		return nil, nil
	}
	keep := kdtree.NewDistKeeper(radius * radius)
	t.tree.NearestSet(keep, kdPoint{pos: p})

	type hit struct {
		index int
		dist  float64
	}
	hits := make([]hit, 0, len(keep.Heap))
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		hits = append(hits, hit{index: c.Comparable.(kdPoint).index, dist: math.Sqrt(c.Dist)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	indices := make([]int, len(hits))
	dists := make([]float64, len(hits))
	for i, h := range hits {
		indices[i] = h.index
		dists[i] = h.dist
	}
	return indices, dists
}

// KNearestNeighbors returns up to k indexed points nearest to the query,
// ordered from closest to farthest, along with their Euclidean distances.
func (t *KDTree) KNearestNeighbors(p r3.Vector, k int) ([]int, []float64) {
	if k <= 0 || t.size == 0 {
		return nil, nil
	}
	keep := kdtree.NewNKeeper(k)
	t.tree.NearestSet(keep, kdPoint{pos: p})

	type hit struct {
		index int
		dist  float64
	}
	hits := make([]hit, 0, k)
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		hits = append(hits, hit{index: c.Comparable.(kdPoint).index, dist: math.Sqrt(c.Dist)})
	}
	// The keeper is a max-heap, not sorted; order closest first.
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	indices := make([]int, len(hits))
	dists := make([]float64, len(hits))
	for i, h := range hits {
		indices[i] = h.index
		dists[i] = h.dist
	}
	return indices, dists
}
