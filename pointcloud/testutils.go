package pointcloud

import (
	"math/rand"

	"github.com/golang/geo/r3"
)

// NewCubeCloud creates a cloud of n points drawn from the surface of an axis
// aligned cube with the given side length centered at the origin. Each point
// carries the outward face normal. Point placement comes from the given
// generator so callers can make reproducible clouds.
func NewCubeCloud(side float64, n int, r *rand.Rand) PointCloud {
	half := side / 2
	cloud := NewWithPrealloc(n)
	for i := 0; i < n; i++ {
		u := (r.Float64() - 0.5) * side
		v := (r.Float64() - 0.5) * side
		var p, normal r3.Vector
		switch i % 6 {
		case 0:
			p, normal = r3.Vector{X: half, Y: u, Z: v}, r3.Vector{X: 1, Y: 0, Z: 0}
		case 1:
			p, normal = r3.Vector{X: -half, Y: u, Z: v}, r3.Vector{X: -1, Y: 0, Z: 0}
		case 2:
			p, normal = r3.Vector{X: u, Y: half, Z: v}, r3.Vector{X: 0, Y: 1, Z: 0}
		case 3:
			p, normal = r3.Vector{X: u, Y: -half, Z: v}, r3.Vector{X: 0, Y: -1, Z: 0}
		case 4:
			p, normal = r3.Vector{X: u, Y: v, Z: half}, r3.Vector{X: 0, Y: 0, Z: 1}
		default:
			p, normal = r3.Vector{X: u, Y: v, Z: -half}, r3.Vector{X: 0, Y: 0, Z: -1}
		}
		//nolint:errcheck
		cloud.Set(p, NewNormalData(normal))
	}
	return cloud
}

// NewRandomCloud creates a cloud of n points uniformly distributed in a cube
// of the given side length centered at the origin, with no attributes.
func NewRandomCloud(side float64, n int, r *rand.Rand) PointCloud {
	cloud := NewWithPrealloc(n)
	for i := 0; i < n; i++ {
		p := r3.Vector{X: (r.Float64() - 0.5) * side, Y: (r.Float64() - 0.5) * side, Z: (r.Float64() - 0.5) * side}

		//nolint:errcheck
		cloud.Set(p, NewBasicData())
	}
	return cloud
}
