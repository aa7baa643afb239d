package pointcloud

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Sampler produces a subsampled working copy of a cloud. The input cloud is
// never mutated. Implementations draw any randomness they need from the given
// generator so that runs stay reproducible under a fixed seed.
type Sampler interface {
	Sample(cloud PointCloud, targetSize int, r *rand.Rand) (PointCloud, error)
}

// UniformSampler picks targetSize points uniformly at random without
// replacement, keeping the relative order of the survivors.
type UniformSampler struct{}

// Sample implements Sampler.
func (UniformSampler) Sample(cloud PointCloud, targetSize int, r *rand.Rand) (PointCloud, error) {
	if targetSize <= 0 {
		return nil, errors.Errorf("sample target size must be positive, got %d", targetSize)
	}
	n := cloud.Size()
	if n <= targetSize {
		return CloneCloud(cloud), nil
	}

	// Partial Fisher-Yates over the index set, then restore cloud order.
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	for i := 0; i < targetSize; i++ {
		j := i + r.Intn(n-i)
		indices[i], indices[j] = indices[j], indices[i]
	}
	chosen := indices[:targetSize]
	picked := make([]bool, n)
	for _, i := range chosen {
		picked[i] = true
	}

	out := NewWithPrealloc(targetSize)
	cloud.Iterate(0, 0, func(i int, p r3.Vector, d Data) bool {
		if picked[i] {
			//nolint:errcheck
			out.Set(p, d)
		}
		return true
	})
	return out, nil
}

// IdentitySampler returns the cloud unchanged (as a copy), regardless of the
// target size. Useful in tests and for pre-decimated inputs.
type IdentitySampler struct{}

// Sample implements Sampler.
func (IdentitySampler) Sample(cloud PointCloud, targetSize int, r *rand.Rand) (PointCloud, error) {
	return CloneCloud(cloud), nil
}
