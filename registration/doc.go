// Package registration aligns two 3D point clouds with a rigid (optionally
// similarity) transformation by maximizing the Largest Common Pointset: the
// fraction of the target cloud's points that land near reference points after
// transformation.
//
// Instead of brute-force RANSAC over point triples, trials draw a wide planar
// base from the reference cloud and use its pairwise distance invariants to
// enumerate only the congruent point tuples of the target cloud, pruning the
// candidate space from cubic to roughly quadratic. Each candidate is fitted
// with Horn's closed-form absolute orientation solution and scored against a
// KD-tree over the reference cloud.
package registration
