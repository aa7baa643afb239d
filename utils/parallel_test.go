package utils

import (
	"context"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallel(t *testing.T) {
	const total = 1001

	var counts []int
	var sums []int
	err := GroupWorkParallel(
		context.Background(),
		total,
		4,
		func(numGroups int) {
			test.That(t, numGroups, test.ShouldEqual, 4)
			counts = make([]int, numGroups)
			sums = make([]int, numGroups)
		},
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			count := 0
			sum := 0
			return func(memberNum, workNum int) {
					count++
					sum += workNum
				}, func() {
					counts[groupNum] = count
					sums[groupNum] = sum
				}
		},
	)
	test.That(t, err, test.ShouldBeNil)

	totalCount, totalSum := 0, 0
	for i := range counts {
		totalCount += counts[i]
		totalSum += sums[i]
	}
	// Every work item ran exactly once.
	test.That(t, totalCount, test.ShouldEqual, total)
	test.That(t, totalSum, test.ShouldEqual, total*(total-1)/2)
}

func TestGroupWorkParallelFewerItemsThanWorkers(t *testing.T) {
	var counts []int
	err := GroupWorkParallel(
		context.Background(),
		3,
		16,
		func(numGroups int) {
			counts = make([]int, numGroups)
		},
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			count := 0
			return func(memberNum, workNum int) {
					count++
				}, func() {
					counts[groupNum] = count
				}
		},
	)
	test.That(t, err, test.ShouldBeNil)
	total := 0
	for _, c := range counts {
		total += c
	}
	test.That(t, total, test.ShouldEqual, 3)
}

func TestGroupWorkParallelDefaultWorkers(t *testing.T) {
	ran := 0
	var groups int
	err := GroupWorkParallel(
		context.Background(),
		100,
		0,
		func(numGroups int) {
			groups = numGroups
		},
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			return nil, func() { ran++ }
		},
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, groups, test.ShouldBeGreaterThan, 0)
	test.That(t, ran, test.ShouldEqual, groups)
}
