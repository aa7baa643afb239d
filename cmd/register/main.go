// Package main is a command line tool that rigidly aligns a target point
// cloud to a reference point cloud and reports the recovered transform.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/edaniels/golog"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/fourpcs/pointcloud"
	"github.com/viam-labs/fourpcs/registration"
	"github.com/viam-labs/fourpcs/utils"
)

func main() {
	logger := golog.NewDevelopmentLogger("register")
	app := &cli.App{
		Name:      "register",
		Usage:     "align a target point cloud to a reference point cloud",
		ArgsUsage: "<reference.pcd> <target.pcd>",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:     "overlap",
				Usage:    "estimated overlap fraction in (0, 1]",
				Required: true,
			},
			&cli.Float64Flag{
				Name:  "delta",
				Usage: "distance tolerance in units of the reference cloud's mean point spacing",
				Value: 2.0,
			},
			&cli.IntFlag{
				Name:  "sample-size",
				Usage: "working copy size per cloud",
				Value: 200,
			},
			&cli.Float64Flag{
				Name:  "max-angle",
				Usage: "maximum plausible rotation in degrees, 0 for unconstrained",
			},
			&cli.Float64Flag{
				Name:  "target-lcp",
				Usage: "stop once this LCP fraction is reached",
				Value: 1.0,
			},
			&cli.IntFlag{
				Name:  "trials",
				Usage: "explicit trial budget, 0 to derive from overlap and confidence",
			},
			&cli.BoolFlag{
				Name:  "scale",
				Usage: "also estimate a uniform scale factor",
			},
			&cli.BoolFlag{
				Name:  "three-point",
				Usage: "use the 3-point algorithm variant",
			},
			&cli.IntFlag{
				Name:  "threads",
				Usage: "verification worker count, 0 for all processors",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "random seed",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "write the aligned target cloud to this PCD file",
			},
		},
		Action: func(c *cli.Context) error {
			return runRegistration(c, logger)
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func runRegistration(c *cli.Context, logger golog.Logger) error {
	if c.NArg() != 2 {
		return cli.ShowAppHelp(c)
	}
	reference, err := pointcloud.NewFromFile(c.Args().Get(0))
	if err != nil {
		return err
	}
	target, err := pointcloud.NewFromFile(c.Args().Get(1))
	if err != nil {
		return err
	}
	logger.Infow("clouds loaded",
		"reference", reference.Size(), "target", target.Size())

	opts := registration.DefaultOptions()
	opts.OverlapEstimate = c.Float64("overlap")
	opts.Delta = c.Float64("delta")
	opts.SampleSize = c.Int("sample-size")
	opts.MaxAngle = utils.DegToRad(c.Float64("max-angle"))
	opts.TerminateThreshold = c.Float64("target-lcp")
	opts.MaxTrials = c.Int("trials")
	opts.EstimateScale = c.Bool("scale")
	opts.Threads = c.Int("threads")
	opts.Seed = c.Int64("seed")

	gen := registration.NewFourPointGenerator()
	if c.Bool("three-point") {
		gen = registration.NewThreePointGenerator()
	}
	matcher := registration.NewWithGenerator(gen, opts, logger)

	lastReport := 0.0
	visitor := registration.VisitorFunc(func(lcp, progress float64, transform *registration.Transform) {
		if progress-lastReport >= 0.1 || progress >= 1 {
			lastReport = progress
			logger.Infow("search progress", "lcp", lcp, "progress", fmt.Sprintf("%.0f%%", progress*100))
		}
	})

	lcp, err := matcher.ComputeTransformation(
		context.Background(), reference, target, nil, pointcloud.UniformSampler{}, visitor)
	if err != nil {
		return err
	}
	best := matcher.BestTransform()
	logger.Infow("registration complete",
		"lcp", lcp,
		"rotationDeg", utils.RadToDeg(registration.RotationAngle(best.Rotation())),
		"scale", best.Scale,
		"rms", best.RMS)
	fmt.Printf("transform:\n%v\n", mat.Formatted(best.Matrix, mat.Prefix(""), mat.Squeeze()))

	if out := c.String("out"); out != "" {
		if err := pointcloud.WriteToFile(target, out); err != nil {
			return err
		}
		logger.Infow("aligned cloud written", "path", out)
	}
	return nil
}
