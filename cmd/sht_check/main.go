// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// sht_check compares the distributed spherical harmonic transforms against the local ones, on an in-process
// H×W process grid, and prints a table with the relative errors of the forward and backward (adjoint) passes.
//
// Cases are either given by the flags (one case per -mesh value) or listed in a YAML file with -config:
//
//	cases:
//	  - name: era5
//	    nlat: 721
//	    nlon: 1440
//	    grid: equiangular
//	    mesh: 2x4
//	  - name: vector
//	    nlat: 64
//	    nlon: 128
//	    grid: legendre-gauss
//	    vector: true
//
// Fields missing in the file take the values of the flags.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/harmonics/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagNumLat   = flag.Int("nlat", 64, "Number of latitudes of the grid.")
	flagNumLon   = flag.Int("nlon", 128, "Number of longitudes of the grid.")
	flagGrid     = flag.String("grid", "legendre-gauss", `Grid type: "equiangular" or "legendre-gauss".`)
	flagLMax     = flag.Int("lmax", -1, "Largest degree of the truncation. Negative for the default of the grid.")
	flagMMax     = flag.Int("mmax", -1, "Largest order of the truncation. Negative for min(lmax, nlon/2).")
	flagMeshes   = xslices.Flag("mesh", []string{"1x1", "2x2"}, "Comma-separated list of HxW process grids.", parseMesh)
	flagBatch    = flag.Int("batch", 2, "Batch size of the fields.")
	flagChannels = flag.Int("channels", 4, "Number of channels of the fields.")
	flagVector   = flag.Bool("vector", false, "Check the vector transforms instead of the scalar ones.")
	flagTol      = flag.Float64("tol", 1e-12, "Largest mean relative error accepted.")
	flagSeed     = flag.Uint64("seed", 42, "Seed for the random fields.")
	flagConfig   = flag.String("config", "", "YAML file with the list of cases to check. "+
		"If set, the grid flags only provide defaults for the fields missing in the file.")
	flagParallelism = flag.Int("parallelism", -2,
		"Maximum number of goroutines per transform: 0 runs sequentially, -1 is unlimited and "+
			"-2 uses the number of CPUs.")
	flagNoProgress = flag.Bool("no_progress", false, "Disable the progress bar.")
)

// parseMesh validates a single -mesh value.
func parseMesh(value string) (string, error) {
	_, _, err := Case{Mesh: value}.ParseMesh()
	return value, err
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %q. See 'sht_check -help'.", flag.Args())
		os.Exit(1)
	}

	defaults := flagsCase()
	var cases []Case
	if *flagConfig != "" {
		cases = must.M1(loadCases(*flagConfig, defaults))
	} else {
		for _, mesh := range *flagMeshes {
			c := defaults
			c.Mesh = mesh
			c.Name = "flags/" + mesh
			cases = append(cases, c)
		}
	}
	if len(cases) == 0 {
		klog.Errorf("No cases to check: set -mesh or -config.")
		os.Exit(1)
	}

	// The progress bar is only shown on terminals.
	output := termenv.NewOutput(os.Stdout)
	var bar *progressbar.ProgressBar
	if !*flagNoProgress && output.Profile != termenv.Ascii {
		output.HideCursor()
		bar = progressbar.NewOptions(len(cases),
			progressbar.OptionSetDescription("checking"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("cases"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionClearOnFinish(),
		)
	}

	rng := rand.New(rand.NewPCG(*flagSeed, *flagSeed+1))
	var results []Result
	var numFailed, numElements int
	for _, c := range cases {
		caseResults, err := runCase(c, parallelism(), rng)
		if err != nil {
			output.ShowCursor()
			klog.Errorf("Invalid case %q: %+v", c.Name, err)
			os.Exit(1)
		}
		for _, r := range caseResults {
			if !r.Passed() {
				numFailed++
			}
		}
		numElements += c.Batch * c.Channels * c.NumLat * c.NumLon
		results = append(results, caseResults...)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
		output.ShowCursor()
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Distributed transforms: %d cases, %s grid points",
		len(cases), humanize.Comma(int64(numElements)))))
	fmt.Println(resultsTable(results))
	if numFailed > 0 {
		klog.Errorf("%d of %d checks failed.", numFailed, len(results))
		os.Exit(1)
	}
}

// flagsCase returns the case described by the grid flags.
func flagsCase() Case {
	c := Case{
		NumLat:   *flagNumLat,
		NumLon:   *flagNumLon,
		Grid:     *flagGrid,
		Batch:    *flagBatch,
		Channels: *flagChannels,
		Vector:   *flagVector,
		Tol:      *flagTol,
	}
	if len(*flagMeshes) > 0 {
		c.Mesh = (*flagMeshes)[0]
	}
	if *flagLMax >= 0 {
		c.LMax = flagLMax
	}
	if *flagMMax >= 0 {
		c.MMax = flagMMax
	}
	return c
}

// parallelism converts -parallelism to the value expected by sht.Config.WithParallelism.
func parallelism() int {
	if *flagParallelism == -2 {
		return runtime.NumCPU()
	}
	return *flagParallelism
}
