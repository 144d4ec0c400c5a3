// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/harmonics/pkg/sht"
	"github.com/gomlx/harmonics/pkg/sht/quadrature"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Case is one equivalence check: a grid, a truncation, a process grid and a batch of fields.
type Case struct {
	Name     string  `yaml:"name"`
	NumLat   int     `yaml:"nlat"`
	NumLon   int     `yaml:"nlon"`
	Grid     string  `yaml:"grid"`
	LMax     *int    `yaml:"lmax,omitempty"`
	MMax     *int    `yaml:"mmax,omitempty"`
	Mesh     string  `yaml:"mesh"`
	Batch    int     `yaml:"batch"`
	Channels int     `yaml:"channels"`
	Vector   bool    `yaml:"vector"`
	Tol      float64 `yaml:"tol"`
}

// casesFile is the layout of the -config YAML file.
type casesFile struct {
	Cases []Case `yaml:"cases"`
}

// loadCases reads the list of cases from a YAML file. Missing fields take the defaults of the flags.
func loadCases(path string, defaults Case) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cases file %q", path)
	}
	return parseCases(data, defaults)
}

func parseCases(data []byte, defaults Case) ([]Case, error) {
	var file casesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse cases")
	}
	if len(file.Cases) == 0 {
		return nil, errors.New("no cases defined, expected a top level \"cases:\" list")
	}
	for ii := range file.Cases {
		c := &file.Cases[ii]
		if c.Name == "" {
			c.Name = fmt.Sprintf("case #%d", ii)
		}
		if c.NumLat == 0 {
			c.NumLat = defaults.NumLat
		}
		if c.NumLon == 0 {
			c.NumLon = defaults.NumLon
		}
		if c.Grid == "" {
			c.Grid = defaults.Grid
		}
		if c.Mesh == "" {
			c.Mesh = defaults.Mesh
		}
		if c.Batch == 0 {
			c.Batch = defaults.Batch
		}
		if c.Channels == 0 {
			c.Channels = defaults.Channels
		}
		if c.Tol == 0 {
			c.Tol = defaults.Tol
		}
		if c.LMax == nil {
			c.LMax = defaults.LMax
		}
		if c.MMax == nil {
			c.MMax = defaults.MMax
		}
	}
	return file.Cases, nil
}

// Config returns the transform configuration of the case.
func (c Case) Config() (sht.Config, error) {
	grid, err := quadrature.ParseGridType(c.Grid)
	if err != nil {
		return sht.Config{}, err
	}
	config := sht.NewConfig(c.NumLat, c.NumLon).WithGrid(grid)
	lmax, mmax := -1, -1
	if c.LMax != nil {
		lmax = *c.LMax
	}
	if c.MMax != nil {
		mmax = *c.MMax
	}
	return config.WithTruncation(lmax, mmax), nil
}

// ParseMesh parses the process grid of the case, in the form "HxW" (e.g. "2x2").
func (c Case) ParseMesh() (gridH, gridW int, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(c.Mesh)), "x")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("invalid mesh %q, expected the form HxW (e.g. \"2x2\")", c.Mesh)
	}
	if gridH, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, errors.Wrapf(err, "invalid mesh %q", c.Mesh)
	}
	if gridW, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, errors.Wrapf(err, "invalid mesh %q", c.Mesh)
	}
	return
}
