package main

import (
	"encoding/json"
	"os"
	"time"
)

const (
	minAshift   = 9
	maxAshift   = 13
	maxOffset   = 12
	maxDataCols = 255 - 3
	minSizeExp  = 9
	maxSizeExp  = 24
)

// Config for raidztest
type Config struct {
	Ashift    uint   `json:"ashift"`
	Offset    uint   `json:"offset"`
	DataCols  int    `json:"dcols"`
	Size      uint   `json:"size"`
	Sweep     bool   `json:"sweep"`
	Timeout   int    `json:"timeout"`
	Benchmark bool   `json:"benchmark"`
	BenchTime int    `json:"benchtime"`
	Verbose   int    `json:"verbose"`
	Sanity    bool   `json:"sanity"`
	Impl      string `json:"impl"`
	Textfile  string `json:"textfile"`
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path) // For read access.
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}

// testCase is one block geometry to check.
type testCase struct {
	Ashift   uint
	Offset   uint64
	DataCols int
	Size     int
}

func clamp(v, lo, hi int) int {
	return min(hi, max(lo, v))
}

// testCase clamps the configured exponents into the supported ranges.
func (c *Config) testCase() testCase {
	return testCase{
		Ashift:   uint(clamp(int(c.Ashift), minAshift, maxAshift)),
		Offset:   uint64(1) << min(c.Offset, maxOffset) >> minAshift << minAshift,
		DataCols: clamp(c.DataCols, 1, maxDataCols),
		Size:     1 << clamp(int(c.Size), minSizeExp, maxSizeExp),
	}
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) benchTime() time.Duration {
	return time.Duration(c.BenchTime) * time.Millisecond
}
