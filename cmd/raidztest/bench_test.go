package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templexxx/raidz"
)

func TestPrintReport(t *testing.T) {
	res := raidz.BenchResult{Impl: "scalar"}
	res.Gen[raidz.GenPQR] = 3 << 30
	report := &raidz.BenchReport{Results: []raidz.BenchResult{res}}
	for op := range report.FastestGen {
		report.FastestGen[op] = "scalar"
	}
	for op := range report.FastestRec {
		report.FastestRec[op] = "scalar"
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "cpu: "), lines[0])
	assert.Contains(t, lines[1], "gen_pqr")
	assert.Contains(t, lines[1], "rec_pqr")
	assert.True(t, strings.HasPrefix(lines[2], "scalar"))
	assert.Contains(t, lines[2], "3.0 GiB/s")
	assert.True(t, strings.HasPrefix(lines[3], "fastest"))
}
