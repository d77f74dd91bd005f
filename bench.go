package raidz

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	benchDataCols = 8
	benchSize     = 128 * 1024
	benchAshift   = 9
	benchBatch    = 5
	benchFill     = 0xAA
)

// Reconstruction targets per RecOp on an 8+3 map: parity columns
// listed as targets are the ones the op must not use.
var benchRecTargets = [recNum][]int{
	RecP:   {1, 2, 3},
	RecQ:   {0, 2, 3},
	RecR:   {0, 1, 3},
	RecPQ:  {2, 3, 4},
	RecPR:  {1, 3, 4},
	RecQR:  {0, 3, 4},
	RecPQR: {3, 4, 5},
}

// BenchResult is the throughput of one implementation in bytes per
// second per column.
type BenchResult struct {
	Impl string
	Gen  [genNum]uint64
	Rec  [recNum]uint64
}

// BenchReport is the outcome of a timing pass.
type BenchReport struct {
	Results []BenchResult
	// Per function, the implementation "fastest" uses.
	FastestGen [genNum]string
	FastestRec [recNum]string
}

func (r *Registry) benchMap(nparity int) (*Map, error) {
	m, err := newMap(0, benchSize, benchAshift, benchDataCols+nparity, nparity)
	if err != nil {
		return nil, err
	}
	m.log = r.log
	data := make([]byte, m.DataSize())
	fillBytes(data, benchFill)
	if err = m.SetData(data); err != nil {
		return nil, err
	}
	parity := make([][]byte, nparity)
	for p := range parity {
		parity[p] = make([]byte, m.Col[p].Size)
		fillBytes(parity[p], benchFill)
	}
	return m, m.SetParity(parity...)
}

func fillBytes(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// benchSpeed runs fn in batches until d has passed.
func benchSpeed(d time.Duration, cols int, fn func()) uint64 {
	runs := 0
	start := time.Now()
	var t time.Duration
	for t < d {
		for j := 0; j < benchBatch; j++ {
			fn()
		}
		runs += benchBatch
		t = time.Since(start)
	}
	return uint64(float64(runs) * benchSize * 1e9 / (float64(t.Nanoseconds()) * float64(cols)))
}

// Benchmark times every supported implementation and rebuilds the
// "fastest" selection from the per-function winners.
func (r *Registry) Benchmark() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	supp := r.supported()
	report := &BenchReport{Results: make([]BenchResult, len(supp))}
	for j, i := range supp {
		report.Results[j].Impl = i.name
	}
	var (
		bestGen [genNum]*impl
		bestRec [recNum]*impl
		topGen  [genNum]uint64
		topRec  [recNum]uint64
	)

	for op := GenOp(0); op < genNum; op++ {
		m, err := r.benchMap(int(op) + 1)
		if err != nil {
			return err
		}
		for j, i := range supp {
			speed := benchSpeed(r.benchDur, m.Cols, func() { m.generate(i) })
			report.Results[j].Gen[op] = speed
			r.logSpeed(i.name, op.String(), speed)
			if bestGen[op] == nil || speed > topGen[op] {
				bestGen[op], topGen[op] = i, speed
			}
		}
		report.FastestGen[op] = bestGen[op].name
	}

	m, err := r.benchMap(maxParity)
	if err != nil {
		return err
	}
	for op := RecOp(0); op < recNum; op++ {
		tgts := benchRecTargets[op]
		for j, i := range supp {
			speed := benchSpeed(r.benchDur, m.Cols, func() {
				if _, err := m.reconstruct(i, tgts); err != nil {
					panic(err)
				}
			})
			report.Results[j].Rec[op] = speed
			r.logSpeed(i.name, op.String(), speed)
			if bestRec[op] == nil || speed > topRec[op] {
				bestRec[op], topRec[op] = i, speed
			}
		}
		report.FastestRec[op] = bestRec[op].name
	}

	r.fastest.Store(composite(bestGen, bestRec))
	r.report.Store(report)
	r.log.WithFields(logrus.Fields{
		"gen": report.FastestGen,
		"rec": report.FastestRec,
	}).Info("raidz benchmark done")
	return nil
}

func (r *Registry) logSpeed(name, op string, speed uint64) {
	r.log.WithFields(logrus.Fields{"impl": name, "op": op}).
		Debugf("%d bytes/s per column", speed)
}

// Report returns the last timing pass, nil before the first.
func (r *Registry) Report() *BenchReport {
	return r.report.Load()
}

// Benchmark re-runs the timing pass of the Default registry.
func Benchmark() error { return Default.Benchmark() }

// BenchmarkReport returns the Default registry's last timing pass.
func BenchmarkReport() *BenchReport { return Default.Report() }
