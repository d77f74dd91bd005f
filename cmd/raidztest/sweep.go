package main

import (
	"context"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	sweepDataCols = []int{1, 2, 3, 4, 5, 6, 7, 8, 12, 15, 16}
	sweepAshifts  = []uint{9, 12, 14}
	sweepSizes    = []int{1 << 9, 21 * (1 << 9), 13 * (1 << 12), 1 << 17, (1 << 20) - (1 << 12), 1 << maxSizeExp}
)

func sweepCases() []testCase {
	var cases []testCase
	for _, size := range sweepSizes {
		for _, ashift := range sweepAshifts {
			if size < 1<<ashift {
				continue
			}
			for _, dcols := range sweepDataCols {
				cases = append(cases, testCase{Ashift: ashift, DataCols: dcols, Size: size})
			}
		}
	}
	return cases
}

// sweep checks every geometry of cases on a bounded worker group. The
// first failure cancels the rest; running out of time is not a failure.
func sweep(ctx context.Context, k *checker, cases []testCase, timeout time.Duration) (int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(2, runtime.NumCPU()))

	var done atomic.Int64
	seed := time.Now().UnixNano()
	for j, tc := range cases {
		j, tc := j, tc
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			rnd := rand.New(rand.NewSource(seed + int64(j)))
			if err := k.run(gCtx, tc, rnd); err != nil {
				return errors.Wrapf(err, "ashift %d, %d data columns, size %s",
					tc.Ashift, tc.DataCols, humanize.IBytes(uint64(tc.Size)))
			}
			if n := done.Add(1); n%20 == 0 {
				k.log.WithField("done", n).Infof("%d/%d", n, len(cases))
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.DeadlineExceeded) {
		k.log.WithFields(logrus.Fields{"timeout": timeout}).Warn("sweep timed out, stopping")
		err = nil
	}
	return int(done.Load()), err
}
