package main

import (
	"bytes"
	"context"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/templexxx/raidz"
)

const maxParity = 3

// Parity columns each reconstruction method is denied, the rest of
// the targets are data columns.
var recMethods = []struct {
	name string
	bad  []int
	code int
}{
	{"rec_p", []int{1, 2}, raidz.CodeP},
	{"rec_q", []int{0, 2}, raidz.CodeQ},
	{"rec_r", []int{0, 1}, raidz.CodeR},
	{"rec_pq", []int{2}, raidz.CodeP | raidz.CodeQ},
	{"rec_pr", []int{1}, raidz.CodeP | raidz.CodeR},
	{"rec_qr", []int{0}, raidz.CodeQ | raidz.CodeR},
	{"rec_pqr", nil, raidz.CodeP | raidz.CodeQ | raidz.CodeR},
}

var genMethods = []string{"gen_p", "gen_pq", "gen_pqr"}

// checker compares every implementation against "original".
type checker struct {
	log    logrus.FieldLogger
	impls  []string
	sanity bool

	golden *raidz.Registry
	regs   map[string]*raidz.Registry
}

func newChecker(log logrus.FieldLogger, only string, sanity bool) (*checker, error) {
	k := &checker{
		log:    log,
		sanity: sanity,
		regs:   make(map[string]*raidz.Registry),
	}
	var err error
	if k.golden, err = raidz.NewRegistry(raidz.Options{Impl: "original", Logger: log}); err != nil {
		return nil, err
	}

	_, names := k.golden.Current()
	for _, name := range names[2:] { // Skip cycle and fastest.
		if only != "" && name != only {
			continue
		}
		if k.regs[name], err = raidz.NewRegistry(raidz.Options{Impl: name, Logger: log}); err != nil {
			return nil, err
		}
		k.impls = append(k.impls, name)
	}
	if len(k.impls) == 0 {
		return nil, errors.Wrapf(raidz.ErrUnknownImpl, "%q", only)
	}
	return k, nil
}

// block is a map with its buffers.
type block struct {
	m    *raidz.Map
	data []byte
}

func newBlock(r *raidz.Registry, tc testCase, nparity int, data []byte) (*block, error) {
	m, err := r.NewMap(tc.Offset, tc.Size, tc.Ashift, tc.DataCols+nparity, nparity)
	if err != nil {
		return nil, err
	}
	b := &block{m: m, data: append([]byte(nil), data[:m.DataSize()]...)}
	if err = m.SetData(b.data); err != nil {
		return nil, err
	}
	parity := make([][]byte, nparity)
	for p := range parity {
		parity[p] = make([]byte, m.Col[p].Size)
	}
	return b, m.SetParity(parity...)
}

// copyParity overwrites b's parity with src's.
func (b *block) copyParity(src *block) {
	for p := 0; p < b.m.Parity(); p++ {
		copy(b.m.Col[p].Data, src.m.Col[p].Data)
	}
}

func (b *block) sameParity(golden *block) bool {
	for p := 0; p < b.m.Parity(); p++ {
		if !bytes.Equal(b.m.Col[p].Data, golden.m.Col[p].Data) {
			return false
		}
	}
	return true
}

// run checks generation and reconstruction of every implementation
// on one geometry. It stops early when ctx is done.
func (k *checker) run(ctx context.Context, tc testCase, rnd *rand.Rand) error {
	data := make([]byte, tc.Size+(1<<tc.Ashift))
	rnd.Read(data)

	var golden [maxParity + 1]*block
	for p := 1; p <= maxParity; p++ {
		b, err := newBlock(k.golden, tc, p, data)
		if err != nil {
			return err
		}
		if err = b.m.Generate(); err != nil {
			return err
		}
		golden[p] = b
	}

	genFails, recFails := 0, 0
	for _, name := range k.impls {
		log := k.log.WithField("impl", name)
		for p := 1; p <= maxParity; p++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := k.checkGen(name, tc, p, data, golden[p])
			if err != nil {
				return err
			}
			logResult(log, genMethods[p-1], n)
			genFails += n
		}
		for j := range recMethods {
			n, err := k.checkRec(ctx, name, tc, j, golden[maxParity])
			if err != nil {
				return err
			}
			logResult(log, recMethods[j].name, n)
			recFails += n
		}
	}
	if genFails+recFails > 0 {
		return errors.Errorf("%d generation and %d reconstruction failures", genFails, recFails)
	}
	return nil
}

func logResult(log logrus.FieldLogger, method string, fails int) {
	log = log.WithField("method", method)
	if fails == 0 {
		log.Info("PASS")
		return
	}
	log.WithField("failures", fails).Warn("FAIL")
}

func (k *checker) checkGen(name string, tc testCase, nparity int, data []byte, golden *block) (int, error) {
	b, err := newBlock(k.regs[name], tc, nparity, data)
	if err != nil {
		return 0, err
	}
	if !k.sanity {
		if err = b.m.Generate(); err != nil {
			return 0, err
		}
	}
	if !b.sameParity(golden) {
		return 1, nil
	}
	return 0, nil
}

// checkRec loses every combination of data columns the method can
// rebuild and compares the result with the golden block.
func (k *checker) checkRec(ctx context.Context, name string, tc testCase, method int, golden *block) (int, error) {
	rm := recMethods[method]
	b, err := newBlock(k.regs[name], tc, maxParity, golden.data)
	if err != nil {
		return 0, err
	}
	b.copyParity(golden)

	ndata := b.m.Cols - maxParity
	want := maxParity - len(rm.bad)
	fails := 0
	var walk func(start int, tgts []int) error
	walk = func(start int, tgts []int) error {
		if len(tgts) == cap(tgts) {
			return k.recOnce(b, golden, rm.code, tgts, &fails)
		}
		for x := start; x < ndata; x++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := walk(x+1, append(tgts, x+maxParity)); err != nil {
				return err
			}
		}
		return nil
	}
	tgts := make([]int, len(rm.bad), len(rm.bad)+want)
	copy(tgts, rm.bad)
	if err = walk(0, tgts); err != nil {
		return 0, err
	}
	return fails, nil
}

func (k *checker) recOnce(b, golden *block, code int, tgts []int, fails *int) error {
	for _, c := range tgts {
		if c >= maxParity {
			corrupt(b.m.Col[c].Data)
		}
	}
	got := code
	if !k.sanity {
		var err error
		if got, err = b.m.Reconstruct(tgts...); err != nil {
			return err
		}
	}
	if got != code || !bytes.Equal(b.data, golden.data) {
		k.log.WithField("targets", tgts).Debugf("used parity %#x, want %#x", got, code)
		*fails++
		copy(b.data, golden.data)
	}
	return nil
}

func corrupt(d []byte) {
	for i := range d {
		d[i] ^= byte(i) | 1
	}
}
