package raidz

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/reedsolomon"
	"github.com/sirupsen/logrus"
)

// Matrix kernels run the P/Q/R code as a Reed-Solomon code with a
// custom coding matrix on klauspost/reedsolomon, pinned to one
// instruction set each.
var matrixImpls = []*impl{
	newMatrixImpl("ssse3", hasSSSE3,
		pinned(reedsolomon.WithSSSE3(true))...),
	newMatrixImpl("avx2", hasAVX2,
		pinned(reedsolomon.WithAVX2(true))...),
	newMatrixImpl("avx512bw", hasAVX512BW,
		pinned(reedsolomon.WithAVX512(true), reedsolomon.WithGFNI(false))...),
	newMatrixImpl("gfni", hasGFNI,
		pinned(reedsolomon.WithGFNI(true))...),
	newMatrixImpl("neon", hasNEON,
		pinned()...),
}

// pinned turns off every x86 kernel the library would otherwise pick
// from CPU detection, then applies on. WithAVX2(true) leaves AVX+GFNI
// as detected and WithAVX512(true) turns AVX512+GFNI on, so order matters.
func pinned(on ...reedsolomon.Option) []reedsolomon.Option {
	return append([]reedsolomon.Option{
		reedsolomon.WithAVXGFNI(false),
		reedsolomon.WithGFNI(false),
		reedsolomon.WithAVX512(false),
		reedsolomon.WithAVX2(false),
		reedsolomon.WithSSSE3(false),
	}, on...)
}

// Encoders are cached per geometry, there are at most 255*3 of them.
const encoderCacheSize = 64

type geometry struct {
	data, parity int
}

type matrixKernel struct {
	name  string
	opts  []reedsolomon.Option
	cache *lru.Cache[geometry, reedsolomon.Encoder]
}

// zeroSector stands in for the missing tail of short columns.
var zeroSector = make([]byte, 1<<maxAshift)

func newMatrixImpl(name string, probe func() bool, opts ...reedsolomon.Option) *impl {
	cache, err := lru.New[geometry, reedsolomon.Encoder](encoderCacheSize)
	if err != nil {
		panic(err)
	}
	k := &matrixKernel{
		name:  name,
		opts:  append(opts, reedsolomon.WithMaxGoroutines(1)),
		cache: cache,
	}
	i := &impl{name: name, probe: probe, vector: true, matrix: k}
	for op := range i.gen {
		i.gen[op] = k.generate
	}
	for op := range i.rec {
		op := RecOp(op)
		i.rec[op] = func(m *Map, tgts []int) { k.reconstruct(m, op, tgts) }
	}
	return i
}

// codingMatrix returns the P, Q and R rows over ndata data columns.
func codingMatrix(ndata, nparity int) [][]byte {
	rows := make([][]byte, nparity)
	for p := range rows {
		rows[p] = make([]byte, ndata)
		for c := range rows[p] {
			rows[p][c] = parityCoeff(p, c, ndata)
		}
	}
	return rows
}

func (k *matrixKernel) encoder(ndata, nparity int) (reedsolomon.Encoder, error) {
	g := geometry{data: ndata, parity: nparity}
	if enc, ok := k.cache.Get(g); ok {
		return enc, nil
	}
	opts := append([]reedsolomon.Option{
		reedsolomon.WithCustomMatrix(codingMatrix(ndata, nparity)),
	}, k.opts...)
	enc, err := reedsolomon.New(ndata, nparity, opts...)
	if err != nil {
		return nil, err
	}
	k.cache.Add(g, enc)
	return enc, nil
}

// region returns column c's bytes in [lo,hi), zeros past its end.
func (m *Map) region(c, lo, hi int) []byte {
	d := m.Col[c].Data
	if len(d) >= hi {
		return d[lo:hi:hi]
	}
	return zeroSector[:hi-lo]
}

// regions splits [0,end) at the size of the short columns.
func (m *Map) regions(end int) [][2]int {
	short := m.shortSize()
	if end <= short {
		return [][2]int{{0, end}}
	}
	return [][2]int{{0, short}, {short, end}}
}

func (k *matrixKernel) fallback(m *Map, op string, err error) {
	log := m.log
	if log == nil {
		log = logger
	}
	log.WithFields(logrus.Fields{"impl": k.name, "op": op}).
		WithError(err).Warn("raidz kernel failed, using scalar")
}

func (k *matrixKernel) generate(m *Map) {
	fd := m.FirstDataCol
	n := m.Cols - fd
	enc, err := k.encoder(n, fd)
	if err == nil {
		shards := make([][]byte, n+fd)
		for _, r := range m.regions(m.psize()) {
			lo, hi := r[0], r[1]
			for c := fd; c < m.Cols; c++ {
				shards[c-fd] = m.region(c, lo, hi)
			}
			for p := 0; p < fd; p++ {
				shards[n+p] = m.Col[p].Data[lo:hi]
			}
			if err = enc.Encode(shards); err != nil {
				break
			}
		}
	}
	if err != nil {
		k.fallback(m, GenOp(fd-1).String(), err)
		scalarImpl.gen[fd-1](m)
	}
}

func (k *matrixKernel) reconstruct(m *Map, op RecOp, tgts []int) {
	fd := m.FirstDataCol
	n := m.Cols - fd
	enc, err := k.encoder(n, fd)
	if err == nil {
		err = k.solve(m, enc, op, tgts)
	}
	if err != nil {
		k.fallback(m, op.String(), err)
		scalarImpl.rec[op](m, tgts)
	}
}

func (k *matrixKernel) solve(m *Map, enc reedsolomon.Encoder, op RecOp, tgts []int) error {
	fd := m.FirstDataCol
	n := m.Cols - fd
	var use [maxParity]bool
	for _, p := range recParity[op] {
		use[p] = true
	}

	shards := make([][]byte, n+fd)
	for _, r := range m.regions(m.Col[tgts[0]].Size) {
		lo, hi := r[0], r[1]
		for c := fd; c < m.Cols; c++ {
			if isIn(c, tgts) && m.Col[c].Size >= hi {
				shards[c-fd] = m.Col[c].Data[lo:lo:hi]
			} else {
				shards[c-fd] = m.region(c, lo, hi)
			}
		}
		for p := 0; p < fd; p++ {
			shards[n+p] = nil
			if use[p] {
				shards[n+p] = m.Col[p].Data[lo:hi]
			}
		}
		if err := enc.ReconstructData(shards); err != nil {
			return err
		}
		for _, c := range tgts {
			if m.Col[c].Size >= hi {
				copy(m.Col[c].Data[lo:hi], shards[c-fd])
			}
		}
	}
	return nil
}
