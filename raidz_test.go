package raidz

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kb = 1024
	mb = 1024 * 1024
)

func fillRandom(v []byte) {
	for i := 0; i < len(v); i += 7 {
		val := rand.Int63()
		for j := 0; i+j < len(v) && j < 7; j++ {
			v[i+j] = byte(val)
			val >>= 8
		}
	}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// implNames lists every implementation usable on this host.
func implNames() []string {
	_, names := Implementations()
	return names[2:] // Drop cycle and fastest.
}

func implRegistry(t testing.TB, name string) *Registry {
	r, err := NewRegistry(Options{Impl: name, Logger: quietLogger()})
	require.NoError(t, err)
	return r
}

// newTestMap returns a map of 512 byte sectors with random data and
// zeroed parity bound.
func newTestMap(t testing.TB, r *Registry, offset uint64, size, dcols, nparity int) *Map {
	return newShiftedMap(t, r, offset, size, 9, dcols, nparity)
}

func newShiftedMap(t testing.TB, r *Registry, offset uint64, size int, ashift uint, dcols, nparity int) *Map {
	m, err := r.NewMap(offset, size, ashift, dcols, nparity)
	require.NoError(t, err)
	data := make([]byte, m.DataSize())
	fillRandom(data)
	require.NoError(t, m.SetData(data))
	parity := make([][]byte, nparity)
	for p := range parity {
		parity[p] = make([]byte, m.Col[p].Size)
	}
	require.NoError(t, m.SetParity(parity...))
	return m
}

func snapshot(m *Map) [][]byte {
	s := make([][]byte, m.Cols)
	for c := range s {
		s[c] = append([]byte(nil), m.Col[c].Data...)
	}
	return s
}

func erase(m *Map, cols ...int) {
	for _, c := range cols {
		for i := range m.Col[c].Data {
			m.Col[c].Data[i] = 0
		}
	}
}

func requireColumns(t *testing.T, want [][]byte, m *Map, msg string) {
	for c := range want {
		if !bytes.Equal(want[c], m.Col[c].Data) {
			t.Fatalf("%s: column %d mismatch", msg, c)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{512, 5 * 512, 21 * 512}
	for _, name := range implNames() {
		r := implRegistry(t, name)
		t.Run(name, func(t *testing.T) {
			rand.Seed(0)
			for nparity := 1; nparity <= maxParity; nparity++ {
				for _, dcols := range []int{nparity + 1, nparity + 2, nparity + 5, 11} {
					for _, size := range sizes {
						checkRoundTrip(t, r, size, dcols, nparity)
					}
				}
			}
		})
	}
}

// TestRoundTripLarge covers 4K sectors, columns spanning several XOR
// chunks and matrix tails longer than 512 bytes.
func TestRoundTripLarge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	cases := []struct {
		offset         uint64
		dcols, nparity int
	}{
		{1 << 20, 7, 1}, // Parity swapped with the first data column.
		{0, 7, 2},
		{0, 8, 3},
	}
	for _, name := range implNames() {
		r := implRegistry(t, name)
		t.Run(name, func(t *testing.T) {
			rand.Seed(0)
			for _, c := range cases {
				m := newShiftedMap(t, r, c.offset, mb, 12, c.dcols, c.nparity)
				require.NotZero(t, m.BigCols)
				require.Greater(t, m.shortSize(), halfL1)
				if c.offset != 0 {
					require.Equal(t, int(c.offset>>12)%c.dcols, m.Col[1].DevIdx)
				}
				checkErasures(t, m, fmt.Sprintf("%d+%d 1M", c.dcols-c.nparity, c.nparity))
			}
		})
	}
}

// checkRoundTrip erases every pattern of up to nparity columns.
func checkRoundTrip(t *testing.T, r *Registry, size, dcols, nparity int) {
	m := newTestMap(t, r, 0, size, dcols, nparity)
	checkErasures(t, m, fmt.Sprintf("%d+%d size %d", dcols-nparity, nparity, size))
}

func checkErasures(t *testing.T, m *Map, label string) {
	require.NoError(t, m.Generate(), label)
	want := snapshot(m)

	cols := make([]int, m.Cols)
	for c := range cols {
		cols[c] = c
	}
	for n := 1; n <= m.FirstDataCol; n++ {
		eachCombination(cols, n, func(tgts []int) bool {
			msg := fmt.Sprintf("%s lost %v", label, tgts)
			erase(m, tgts...)
			_, err := m.Reconstruct(tgts...)
			require.NoError(t, err, msg)
			require.NoError(t, m.Generate(), msg)
			requireColumns(t, want, m, msg)
			return true
		})
	}
}

func TestGenerateIdempotent(t *testing.T) {
	for _, name := range implNames() {
		r := implRegistry(t, name)
		m := newTestMap(t, r, 0, 13*4*kb, 10, 3)
		require.NoError(t, m.Generate(), name)
		first := snapshot(m)
		require.NoError(t, m.Generate(), name)
		requireColumns(t, first, m, name)
	}
}

func TestImplementationsAgree(t *testing.T) {
	golden := implRegistry(t, "original")
	for nparity := 1; nparity <= maxParity; nparity++ {
		want := newTestMap(t, golden, 0, 13*4*kb+3*512, 12, nparity)
		require.NoError(t, want.Generate())
		parity := snapshot(want)[:nparity]

		for _, name := range implNames() {
			m, err := implRegistry(t, name).NewMap(0, 13*4*kb+3*512, 9, 12, nparity)
			require.NoError(t, err)
			data := make([]byte, m.DataSize())
			off := 0
			for c := nparity; c < want.Cols; c++ {
				off += copy(data[off:], want.Col[c].Data)
			}
			require.NoError(t, m.SetData(data))
			bufs := make([][]byte, nparity)
			for p := range bufs {
				bufs[p] = make([]byte, m.Col[p].Size)
			}
			require.NoError(t, m.SetParity(bufs...))
			require.NoError(t, m.Generate())
			requireColumns(t, parity, m, fmt.Sprintf("%s parity %d", name, nparity))
		}
	}
}

func TestKnownParity(t *testing.T) {
	m, err := NewMap(0, 2*512, 9, 5, 3)
	require.NoError(t, err)
	data := make([]byte, m.DataSize())
	data[0] = 0x80
	data[1], data[513] = 1, 1
	require.NoError(t, m.SetData(data))
	require.NoError(t, m.SetParity(make([]byte, 512), make([]byte, 512), make([]byte, 512)))
	require.NoError(t, m.Generate())

	p, q, r := m.Col[0].Data, m.Col[1].Data, m.Col[2].Data
	assert.Equal(t, []byte{0x80, 0}, p[:2])
	assert.Equal(t, []byte{0x1d, 3}, q[:2])
	assert.Equal(t, []byte{0x3a, 5}, r[:2])
}

// 6 data + P,Q, block divisible by 6.
func TestReconstructTwoData(t *testing.T) {
	m := newTestMap(t, Default, 0, 6*4*512, 8, 2)
	require.NoError(t, m.Generate())
	want := snapshot(m)

	erase(m, 3, 5)
	code, err := m.Reconstruct(3, 5)
	require.NoError(t, err)
	assert.Equal(t, CodeP|CodeQ, code)
	requireColumns(t, want, m, "pq")
	assert.True(t, m.Col[3].Tried)
	assert.True(t, m.Col[5].Tried)
}

func TestReconstructDataAndP(t *testing.T) {
	m := newTestMap(t, Default, 0, 6*4*512, 8, 2)
	require.NoError(t, m.Generate())
	want := snapshot(m)

	erase(m, 0, 4)
	code, err := m.Reconstruct(0, 4)
	require.NoError(t, err)
	assert.Equal(t, CodeQ, code)
	assert.Equal(t, want[4], m.Col[4].Data)
	require.NoError(t, m.Generate())
	requireColumns(t, want, m, "q")
}

func TestRegenerateAllParity(t *testing.T) {
	m := newTestMap(t, Default, 0, 21*512, 9, 3)
	require.NoError(t, m.Generate())
	want := snapshot(m)

	erase(m, 0, 1, 2)
	code, err := m.Reconstruct(0, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	require.NoError(t, m.Generate())
	requireColumns(t, want, m, "pqr")
}

func TestReconstructOverBudget(t *testing.T) {
	m := newTestMap(t, Default, 0, 21*512, 7, 2)
	require.NoError(t, m.Generate())
	erase(m, 2)
	want := snapshot(m)

	_, err := m.Reconstruct(2, 3, 4)
	assert.Equal(t, ErrUnsupportedTarget, errors.Cause(err))
	requireColumns(t, want, m, "untouched")

	m.MarkMissing(0, io.ErrUnexpectedEOF)
	m.MarkMissing(1, io.ErrUnexpectedEOF)
	_, err = m.Reconstruct(2)
	assert.Equal(t, ErrUnsupportedTarget, errors.Cause(err))
	requireColumns(t, want, m, "untouched")

	_, err = m.Reconstruct(m.Cols)
	assert.Equal(t, ErrUnsupportedTarget, errors.Cause(err))
}

func TestReconstructErroredColumns(t *testing.T) {
	m := newTestMap(t, Default, 0, 13*4*kb, 10, 3)
	require.NoError(t, m.Generate())
	want := snapshot(m)

	erase(m, 4, 9)
	m.MarkMissing(4, io.EOF)
	m.MarkMissing(1, io.EOF)
	assert.Equal(t, 1, m.MissingData)
	assert.Equal(t, 1, m.MissingParity)

	code, err := m.Reconstruct(9)
	require.NoError(t, err)
	assert.Equal(t, CodeP|CodeR, code)
	requireColumns(t, want, m, "errored")
}

func TestReconstructNothing(t *testing.T) {
	m := newTestMap(t, Default, 0, 4*kb, 5, 1)
	require.NoError(t, m.Generate())
	code, err := m.Reconstruct()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestUnboundBuffers(t *testing.T) {
	m, err := NewMap(0, 4*kb, 9, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, ErrUnbound, errors.Cause(m.Generate()))
}

func TestSelectRec(t *testing.T) {
	all := [maxParity]bool{true, true, true}
	cases := []struct {
		nparity, nbad int
		valid         [maxParity]bool
		want          RecOp
		ok            bool
	}{
		{1, 1, all, RecP, true},
		{2, 1, [maxParity]bool{false, true}, RecQ, true},
		{3, 1, [maxParity]bool{false, false, true}, RecR, true},
		{2, 2, all, RecPQ, true},
		{3, 2, [maxParity]bool{true, false, true}, RecPR, true},
		{3, 2, [maxParity]bool{false, true, true}, RecQR, true},
		{3, 3, all, RecPQR, true},
		{2, 2, [maxParity]bool{true}, 0, false},
		{1, 2, all, 0, false},
	}
	for _, c := range cases {
		op, ok := selectRec(c.nparity, c.nbad, c.valid)
		assert.Equal(t, c.ok, ok, "%+v", c)
		if ok {
			assert.Equal(t, c.want, op, "%+v", c)
		}
	}
}

func benchmarkGenerate(b *testing.B, name string, dcols, nparity, size int) {
	m := newTestMap(b, implRegistry(b, name), 0, size, dcols, nparity)
	b.SetBytes(int64(m.DataSize()))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := m.Generate(); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkReconstruct(b *testing.B, name string, dcols, nparity, size int, tgts []int) {
	m := newTestMap(b, implRegistry(b, name), 0, size, dcols, nparity)
	if err := m.Generate(); err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(m.DataSize()))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Reconstruct(tgts...); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGenerate(b *testing.B) {
	for _, name := range implNames() {
		for nparity := 1; nparity <= maxParity; nparity++ {
			b.Run(fmt.Sprintf("%s/%d+%d_%d", name, 8, nparity, 128*kb), func(b *testing.B) {
				benchmarkGenerate(b, name, 8+nparity, nparity, 128*kb)
			})
		}
	}
}

func BenchmarkReconstruct(b *testing.B) {
	for _, name := range implNames() {
		for op := RecOp(0); op < recNum; op++ {
			tgts := benchRecTargets[op]
			b.Run(fmt.Sprintf("%s/%s", name, op), func(b *testing.B) {
				benchmarkReconstruct(b, name, 11, 3, mb, tgts)
			})
		}
	}
}
