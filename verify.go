package raidz

import (
	"github.com/pkg/errors"
)

// scratchCols returns one scratch buffer per parity column.
func (m *Map) scratchCols() [][]byte {
	if m.scratch == nil {
		m.scratch = make([][]byte, m.FirstDataCol)
		for c := range m.scratch {
			m.scratch[c] = make([]byte, m.Col[c].Size)
		}
	}
	return m.scratch
}

// shadow returns a copy of m sharing nothing but payload buffers.
func (m *Map) shadow() *Map {
	s := *m
	s.Col = append([]Column(nil), m.Col...)
	s.scratch = nil
	return &s
}

// VerifyParity regenerates parity into scratch space and compares it
// with every parity column that was read without error. Columns that
// disagree get ErrChecksum. It returns how many disagreed; parity
// buffers are left as they are.
func (m *Map) VerifyParity() (int, error) {
	if err := m.bound(); err != nil {
		return 0, err
	}
	s := m.shadow()
	scratch := m.scratchCols()
	for c := 0; c < m.FirstDataCol; c++ {
		s.Col[c].Data = scratch[c]
	}
	s.generate(m.resolve())

	bad := 0
	for c := 0; c < m.FirstDataCol; c++ {
		rc := &m.Col[c]
		if !rc.Tried || rc.Error != nil {
			continue
		}
		if diffBytes(rc.Data, scratch[c]) != 0 {
			rc.Error = ErrChecksum
			bad++
		}
	}
	return bad, nil
}

// CompareGood computes what column c should hold given the known-good
// block data good, and returns how many bytes of the column differ.
// The column itself is not repaired.
func (m *Map) CompareGood(c int, good []byte) (int, error) {
	if c < 0 || c >= m.Cols {
		return 0, errors.Wrapf(ErrUnsupportedTarget, "column %d of %d", c, m.Cols)
	}
	if len(good) != m.dsize {
		return 0, errors.Wrapf(ErrBufferSize, "good data %d, want %d", len(good), m.dsize)
	}
	if len(m.Col[c].Data) != m.Col[c].Size {
		return 0, errors.Wrapf(ErrUnbound, "column %d", c)
	}

	s := m.shadow()
	if err := s.SetData(good); err != nil {
		return 0, err
	}
	if c >= m.FirstDataCol {
		return diffBytes(m.Col[c].Data, s.Col[c].Data), nil
	}

	scratch := m.scratchCols()
	for p := 0; p < m.FirstDataCol; p++ {
		s.Col[p].Data = scratch[p]
	}
	s.generate(m.resolve())
	return diffBytes(m.Col[c].Data, scratch[c]), nil
}

func diffBytes(a, b []byte) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

// CombinatorialReconstruct looks for silently damaged columns. It
// tries every set of columns, up to the parity left after known
// errors, as extra reconstruction targets until verify accepts the
// block. The columns of the winning set are marked ErrChecksum and the
// parity code is returned. Buffers are restored after every rejected
// attempt; ErrUnrecoverable is returned when no set is accepted.
func (m *Map) CombinatorialReconstruct(verify func() bool) (int, error) {
	if err := m.bound(); err != nil {
		return 0, err
	}
	i := m.resolve()

	var healthy []int
	errs, dataErrs := 0, 0
	for c := 0; c < m.Cols; c++ {
		switch {
		case m.Col[c].Error == nil:
			healthy = append(healthy, c)
		case c >= m.FirstDataCol:
			dataErrs++
			errs++
		default:
			errs++
		}
	}

	orig := make([][]byte, 0, m.FirstDataCol)
	for n := 1; n <= m.FirstDataCol-errs; n++ {
		var (
			code int
			err  error
			hit  []int
		)
		eachCombination(healthy, n, func(tgts []int) bool {
			// Parity-only targets rebuild nothing unless data is
			// already missing.
			if dataErrs == 0 && tgts[len(tgts)-1] < m.FirstDataCol {
				return true
			}

			orig = m.save(orig[:0], tgts)
			code, err = m.reconstruct(i, tgts)
			if err == nil && verify() {
				hit = append([]int(nil), tgts...)
				return false
			}
			m.restore(orig, tgts)
			return err == nil
		})
		if err != nil {
			return 0, err
		}
		if hit != nil {
			for _, c := range hit {
				m.Col[c].Error = ErrChecksum
			}
			return code, nil
		}
	}
	return 0, ErrUnrecoverable
}

func (m *Map) save(orig [][]byte, tgts []int) [][]byte {
	for _, c := range tgts {
		orig = append(orig, append([]byte(nil), m.Col[c].Data...))
	}
	return orig
}

func (m *Map) restore(orig [][]byte, tgts []int) {
	for j, c := range tgts {
		copy(m.Col[c].Data, orig[j])
	}
}

// eachCombination calls fn with every ascending n-subset of s until
// fn returns false.
func eachCombination(s []int, n int, fn func([]int) bool) {
	tgts := make([]int, n)
	var walk func(start, depth int) bool
	walk = func(start, depth int) bool {
		if depth == n {
			return fn(tgts)
		}
		for j := start; j <= len(s)-(n-depth); j++ {
			tgts[depth] = s[j]
			if !walk(j+1, depth+1) {
				return false
			}
		}
		return true
	}
	walk(0, 0)
}
