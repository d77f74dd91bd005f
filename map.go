package raidz

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	minAshift = 9
	maxAshift = 16
	maxCols   = 255

	// Single parity maps swap their first two columns on every
	// other megabyte of device space so parity is spread across disks.
	parityRotateBit = 1 << 20
)

// Column is one device's extent of a block.
type Column struct {
	DevIdx int    // Child device index.
	Offset uint64 // Byte offset on the device.
	Size   int    // Bytes of the block on this device.
	Data   []byte // Payload, nil until bound.

	Oversized bool  // Data column one sector longer than the short ones.
	Tried     bool  // Read was attempted or the column was rebuilt.
	Skipped   bool  // Not read, set by MarkMissing.
	Error     error // Read or checksum error, nil when good.
}

// Map is the erasure-coded layout of one block.
//
// Parity columns are Col[:FirstDataCol], data columns follow.
// Col[Cols:SCols] carry no data and only exist for padding.
type Map struct {
	Cols          int      // Columns holding data or parity.
	SCols         int      // Cols plus the padding-only columns.
	BigCols       int      // Columns one sector longer than the rest.
	ASize         uint64   // Allocated bytes including padding.
	MissingData   int      // Data columns with an error.
	MissingParity int      // Parity columns with an error.
	FirstDataCol  int      // Equals the parity count.
	NSkip         int      // Padding sectors to round ASize up.
	SkipStart     int      // Column of the first padding sector.
	Col           []Column // SCols entries, parity first.

	ashift  uint
	dsize   int
	impl    *impl
	log     logrus.FieldLogger
	scratch [][]byte
}

// Skip is a padding sector written on the write path but never read.
type Skip struct {
	Col    int
	DevIdx int
	Offset uint64
	Size   int
}

// NewMap builds the layout of a block of size bytes at device-space
// offset over dcols devices, bound to the Default registry.
func NewMap(offset uint64, size int, ashift uint, dcols, nparity int) (*Map, error) {
	return Default.NewMap(offset, size, ashift, dcols, nparity)
}

// NewMap is like the package NewMap but binds the map to r's selection.
func (r *Registry) NewMap(offset uint64, size int, ashift uint, dcols, nparity int) (*Map, error) {
	m, err := newMap(offset, size, ashift, dcols, nparity)
	if err != nil {
		return nil, err
	}
	m.impl = r.ops()
	m.log = r.log
	return m, nil
}

func checkGeometry(size int, ashift uint, dcols, nparity int) error {
	if nparity < 1 || nparity > maxParity {
		return errors.Wrapf(ErrInvalidParity, "parity %d", nparity)
	}
	if dcols < nparity+1 {
		return errors.Wrapf(ErrTooFewColumns, "%d columns, parity %d", dcols, nparity)
	}
	if dcols > maxCols {
		return errors.Wrapf(ErrTooManyColumns, "%d columns", dcols)
	}
	if ashift < minAshift || ashift > maxAshift {
		return errors.Wrapf(ErrInvalidAshift, "ashift %d", ashift)
	}
	if size <= 0 {
		return errors.Wrapf(ErrInvalidSize, "size %d", size)
	}
	return nil
}

func newMap(offset uint64, size int, ashift uint, dcols, nparity int) (*Map, error) {
	if err := checkGeometry(size, ashift, dcols, nparity); err != nil {
		return nil, err
	}

	unit := 1 << ashift
	b := offset >> ashift
	s := (size + unit - 1) >> ashift
	f := int(b % uint64(dcols))
	o := (b / uint64(dcols)) << ashift

	ndata := dcols - nparity
	q := s / ndata
	r := s - q*ndata
	bc := 0
	tot := s + nparity*q
	if r != 0 {
		bc = r + nparity
		tot += nparity
	}

	acols, scols := dcols, dcols
	if q == 0 {
		acols = bc
		scols = min(dcols, roundup(bc, nparity+1))
	}

	m := &Map{
		Cols:         acols,
		SCols:        scols,
		BigCols:      bc,
		FirstDataCol: nparity,
		SkipStart:    bc,
		Col:          make([]Column, scols),
		ashift:       ashift,
		dsize:        s << ashift,
	}

	asize := 0
	for c := 0; c < scols; c++ {
		col := f + c
		coff := o
		if col >= dcols {
			col -= dcols
			coff += uint64(unit)
		}
		rc := &m.Col[c]
		rc.DevIdx = col
		rc.Offset = coff
		switch {
		case c >= acols:
			rc.Size = 0
		case c < bc:
			rc.Size = (q + 1) << ashift
			rc.Oversized = c >= nparity
		default:
			rc.Size = q << ashift
		}
		asize += rc.Size
	}
	m.ASize = uint64(roundup(asize, (nparity+1)<<ashift))
	m.NSkip = roundup(tot, nparity+1) - tot

	if nparity == 1 && offset&parityRotateBit != 0 {
		m.Col[0].DevIdx, m.Col[1].DevIdx = m.Col[1].DevIdx, m.Col[0].DevIdx
		m.Col[0].Offset, m.Col[1].Offset = m.Col[1].Offset, m.Col[0].Offset
		if m.SkipStart == 0 {
			m.SkipStart = 1
		}
	}
	return m, nil
}

// AllocSize returns the bytes allocated on disk for a block of psize
// bytes, parity and padding included.
func AllocSize(psize int, ashift uint, dcols, nparity int) uint64 {
	s := ((psize - 1) >> ashift) + 1
	ndata := dcols - nparity
	s += nparity * ((s + ndata - 1) / ndata)
	return uint64(roundup(s, nparity+1)) << ashift
}

func roundup(x, align int) int {
	return (x + align - 1) / align * align
}

// Parity returns the number of parity columns.
func (m *Map) Parity() int { return m.FirstDataCol }

// DataSize returns the bytes held by the data columns: the block size
// rounded up to whole sectors.
func (m *Map) DataSize() int { return m.dsize }

// SetData binds the data columns to consecutive pieces of data.
func (m *Map) SetData(data []byte) error {
	if len(data) != m.dsize {
		return errors.Wrapf(ErrBufferSize, "data %d, want %d", len(data), m.dsize)
	}
	off := 0
	for c := m.FirstDataCol; c < m.Cols; c++ {
		rc := &m.Col[c]
		rc.Data = data[off : off+rc.Size : off+rc.Size]
		off += rc.Size
	}
	return nil
}

// SetParity binds the parity columns, one buffer per column.
// Longer buffers are truncated to the column size.
func (m *Map) SetParity(bufs ...[]byte) error {
	if len(bufs) != m.FirstDataCol {
		return errors.Wrapf(ErrBufferSize, "%d parity buffers, want %d", len(bufs), m.FirstDataCol)
	}
	for c, b := range bufs {
		size := m.Col[c].Size
		if len(b) < size {
			return errors.Wrapf(ErrBufferSize, "parity column %d: %d bytes, want %d", c, len(b), size)
		}
		m.Col[c].Data = b[:size:size]
	}
	return nil
}

func (m *Map) bound() error {
	for c := 0; c < m.Cols; c++ {
		if len(m.Col[c].Data) != m.Col[c].Size {
			return errors.Wrapf(ErrUnbound, "column %d", c)
		}
	}
	return nil
}

// Skips returns the padding sectors that accompany a write of the block.
func (m *Map) Skips() []Skip {
	if m.NSkip == 0 {
		return nil
	}
	skips := make([]Skip, 0, m.NSkip)
	c := m.SkipStart
	for i := 0; i < m.NSkip; i++ {
		if c >= m.SCols {
			c = 0
		}
		rc := &m.Col[c]
		skips = append(skips, Skip{
			Col:    c,
			DevIdx: rc.DevIdx,
			Offset: rc.Offset + uint64(rc.Size),
			Size:   1 << m.ashift,
		})
		c++
	}
	return skips
}

// MarkMissing records that column c could not be read.
func (m *Map) MarkMissing(c int, err error) {
	if err == nil {
		return
	}
	rc := &m.Col[c]
	if rc.Error == nil {
		if c < m.FirstDataCol {
			m.MissingParity++
		} else {
			m.MissingData++
		}
	}
	rc.Error = err
	rc.Skipped = true
}

// ResetMissing clears every column error and the missing counters.
func (m *Map) ResetMissing() {
	for c := range m.Col {
		m.Col[c].Error = nil
		m.Col[c].Skipped = false
	}
	m.MissingData, m.MissingParity = 0, 0
}
