package raidz

// Generate computes the parity columns from the data columns
// with the implementation bound to m. Data columns are not modified.
func (m *Map) Generate() error {
	if err := m.bound(); err != nil {
		return err
	}
	m.generate(m.resolve())
	return nil
}

func (m *Map) generate(i *impl) {
	i, g := beginVector(i)
	defer g.end()
	i.gen[m.FirstDataCol-1](m)
}

// psize is the size of the parity columns, which are always the largest.
func (m *Map) psize() int { return m.Col[0].Size }

// shortSize is the size of the last column. Past it only the first
// BigCols columns carry data.
func (m *Map) shortSize() int { return m.Col[m.Cols-1].Size }

// dataColsAt returns the end of the data columns holding bytes at off.
func (m *Map) dataColsAt(off int) int {
	if off < m.shortSize() {
		return m.Cols
	}
	return m.BigCols
}
