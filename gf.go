package raidz

// GF(2^8) with primitive polynomial x^8+x^4+x^3+x^2+1 (0x11d), generator 2.
const gfPoly = 0x1d

var (
	// gfPow2[i] = 2^i. Extended past 255 so that log2(a)+e
	// never needs a modulo for e in [0,255].
	gfPow2 [512]byte
	gfLog2 [256]byte
)

func init() {
	x := 1
	for i := 0; i < len(gfPow2); i++ {
		gfPow2[i] = byte(x)
		if i < 255 {
			gfLog2[x] = byte(i)
		}
		x <<= 1
		if x&0x100 != 0 {
			x ^= 0x100 | gfPoly
		}
	}
}

// exp2 returns a * 2^e. e must be in [0,255].
func exp2(a byte, e int) byte {
	if a == 0 {
		return 0
	}
	return gfPow2[int(gfLog2[a])+e]
}

// fixExp folds any exponent into [0,255).
func fixExp(e int) int {
	e %= 255
	if e < 0 {
		e += 255
	}
	return e
}

// pow2 returns 2^e for any e.
func pow2(e int) byte {
	return gfPow2[fixExp(e)]
}

// log2 returns log2(a), a != 0.
func log2(a byte) int {
	return int(gfLog2[a])
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfPow2[int(gfLog2[a])+int(gfLog2[b])]
}

func gfInv(a byte) byte {
	if a == 0 {
		panic("raidz: inverse of zero")
	}
	return gfPow2[255-int(gfLog2[a])]
}

func mul2(a byte) byte {
	if a&0x80 != 0 {
		return a<<1 ^ gfPoly
	}
	return a << 1
}

func mul4(a byte) byte {
	return mul2(mul2(a))
}

// mulTable multiplies by a fixed 2^e.
type mulTable [256]byte

func newMulTable(e int) *mulTable {
	t := new(mulTable)
	e = fixExp(e)
	for a := 1; a < 256; a++ {
		t[a] = exp2(byte(a), e)
	}
	return t
}

// word multiplies each byte lane of w.
func (t *mulTable) word(w uint64) uint64 {
	return uint64(t[byte(w)]) |
		uint64(t[byte(w>>8)])<<8 |
		uint64(t[byte(w>>16)])<<16 |
		uint64(t[byte(w>>24)])<<24 |
		uint64(t[byte(w>>32)])<<32 |
		uint64(t[byte(w>>40)])<<40 |
		uint64(t[byte(w>>48)])<<48 |
		uint64(t[byte(w>>56)])<<56
}

const (
	laneHigh = 0x8080808080808080
	laneLow7 = 0xfefefefefefefefe
	lanePoly = 0x1d1d1d1d1d1d1d1d
)

// mul2w multiplies eight packed field elements by 2.
func mul2w(w uint64) uint64 {
	m := w & laneHigh
	m = m<<1 - m>>7
	return (w<<1)&laneLow7 ^ m&lanePoly
}

func mul4w(w uint64) uint64 {
	return mul2w(mul2w(w))
}
