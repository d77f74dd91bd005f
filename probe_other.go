//go:build !amd64

package raidz

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// xorsimd and the x86 matrix kernels have no vector code here.

func hasXORSIMD() bool { return false }

func hasSSSE3() bool { return false }

func hasAVX2() bool { return false }

func hasAVX512BW() bool { return false }

func hasGFNI() bool { return false }

// SVE machines are left out: the matrix library prefers SVE over NEON
// and cannot be told otherwise.
func hasNEON() bool {
	return runtime.GOARCH == "arm64" && cpuid.CPU.Supports(cpuid.ASIMD) &&
		!cpuid.CPU.Supports(cpuid.SVE)
}
