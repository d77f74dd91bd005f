package raidz

import (
	"github.com/klauspost/cpuid/v2"
	"github.com/templexxx/cpu"
)

func hasXORSIMD() bool { return cpu.X86.HasSSE2 }

func hasSSSE3() bool { return cpu.X86.HasSSSE3 }

func hasAVX2() bool { return cpu.X86.HasAVX2 }

func hasAVX512BW() bool {
	return cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW && cpu.X86.HasAVX512VL
}

func hasGFNI() bool {
	return cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ, cpuid.GFNI)
}

func hasNEON() bool { return false }
