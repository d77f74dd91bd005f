// Copyright (c) 2017 Temple3x (temple3x@gmail.com)
//
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package raidz implements the RAID-Z layout and parity math over GF(2^8):
// a block is split across dcols devices, the first 1-3 columns of every
// block hold parity P, Q and R, the rest hold data.
// e.g. 3 data sectors over 4 devices with double parity:
// +-----+-----+-----+-----+
// |  P  |  Q  | D0  | D1  |
// +-----+-----+-----+-----+
// |  P  |  Q  | D0  |     |
// +-----+-----+-----+-----+
//                 ^ oversized
//
// P = D0 ^ D1 ^ ... ^ Dn-1
// Q = 2^(n-1)*D0 ^ 2^(n-2)*D1 ^ ... ^ Dn-1
// R = 4^(n-1)*D0 ^ 4^(n-2)*D1 ^ ... ^ Dn-1
//
// Any parity-count columns can be rebuilt from the others.
//
// The arithmetic runs on one of several implementations (scalar, SIMD,
// Reed-Solomon matrix kernels) chosen by a Registry; see SetImplementation.
package raidz
