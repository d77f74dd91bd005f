package raidz

import "github.com/pkg/errors"

var (
	ErrInvalidParity     = errors.New("raidz: parity must be 1, 2 or 3")
	ErrTooFewColumns     = errors.New("raidz: too few columns for parity")
	ErrTooManyColumns    = errors.New("raidz: too many columns")
	ErrInvalidSize       = errors.New("raidz: illegal block size")
	ErrInvalidAshift     = errors.New("raidz: illegal sector shift")
	ErrBufferSize        = errors.New("raidz: buffer size mismatch")
	ErrUnbound           = errors.New("raidz: column buffer not bound")
	ErrUnsupportedTarget = errors.New("raidz: unsupported reconstruction target")
	ErrUnknownImpl       = errors.New("raidz: unknown or unsupported implementation")
	ErrUnrecoverable     = errors.New("raidz: no column combination reconstructs valid data")

	// ErrChecksum marks a column whose content disagrees with
	// parity or with the verifier.
	ErrChecksum = errors.New("raidz: checksum mismatch")
)
