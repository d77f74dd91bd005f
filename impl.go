package raidz

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxParity = 3

// GenOp selects a parity generation function.
type GenOp int

const (
	GenP GenOp = iota
	GenPQ
	GenPQR
	genNum
)

var genOpNames = [genNum]string{"gen_p", "gen_pq", "gen_pqr"}

func (o GenOp) String() string { return genOpNames[o] }

// RecOp selects a reconstruction function by the parity it solves with.
type RecOp int

const (
	RecP RecOp = iota
	RecQ
	RecR
	RecPQ
	RecPR
	RecQR
	RecPQR
	recNum
)

var recOpNames = [recNum]string{"rec_p", "rec_q", "rec_r", "rec_pq", "rec_pr", "rec_qr", "rec_pqr"}

func (o RecOp) String() string { return recOpNames[o] }

// Parity column bits in a reconstruction code.
const (
	CodeP = 1 << iota
	CodeQ
	CodeR
)

// recParity lists the parity columns each RecOp solves with.
var recParity = [recNum][]int{
	RecP:   {0},
	RecQ:   {1},
	RecR:   {2},
	RecPQ:  {0, 1},
	RecPR:  {0, 2},
	RecQR:  {1, 2},
	RecPQR: {0, 1, 2},
}

// recCode returns the parity bitmask of op.
func recCode(op RecOp) int {
	code := 0
	for _, p := range recParity[op] {
		code |= 1 << p
	}
	return code
}

// GenFunc fills the parity columns of m.
type GenFunc func(m *Map)

// RecFunc rebuilds the data columns tgts of m, sorted ascending.
type RecFunc func(m *Map, tgts []int)

type impl struct {
	name   string
	gen    [genNum]GenFunc
	rec    [recNum]RecFunc
	probe  func() bool
	vector bool
	matrix *matrixKernel // nil unless built on the matrix library
}

func (i *impl) supported() bool {
	if i.vector && !VectorAllowed() {
		return false
	}
	return i.probe == nil || i.probe()
}

const (
	implFastest = "fastest"
	implCycle   = "cycle"
	implScalar  = "scalar"
)

// allImpls is the fixed descriptor order.
func allImpls() []*impl {
	impls := []*impl{originalImpl, scalarImpl, xorImpl}
	return append(impls, matrixImpls...)
}

type selection struct {
	name  string // fastest, cycle or the fixed descriptor's name
	fixed *impl
}

// Options configures a Registry.
type Options struct {
	// Impl is the initial selection; "fastest" when empty.
	Impl string
	// Benchmark runs the timing pass while building the registry.
	// Without it "fastest" is the last supported descriptor.
	Benchmark bool
	// BenchDuration bounds the timing of one function of one
	// descriptor. Defaults to one millisecond.
	BenchDuration time.Duration
	Logger        logrus.FieldLogger
}

// Registry owns the kernel descriptors and the active selection.
type Registry struct {
	all []*impl

	mu      sync.Mutex // Serializes Set and Benchmark.
	sel     atomic.Pointer[selection]
	fastest atomic.Pointer[impl]
	cycle   atomic.Uint64
	report  atomic.Pointer[BenchReport]

	benchDur time.Duration
	log      logrus.FieldLogger
}

// logger is used where no Registry is at hand.
var logger logrus.FieldLogger = logrus.StandardLogger()

// Default is the process-wide registry used by NewMap.
var Default *Registry

func init() {
	r, err := NewRegistry(Options{})
	if err != nil {
		panic(err)
	}
	Default = r
}

// NewRegistry probes the descriptors and applies opts.
func NewRegistry(opts Options) (*Registry, error) {
	r := &Registry{
		all:      allImpls(),
		benchDur: opts.BenchDuration,
		log:      opts.Logger,
	}
	if r.benchDur <= 0 {
		r.benchDur = time.Millisecond
	}
	if r.log == nil {
		r.log = logger
	}

	supp := r.supported()
	last := supp[len(supp)-1]
	r.fastest.Store(composite(fill(last)))
	r.sel.Store(&selection{name: implFastest})

	if opts.Benchmark {
		if err := r.Benchmark(); err != nil {
			return nil, err
		}
	}
	if opts.Impl != "" {
		if err := r.Set(opts.Impl); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func fill(i *impl) (gen [genNum]*impl, rec [recNum]*impl) {
	for op := range gen {
		gen[op] = i
	}
	for op := range rec {
		rec[op] = i
	}
	return
}

// composite builds the "fastest" descriptor out of per-function winners.
func composite(gen [genNum]*impl, rec [recNum]*impl) *impl {
	f := &impl{name: implFastest}
	var from []*impl
	for op, i := range gen {
		f.gen[op] = i.gen[op]
		from = append(from, i)
	}
	for op, i := range rec {
		f.rec[op] = i.rec[op]
		from = append(from, i)
	}
	for _, i := range from {
		f.vector = f.vector || i.vector
	}
	f.probe = func() bool {
		for _, i := range from {
			if !i.supported() {
				return false
			}
		}
		return true
	}
	return f
}

func (r *Registry) supported() []*impl {
	supp := make([]*impl, 0, len(r.all))
	for _, i := range r.all {
		if i.supported() {
			supp = append(supp, i)
		}
	}
	return supp
}

func (r *Registry) lookup(name string) *impl {
	for _, i := range r.all {
		if i.name == name {
			return i
		}
	}
	return nil
}

// ops returns the descriptor a new call should use.
func (r *Registry) ops() *impl {
	if !VectorAllowed() {
		return scalarImpl
	}
	s := r.sel.Load()
	switch s.name {
	case implFastest:
		return r.fastest.Load()
	case implCycle:
		supp := r.supported()
		n := r.cycle.Add(1)
		return supp[n%uint64(len(supp))]
	default:
		return s.fixed
	}
}

// Set selects "fastest", "cycle" or a supported descriptor by name.
func (r *Registry) Set(name string) error {
	name = strings.TrimSpace(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	s := &selection{name: name}
	switch name {
	case implFastest, implCycle:
	default:
		i := r.lookup(name)
		if i == nil || !i.supported() {
			return errors.Wrapf(ErrUnknownImpl, "%q", name)
		}
		s.fixed = i
	}
	r.sel.Store(s)
	r.log.WithField("impl", name).Debug("raidz implementation selected")
	return nil
}

// Current returns the active selection and every name Set accepts now.
func (r *Registry) Current() (active string, names []string) {
	names = []string{implCycle, implFastest}
	for _, i := range r.supported() {
		names = append(names, i.name)
	}
	return r.sel.Load().name, names
}

// String lists the accepted names with the active one bracketed.
func (r *Registry) String() string {
	active, names := r.Current()
	var sb strings.Builder
	for i, n := range names {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if n == active {
			sb.WriteString("[" + n + "]")
		} else {
			sb.WriteString(n)
		}
	}
	return sb.String()
}

// SetImplementation selects the implementation of the Default registry.
func SetImplementation(name string) error { return Default.Set(name) }

// Implementations reports the Default registry's selection.
func Implementations() (active string, names []string) { return Default.Current() }

// resolve returns the descriptor for one call on m.
func (m *Map) resolve() *impl {
	if m.impl == nil || !m.impl.supported() {
		return scalarImpl
	}
	return m.impl
}
