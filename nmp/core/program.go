package core

import "encoding/binary"

// An Access is one memory operation the core issues.
type Access struct {
	IsWrite  bool
	Address  uint64
	ByteSize uint64
	Data     []byte
}

// A Program drives the core: it decides which memory access comes next and
// observes the data the accesses return. Reset moves the program back to its
// entry point.
type Program interface {
	Reset(entry uint64)
	Done() bool

	// Next returns the next access to issue, or false if no access can be
	// issued yet (e.g., a dependent load is still outstanding).
	Next() (Access, bool)

	// Observe feeds the completion of a previously issued access back into
	// the program.
	Observe(acc Access, data []byte)
}

// A PointerChaseProgram performs dependent 8-byte loads: the value each load
// returns is the address of the next one. The chain itself is the loaded
// image.
type PointerChaseProgram struct {
	hops     int
	hopsLeft int
	nextAddr uint64
	armed    bool
}

// NewPointerChaseProgram creates a chase of the given number of hops.
func NewPointerChaseProgram(hops int) *PointerChaseProgram {
	return &PointerChaseProgram{hops: hops}
}

// Reset points the chase at the head of the chain.
func (p *PointerChaseProgram) Reset(entry uint64) {
	p.hopsLeft = p.hops
	p.nextAddr = entry
	p.armed = true
}

// Done tells whether all hops have completed.
func (p *PointerChaseProgram) Done() bool {
	return p.hopsLeft == 0
}

// Next returns the next load of the chain. Only one load can be outstanding;
// the next address is not known until the current one returns.
func (p *PointerChaseProgram) Next() (Access, bool) {
	if !p.armed || p.hopsLeft == 0 {
		return Access{}, false
	}

	p.armed = false

	return Access{
		Address:  p.nextAddr,
		ByteSize: 8,
	}, true
}

// Observe consumes the returned pointer as the next address.
func (p *PointerChaseProgram) Observe(acc Access, data []byte) {
	p.nextAddr = binary.LittleEndian.Uint64(data)
	p.hopsLeft--
	p.armed = true
}

// A StrideProgram performs independent strided accesses over a region,
// wrapping at the region size. Stride patterns like this defeat prefetching,
// which is why the measurement benchmarks use them.
type StrideProgram struct {
	Base   uint64
	Stride uint64
	// RegionSize bounds the pattern; zero strides without wrapping.
	RegionSize uint64
	Count      int
	ByteSize   uint64

	// WriteEvery makes every n-th access a write; zero means reads only.
	WriteEvery int

	issued int
}

// Reset restarts the sequence at the given base address.
func (p *StrideProgram) Reset(entry uint64) {
	p.Base = entry
	p.issued = 0
}

// Done tells whether every access has been issued.
func (p *StrideProgram) Done() bool {
	return p.issued >= p.Count
}

// Next returns the next strided access.
func (p *StrideProgram) Next() (Access, bool) {
	if p.issued >= p.Count {
		return Access{}, false
	}

	byteSize := p.ByteSize
	if byteSize == 0 {
		byteSize = 8
	}

	offset := uint64(p.issued) * p.Stride
	if p.RegionSize > 0 {
		offset %= p.RegionSize
	}
	acc := Access{
		Address:  p.Base + offset,
		ByteSize: byteSize,
	}

	if p.WriteEvery > 0 && (p.issued+1)%p.WriteEvery == 0 {
		acc.IsWrite = true
		acc.Data = make([]byte, byteSize)
		for i := range acc.Data {
			acc.Data[i] = byte(p.issued)
		}
	}

	p.issued++

	return acc, true
}

// Observe is a no-op; strided accesses are independent.
func (p *StrideProgram) Observe(acc Access, data []byte) {
}
