package expander

import "fmt"

// An AddrRange is the physical address window that the expander claims as
// system memory. Accesses inside the window belong to this device; everything
// else is the interconnect's problem.
type AddrRange struct {
	Base uint64
	Size uint64
}

// Contains tells whether addr falls inside the claimed window.
func (r AddrRange) Contains(addr uint64) bool {
	return addr >= r.Base && addr-r.Base < r.Size
}

// End returns the first address above the window.
func (r AddrRange) End() uint64 {
	return r.Base + r.Size
}

func (r AddrRange) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", r.Base, r.End())
}
