package expander

// PCIIdentity carries the identification fields that the expander reports on
// the PCI bus. It is plain configuration data composed into the device; it
// has no behavior of its own.
type PCIIdentity struct {
	VendorID      uint16
	DeviceID      uint16
	Command       uint16
	Status        uint16
	Revision      uint8
	ClassCode     uint8
	SubClassCode  uint8
	ProgIF        uint8
	InterruptLine uint8
	InterruptPin  uint8
}

// DefaultPCIIdentity returns the identity the device ships with.
func DefaultPCIIdentity() PCIIdentity {
	return PCIIdentity{
		VendorID:      0x8086,
		DeviceID:      0x7890,
		Command:       0x0,
		Status:        0x280,
		Revision:      0x0,
		ClassCode:     0x05,
		SubClassCode:  0x00,
		ProgIF:        0x00,
		InterruptLine: 0x1F,
		InterruptPin:  0x01,
	}
}
