package nmp

import (
	"fmt"
	"os"

	"gitlab.com/akita/mem/v3/mem"
)

// DeriveStackPointer computes where the NMP program's stack starts: the top
// of a reserved region at the high end of the device's local memory, so the
// stack never collides with the image loaded at the low end.
func DeriveStackPointer(base, regionSize, stackSize uint64) uint64 {
	return base + regionSize - stackSize
}

// An ImageLoader places a binary image into the backend storage at the
// address the core will start executing from.
type ImageLoader struct {
	Storage   *mem.Storage
	StartAddr uint64

	// The image must fit below the reserved stack region.
	Limit uint64
}

// LoadFile reads the image at path and loads it. It returns the image size.
func (l ImageLoader) LoadFile(path string) (uint64, error) {
	if path == "" {
		return 0, fmt.Errorf("no NMP binary configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("cannot read NMP binary: %w", err)
	}

	return l.LoadBytes(data)
}

// LoadBytes loads an already-materialized image.
func (l ImageLoader) LoadBytes(data []byte) (uint64, error) {
	size := uint64(len(data))
	if size == 0 {
		return 0, fmt.Errorf("NMP image is empty")
	}

	if l.Limit > 0 && size > l.Limit {
		return 0, fmt.Errorf(
			"NMP image of %d bytes overlaps the reserved stack region", size)
	}

	err := l.Storage.Write(l.StartAddr, data)
	if err != nil {
		return 0, fmt.Errorf("cannot place NMP image: %w", err)
	}

	return size, nil
}
