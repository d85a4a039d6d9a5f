// Package gmmu models the GPU memory management unit that maps the guest
// GPU's virtual address space onto host-visible memory.
package gmmu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// AddressSpaceBits is the width of the GPU virtual address space.
const AddressSpaceBits = 40

// MaxAddress is the first address outside the GPU virtual address space.
const MaxAddress uint64 = 1 << AddressSpaceBits

// ErrUnmapped is returned when a virtual range has no backing mapping.
var ErrUnmapped = errors.New("gmmu: address not mapped")

// Mapping is a single contiguous host-visible byte range backing part of a
// guest virtual span. A guest span may translate to several mappings.
type Mapping struct {
	// Address is the host-visible (physical) byte offset of the range.
	Address uint64

	// Size is the length of the range in bytes.
	Size uint64
}

// End returns the first byte offset past the mapping.
func (m Mapping) End() uint64 {
	return m.Address + m.Size
}

// Intersects reports whether two host ranges share at least one byte.
func (m Mapping) Intersects(other Mapping) bool {
	return m.Address < other.End() && other.Address < m.End()
}

// AddressSpace resolves guest GPU virtual addresses into host-visible byte
// ranges and moves data across them. Implementations live outside the
// command-processing core; the engine and texture layers consume this
// contract only.
type AddressSpace interface {
	// Translate resolves a guest virtual span into an ordered sequence of
	// host byte ranges. Returns ErrUnmapped (wrapped) if any part of the
	// span has no mapping.
	Translate(virtAddr uint64, size uint64) ([]Mapping, error)

	// ReadRange copies the contents of a previously translated host range.
	ReadRange(m Mapping) ([]byte, error)

	// WriteRange stores data into a previously translated host range.
	WriteRange(m Mapping, data []byte) error

	// WriteVirtual stores data at a guest virtual address, spanning
	// mapping fragments as needed.
	WriteVirtual(virtAddr uint64, data []byte) error
}

// WriteUint32 writes a little-endian 32-bit value at a guest virtual address.
func WriteUint32(as AddressSpace, virtAddr uint64, value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return as.WriteVirtual(virtAddr, buf[:])
}

// WriteUint64 writes a little-endian 64-bit value at a guest virtual address.
func WriteUint64(as AddressSpace, virtAddr uint64, value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	return as.WriteVirtual(virtAddr, buf[:])
}

// ReadAll gathers the contents of a translated mapping list into one buffer.
func ReadAll(as AddressSpace, mappings []Mapping) ([]byte, error) {
	var total uint64
	for _, m := range mappings {
		total += m.Size
	}

	out := make([]byte, 0, total)
	for _, m := range mappings {
		data, err := as.ReadRange(m)
		if err != nil {
			return nil, fmt.Errorf("reading mapping at 0x%X: %w", m.Address, err)
		}
		out = append(out, data...)
	}
	return out, nil
}
