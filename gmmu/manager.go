package gmmu

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// PageBits is the log2 of the page size used for guest GPU mappings. The
// hardware maps in 64KiB big pages for surface memory.
const PageBits = 16

// PageSize is the granularity of Map and Unmap operations.
const PageSize uint64 = 1 << PageBits

// MemoryManager is a page-granular implementation of AddressSpace. Guest
// physical memory is held in an Akita storage component; the page table
// maps guest virtual pages onto it.
type MemoryManager struct {
	storage *mem.Storage
	pages   map[uint64]uint64 // virtual page number -> physical page number
}

// NewMemoryManager creates a memory manager with the given backing capacity
// in bytes.
func NewMemoryManager(capacity uint64) *MemoryManager {
	return &MemoryManager{
		storage: mem.NewStorage(capacity),
		pages:   make(map[uint64]uint64),
	}
}

// Map installs a mapping from a guest virtual range to a physical range.
// Both addresses and the size must be page-aligned.
func (mm *MemoryManager) Map(virtAddr, physAddr, size uint64) error {
	if virtAddr%PageSize != 0 || physAddr%PageSize != 0 || size%PageSize != 0 {
		return fmt.Errorf("gmmu: map of VA 0x%X -> PA 0x%X (size 0x%X) is not page-aligned", virtAddr, physAddr, size)
	}
	if virtAddr+size > MaxAddress {
		return fmt.Errorf("gmmu: VA 0x%X + size 0x%X exceeds the %d-bit address space", virtAddr, size, AddressSpaceBits)
	}

	for offset := uint64(0); offset < size; offset += PageSize {
		mm.pages[(virtAddr+offset)>>PageBits] = (physAddr + offset) >> PageBits
	}
	return nil
}

// Unmap removes any mappings covering the given virtual range.
func (mm *MemoryManager) Unmap(virtAddr, size uint64) {
	first := virtAddr >> PageBits
	last := (virtAddr + size + PageSize - 1) >> PageBits
	for page := first; page < last; page++ {
		delete(mm.pages, page)
	}
}

// Translate resolves a guest virtual span into host byte ranges, coalescing
// physically contiguous pages into a single mapping.
func (mm *MemoryManager) Translate(virtAddr uint64, size uint64) ([]Mapping, error) {
	if size == 0 {
		return nil, nil
	}

	var mappings []Mapping
	remaining := size
	addr := virtAddr

	for remaining > 0 {
		physPage, ok := mm.pages[addr>>PageBits]
		if !ok {
			return nil, fmt.Errorf("gmmu: translating VA 0x%X (span 0x%X+0x%X): %w", addr, virtAddr, size, ErrUnmapped)
		}

		pageOffset := addr & (PageSize - 1)
		physAddr := physPage<<PageBits | pageOffset
		chunk := PageSize - pageOffset
		if chunk > remaining {
			chunk = remaining
		}

		if n := len(mappings); n > 0 && mappings[n-1].End() == physAddr {
			mappings[n-1].Size += chunk
		} else {
			mappings = append(mappings, Mapping{Address: physAddr, Size: chunk})
		}

		addr += chunk
		remaining -= chunk
	}
	return mappings, nil
}

// ReadRange copies out the contents of a host byte range.
func (mm *MemoryManager) ReadRange(m Mapping) ([]byte, error) {
	return mm.storage.Read(m.Address, m.Size)
}

// WriteRange stores data into a host byte range.
func (mm *MemoryManager) WriteRange(m Mapping, data []byte) error {
	return mm.storage.Write(m.Address, data)
}

// WriteVirtual stores data at a guest virtual address, splitting the write
// across mapping fragments.
func (mm *MemoryManager) WriteVirtual(virtAddr uint64, data []byte) error {
	mappings, err := mm.Translate(virtAddr, uint64(len(data)))
	if err != nil {
		return err
	}

	for _, m := range mappings {
		if err := mm.storage.Write(m.Address, data[:m.Size]); err != nil {
			return err
		}
		data = data[m.Size:]
	}
	return nil
}
