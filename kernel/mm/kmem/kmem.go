// Package kmem describes where the kernel image lives in physical memory.
//
// The kernel is linked to run at mm.KernelVirtBase and is loaded so that
// every image address is exactly mm.KernelVirtBase bytes above its physical
// location. Translations provided by this package rely on that fixed offset
// and must only be used for addresses inside the kernel image or other
// memory mapped the same way.
package kmem

import (
	"kzero/kernel"
	"kzero/kernel/kfmt"
	"kzero/kernel/mm"
	"unsafe"
)

var (
	// checkInvariants enables the lower bound check in FromVirtToPhysAddr.
	checkInvariants = kernel.DebugBuild

	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errBelowKernelBase = &kernel.Error{Module: "kmem", Message: "virtual address is below the kernel base"}

	// image holds the link symbols of the running kernel.
	image LinkSymbols
)

// LinkSymbols holds the virtual addresses of the section boundary symbols
// defined by the kernel linker script. They are treated as plain integers
// and never dereferenced.
type LinkSymbols struct {
	EBootText        uintptr
	Text             uintptr
	EText            uintptr
	ROData           uintptr
	EROData          uintptr
	Data             uintptr
	EData            uintptr
	BSS              uintptr
	EBSS             uintptr
	End              uintptr
	EarlyPageTables  uintptr
	EEarlyPageTables uintptr
}

// SetLinkSymbols installs the link symbols of the running kernel without
// validating them. Most callers want Init instead.
func SetLinkSymbols(syms LinkSymbols) {
	image = syms
}

// Image returns the link symbols installed by Init or SetLinkSymbols.
func Image() LinkSymbols {
	return image
}

// FromVirtToPhysAddr returns the physical address backing va assuming va
// belongs to the region mapped at a fixed offset from mm.KernelVirtBase.
// The result is meaningless for any other address. When invariant checks
// are enabled an address below mm.KernelVirtBase is a fatal error.
func FromVirtToPhysAddr(va mm.VirtAddr) mm.PhysAddr {
	if checkInvariants && va.Addr() < mm.KernelVirtBase {
		kfmt.Printf("[kmem] virtual address 0x%16x is below the kernel base 0x%16x\n", va, mm.KernelVirtBase)
		panicFn(errBelowKernelBase)
	}

	return mm.PhysAddr(va.Addr() - mm.KernelVirtBase)
}

// FromPtrToPhysAddr returns the physical address backing ptr. The same
// restrictions as FromVirtToPhysAddr apply.
func FromPtrToPhysAddr(ptr unsafe.Pointer) mm.PhysAddr {
	return FromVirtToPhysAddr(mm.VirtAddr(uintptr(ptr)))
}

// PhysAddrAsPtr returns the virtual address at which pa is accessible
// through the fixed-offset mapping. The addition wraps silently; it is the
// caller's job to ensure that pa is actually mapped.
func PhysAddrAsPtr(pa mm.PhysAddr) uintptr {
	return uintptr(pa) + mm.KernelVirtBase
}

func physRange(start, end uintptr) mm.PhysRange {
	return mm.NewPhysRange(
		FromVirtToPhysAddr(mm.VirtAddr(start)),
		FromVirtToPhysAddr(mm.VirtAddr(end)),
	)
}

// BootTextRange returns the physical range of the boot text, which starts
// at the image base.
func (s *LinkSymbols) BootTextRange() mm.PhysRange {
	return physRange(mm.KernelVirtBase, s.EBootText)
}

// TextRange returns the physical range of the kernel text.
func (s *LinkSymbols) TextRange() mm.PhysRange {
	return physRange(s.Text, s.EText)
}

// RODataRange returns the physical range of the read-only data.
func (s *LinkSymbols) RODataRange() mm.PhysRange {
	return physRange(s.ROData, s.EROData)
}

// DataRange returns the physical range of the initialized data.
func (s *LinkSymbols) DataRange() mm.PhysRange {
	return physRange(s.Data, s.EData)
}

// BSSRange returns the physical range of the zero-initialized data.
func (s *LinkSymbols) BSSRange() mm.PhysRange {
	return physRange(s.BSS, s.EBSS)
}

// TotalKernelRange returns the physical range spanning the whole image,
// from the image base to the end symbol.
func (s *LinkSymbols) TotalKernelRange() mm.PhysRange {
	return physRange(mm.KernelVirtBase, s.End)
}

// EarlyPagesRange returns the physical range reserved for the page tables
// used while bootstrapping.
func (s *LinkSymbols) EarlyPagesRange() mm.PhysRange {
	return physRange(s.EarlyPageTables, s.EEarlyPageTables)
}

// BootTextRange returns the boot text range of the running kernel.
func BootTextRange() mm.PhysRange { return image.BootTextRange() }

// TextRange returns the text range of the running kernel.
func TextRange() mm.PhysRange { return image.TextRange() }

// RODataRange returns the read-only data range of the running kernel.
func RODataRange() mm.PhysRange { return image.RODataRange() }

// DataRange returns the data range of the running kernel.
func DataRange() mm.PhysRange { return image.DataRange() }

// BSSRange returns the bss range of the running kernel.
func BSSRange() mm.PhysRange { return image.BSSRange() }

// TotalKernelRange returns the physical range occupied by the running kernel.
func TotalKernelRange() mm.PhysRange { return image.TotalKernelRange() }

// EarlyPagesRange returns the early page table range of the running kernel.
func EarlyPagesRange() mm.PhysRange { return image.EarlyPagesRange() }
