package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)).
	PointerShift = 3

	// PageShift is equal to log2(PageSize) for the 4K translation granule.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// KernelVirtBase (KZERO) is the start of the TTBR1 half of the address
	// space. The boot code maps physical memory at a constant offset from
	// it and links the kernel image at this address.
	KernelVirtBase = uintptr(0xffff800000000000)
)
