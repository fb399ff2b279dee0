package kmain

import (
	"io"
	"kzero/kernel"
	"kzero/kernel/kfmt"
	"kzero/kernel/mm"
	"kzero/kernel/mm/kmem"
	"kzero/multiboot"
)

var (
	// Mocked by tests.
	visitMemRegionsFn = multiboot.VisitMemRegions
	initKmemFn        = kmem.InitFromBootInfo
	panicFn           = kfmt.Panic

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	bootModule = "boot"
)

// Kmain is invoked by the rt0 assembly code once a minimal g0 and stack are
// in place. The rt0 code passes the address of the multiboot info payload
// provided by the bootloader.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	if err := initKmemFn(); err != nil {
		panicFn(err)
		return
	}

	printMemoryMap(kfmt.Writer(), kmem.TotalKernelRange())

	// Call kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}

// printMemoryMap lists the memory regions reported by the boot loader,
// flags available regions that hold the kernel image and returns the amount
// of available memory.
func printMemoryMap(w io.Writer, kernelRange mm.PhysRange) mm.Size {
	var (
		pw        = kfmt.NewPrefixWriter(w, bootModule)
		available mm.Size
		span      mm.PhysRange
		seen      bool
	)

	pw.Printf("system memory map:\n")
	visitMemRegionsFn(func(entry *multiboot.MemoryMapEntry) bool {
		r := entry.Range()
		pw.Printf("  [0x%16x - 0x%16x], size: %10d, type: %s\n", r.Start(), r.End(), r.Size(), entry.Type.String())

		if entry.Type != multiboot.MemAvailable || r.IsEmpty() {
			return true
		}

		available += r.Size()
		if r.Overlaps(kernelRange) {
			pw.Printf("  region holds the kernel image [0x%16x - 0x%16x]\n", kernelRange.Start(), kernelRange.End())
		}

		if !seen {
			span, seen = r, true
		} else {
			span = span.Add(r)
		}
		return true
	})

	pw.Printf("available memory: %dKb\n", uint64(available/mm.Kb))
	if seen {
		pw.Printf("available memory spans [0x%16x - 0x%16x]\n", span.Start(), span.End())
	}

	return available
}
