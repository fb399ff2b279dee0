package kmain

import (
	"bytes"
	"kzero/kernel"
	"kzero/kernel/kfmt"
	"kzero/kernel/mm"
	"kzero/kernel/mm/kmem"
	"kzero/multiboot"
	"strings"
	"testing"
)

func mockMemoryMap(entries []multiboot.MemoryMapEntry) func(multiboot.MemRegionVisitor) {
	return func(visitor multiboot.MemRegionVisitor) {
		for i := range entries {
			if !visitor(&entries[i]) {
				return
			}
		}
	}
}

func TestPrintMemoryMap(t *testing.T) {
	defer func() {
		visitMemRegionsFn = multiboot.VisitMemRegions
	}()

	visitMemRegionsFn = mockMemoryMap([]multiboot.MemoryMapEntry{
		{PhysAddress: 0, Length: 0x9fc00, Type: multiboot.MemAvailable},
		{PhysAddress: 0x9fc00, Length: 0x400, Type: multiboot.MemReserved},
		{PhysAddress: 0x100000, Length: 0x7ee0000, Type: multiboot.MemAvailable},
		{PhysAddress: 0xfffc0000, Length: 0x40000, Type: multiboot.MemReserved},
		// runs past the top of the address space
		{PhysAddress: 0xffffffffffff0000, Length: 0x20000, Type: multiboot.MemReserved},
	})

	var buf bytes.Buffer
	kernelRange := mm.PhysRangeWithLen(0x100000, 0x200000)
	available := printMemoryMap(&buf, kernelRange)

	if exp := mm.Size(0x9fc00 + 0x7ee0000); available != exp {
		t.Fatalf("expected available memory to be %d; got %d", exp, available)
	}

	out := buf.String()
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		if !strings.HasPrefix(line, "[boot] ") {
			t.Errorf("expected line to be prefixed; got %q", line)
		}
	}

	for _, exp := range []string{
		"[boot]   [0x0000000000000000 - 0x000000000009fc00], size:     654336, type: available\n",
		"[boot]   [0x00000000fffc0000 - 0x0000000100000000], size:     262144, type: reserved\n",
		"[boot]   [0xffffffffffff0000 - 0xffffffffffffffff], size:      65535, type: reserved\n",
		"[boot]   region holds the kernel image [0x0000000000100000 - 0x0000000000300000]\n",
		"[boot] available memory: 130559Kb\n",
		"[boot] available memory spans [0x0000000000000000 - 0x0000000007fe0000]\n",
	} {
		if !strings.Contains(out, exp) {
			t.Errorf("expected output to contain %q; got:\n%s", exp, out)
		}
	}

	if got := strings.Count(out, "holds the kernel image"); got != 1 {
		t.Errorf("expected exactly one region to hold the kernel; got %d", got)
	}
}

func TestPrintMemoryMapWithoutAvailableMemory(t *testing.T) {
	defer func() {
		visitMemRegionsFn = multiboot.VisitMemRegions
	}()

	visitMemRegionsFn = mockMemoryMap(nil)

	var buf bytes.Buffer
	if got := printMemoryMap(&buf, mm.PhysRangeWithLen(0, 0x1000)); got != 0 {
		t.Fatalf("expected no available memory; got %d", got)
	}

	if strings.Contains(buf.String(), "spans") {
		t.Fatalf("expected no span to be reported; got:\n%s", buf.String())
	}
}

func TestKmain(t *testing.T) {
	defer func(origSyms kmem.LinkSymbols) {
		visitMemRegionsFn = multiboot.VisitMemRegions
		initKmemFn = kmem.InitFromBootInfo
		panicFn = kfmt.Panic
		kmem.SetLinkSymbols(origSyms)
		kfmt.SetOutputSink(nil)
	}(kmem.Image())

	var (
		buf       bytes.Buffer
		panicErrs []interface{}
	)

	kfmt.SetOutputSink(&buf)
	visitMemRegionsFn = mockMemoryMap(nil)
	panicFn = func(e interface{}) {
		panicErrs = append(panicErrs, e)
	}

	t.Run("kmem init fails", func(t *testing.T) {
		buf.Reset()
		panicErrs = nil

		expErr := &kernel.Error{Module: "kmem", Message: "kernel image has no text section"}
		initKmemFn = func() *kernel.Error { return expErr }

		Kmain(0)

		if len(panicErrs) != 1 || panicErrs[0] != expErr {
			t.Fatalf("expected Kmain to panic with %v; got %v", expErr, panicErrs)
		}

		if strings.Contains(buf.String(), "system memory map") {
			t.Fatal("expected Kmain to stop before printing the memory map")
		}
	})

	t.Run("kmain returns", func(t *testing.T) {
		buf.Reset()
		panicErrs = nil

		initKmemFn = func() *kernel.Error {
			kmem.SetLinkSymbols(kmem.LinkSymbols{
				EBootText:        mm.KernelVirtBase,
				Text:             mm.KernelVirtBase + 0x1000,
				EText:            mm.KernelVirtBase + 0x2000,
				ROData:           mm.KernelVirtBase + 0x2000,
				EROData:          mm.KernelVirtBase + 0x3000,
				Data:             mm.KernelVirtBase + 0x3000,
				EData:            mm.KernelVirtBase + 0x4000,
				BSS:              mm.KernelVirtBase + 0x4000,
				EBSS:             mm.KernelVirtBase + 0x5000,
				End:              mm.KernelVirtBase + 0x5000,
				EarlyPageTables:  mm.KernelVirtBase + 0x5000,
				EEarlyPageTables: mm.KernelVirtBase + 0x5000,
			})
			return nil
		}

		Kmain(0)

		if len(panicErrs) != 1 || panicErrs[0] != errKmainReturned {
			t.Fatalf("expected Kmain to panic with %v; got %v", errKmainReturned, panicErrs)
		}

		if !strings.Contains(buf.String(), "[boot] system memory map:") {
			t.Errorf("expected memory map to be printed; got:\n%s", buf.String())
		}
	})
}
