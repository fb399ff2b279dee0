package kmem

import (
	"kzero/kernel"
	"kzero/kernel/mm"
	"kzero/multiboot"
	"strings"
)

var (
	// visitElfSectionsFn is mocked by tests.
	visitElfSectionsFn = multiboot.VisitElfSections

	errNoTextSection   = &kernel.Error{Module: "kmem", Message: "kernel image has no text section"}
	errNoRODataSection = &kernel.Error{Module: "kmem", Message: "kernel image has no read-only data section"}
	errNoDataSection   = &kernel.Error{Module: "kmem", Message: "kernel image has no data section"}
	errNoBSSSection    = &kernel.Error{Module: "kmem", Message: "kernel image has no bss section"}
)

const (
	bootTextSectionName   = ".boottext"
	earlyPagesSectionName = ".early_pagetables"
)

// span accumulates the smallest address interval covering a set of
// sections.
type span struct {
	start, end uintptr
	found      bool
}

func (s *span) add(start, end uintptr) {
	if !s.found {
		s.start, s.end, s.found = start, end, true
		return
	}
	s.start = min(s.start, start)
	s.end = max(s.end, end)
}

// LinkSymbolsFromElfSections derives the link symbols from the ELF section
// headers reported by visit. Sections are classified as follows:
//
//   - .boottext and .early_pagetables are matched by name
//   - executable sections form the text
//   - writable sections whose name ends in "bss" form the bss; other
//     writable sections form the data
//   - the remaining allocated sections form the read-only data
//
// Unallocated sections, thread-local templates and sections below
// mm.KernelVirtBase are ignored. Text, read-only data, data and bss are
// required. A missing boot text or early page table section yields an empty
// range. The derived symbols are validated before they are returned.
func LinkSymbolsFromElfSections(visit func(multiboot.ElfSectionVisitor)) (LinkSymbols, *kernel.Error) {
	var bootText, text, roData, data, bss, earlyPages, all span

	visit(func(name string, flags multiboot.ElfSectionFlag, address uintptr, size uint64) {
		if flags&multiboot.ElfSectionAllocated == 0 || flags&multiboot.ElfSectionTLS != 0 || address < mm.KernelVirtBase {
			return
		}

		start, end := address, address+uintptr(size)
		all.add(start, end)

		switch {
		case name == bootTextSectionName:
			bootText.add(start, end)
		case name == earlyPagesSectionName:
			earlyPages.add(start, end)
		case flags&multiboot.ElfSectionExecutable != 0:
			text.add(start, end)
		case flags&multiboot.ElfSectionWritable != 0 && strings.HasSuffix(name, "bss"):
			bss.add(start, end)
		case flags&multiboot.ElfSectionWritable != 0:
			data.add(start, end)
		default:
			roData.add(start, end)
		}
	})

	for _, req := range []struct {
		s   *span
		err *kernel.Error
	}{
		{&text, errNoTextSection},
		{&roData, errNoRODataSection},
		{&data, errNoDataSection},
		{&bss, errNoBSSSection},
	} {
		if !req.s.found {
			return LinkSymbols{}, req.err
		}
	}

	syms := LinkSymbols{
		EBootText:        mm.KernelVirtBase,
		Text:             text.start,
		EText:            text.end,
		ROData:           roData.start,
		EROData:          roData.end,
		Data:             data.start,
		EData:            data.end,
		BSS:              bss.start,
		EBSS:             bss.end,
		End:              all.end,
		EarlyPageTables:  all.end,
		EEarlyPageTables: all.end,
	}

	if bootText.found {
		syms.EBootText = bootText.end
	}

	if earlyPages.found {
		syms.EarlyPageTables, syms.EEarlyPageTables = earlyPages.start, earlyPages.end
	}

	if err := syms.Validate(); err != nil {
		return LinkSymbols{}, err
	}

	return syms, nil
}

// InitFromBootInfo derives the link symbols from the ELF section headers
// supplied by the boot loader and passes them to Init. The multiboot info
// pointer must have been set beforehand.
func InitFromBootInfo() *kernel.Error {
	syms, err := LinkSymbolsFromElfSections(visitElfSectionsFn)
	if err != nil {
		return err
	}

	return Init(syms)
}
