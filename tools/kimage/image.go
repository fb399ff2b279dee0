package main

import (
	"debug/elf"
	"fmt"
	"io"

	"kzero/kernel/mm"
	"kzero/kernel/mm/kmem"
)

// imageReport holds the resolved layout of one kernel image.
type imageReport struct {
	path     string
	syms     kmem.LinkSymbols
	warnings []string
}

// resolveImage reads the link symbols of the kernel ELF image at path,
// either from its symbol table or, when useSections is set, from its
// section headers.
func resolveImage(path string, useSections bool, prefix string) (kmem.LinkSymbols, error) {
	f, err := elf.Open(path)
	if err != nil {
		return kmem.LinkSymbols{}, err
	}
	defer f.Close()

	if useSections {
		return resolveSections(f.Sections)
	}

	symbols, err := f.Symbols()
	if err != nil {
		return kmem.LinkSymbols{}, fmt.Errorf("reading symbol table: %w", err)
	}

	return resolveSymbols(symbols, prefix)
}

// checkAlignment returns a warning for every non-empty image region whose
// physical bounds are not multiples of align. The whole-image range is
// skipped since its end only needs to cover the last section.
func checkAlignment(syms *kmem.LinkSymbols, align mm.Size) []string {
	var warnings []string
	syms.VisitSections(func(sec kmem.Section, r mm.PhysRange) bool {
		if sec == kmem.SectionKernel || r.IsEmpty() {
			return true
		}

		if !r.Start().IsMultipleOf(align) {
			warnings = append(warnings, fmt.Sprintf("%s starts at %v which is not aligned to 0x%x", sec, r.Start(), uint64(align)))
		}
		if !r.End().IsMultipleOf(align) {
			warnings = append(warnings, fmt.Sprintf("%s ends at %v which is not aligned to 0x%x", sec, r.End(), uint64(align)))
		}
		return true
	})

	return warnings
}

// writeReport prints the physical layout of each image in the order given.
func writeReport(w io.Writer, reports []*imageReport) {
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}

		total := r.syms.TotalKernelRange()
		fmt.Fprintf(w, "%s: %d bytes (%d pages)\n", r.path, uint64(total.Size()), pagesIn(total))
		r.syms.PrintLayout(w)
	}
}

func pagesIn(r mm.PhysRange) uint {
	stepper := r.StepByRounded(mm.PageSize)
	n, _, _ := stepper.SizeHint()
	return n
}
