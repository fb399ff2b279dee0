package kmem

import (
	"io"
	"kzero/kernel"
	"kzero/kernel/kfmt"
	"kzero/kernel/mm"
)

var (
	errSymbolBelowBase      = &kernel.Error{Module: "kmem", Message: "link symbol is below the kernel base"}
	errUnorderedSections    = &kernel.Error{Module: "kmem", Message: "kernel sections are not in link order"}
	errEarlyPagesOutOfImage = &kernel.Error{Module: "kmem", Message: "early page tables lie outside the kernel image"}

	layoutModule = "kmem"
)

// Section identifies one of the regions of the kernel image.
type Section uint8

// The image regions in link order, followed by the whole image.
const (
	SectionBootText Section = iota
	SectionText
	SectionROData
	SectionData
	SectionBSS
	SectionEarlyPageTables
	SectionKernel
	numSections
)

var sectionNames = [numSections]string{
	"boottext",
	"text",
	"rodata",
	"data",
	"bss",
	"early_pagetables",
	"kernel",
}

// String implements fmt.Stringer for Section.
func (s Section) String() string {
	if s >= numSections {
		return "unknown"
	}
	return sectionNames[s]
}

// SectionVisitor is invoked by VisitSections with the physical range of
// each image region. The visitor must return true to continue or false to
// abort.
type SectionVisitor func(Section, mm.PhysRange) bool

// Range returns the physical range of the given image region.
func (s *LinkSymbols) Range(sec Section) mm.PhysRange {
	switch sec {
	case SectionBootText:
		return s.BootTextRange()
	case SectionText:
		return s.TextRange()
	case SectionROData:
		return s.RODataRange()
	case SectionData:
		return s.DataRange()
	case SectionBSS:
		return s.BSSRange()
	case SectionEarlyPageTables:
		return s.EarlyPagesRange()
	default:
		return s.TotalKernelRange()
	}
}

// VisitSections invokes visitor for each image region in link order and
// finally for the whole image.
func (s *LinkSymbols) VisitSections(visitor SectionVisitor) {
	for sec := Section(0); sec < numSections; sec++ {
		if !visitor(sec, s.Range(sec)) {
			return
		}
	}
}

// Validate checks that every symbol lies at or above mm.KernelVirtBase,
// that the sections appear in link order and that the early page tables
// are part of the image.
func (s *LinkSymbols) Validate() *kernel.Error {
	bounds := [...]uintptr{
		mm.KernelVirtBase,
		s.EBootText,
		s.Text, s.EText,
		s.ROData, s.EROData,
		s.Data, s.EData,
		s.BSS, s.EBSS,
		s.End,
	}

	for _, addr := range bounds {
		if addr < mm.KernelVirtBase {
			return errSymbolBelowBase
		}
	}

	for i := 1; i < len(bounds); i++ {
		if bounds[i] < bounds[i-1] {
			return errUnorderedSections
		}
	}

	if s.EarlyPageTables > s.EEarlyPageTables ||
		s.EarlyPageTables < mm.KernelVirtBase ||
		s.EEarlyPageTables > s.End {
		return errEarlyPagesOutOfImage
	}

	return nil
}

// PrintLayout writes one line per image region to w.
func (s *LinkSymbols) PrintLayout(w io.Writer) {
	pw := kfmt.NewPrefixWriter(w, layoutModule)
	s.VisitSections(func(sec Section, r mm.PhysRange) bool {
		pw.Printf("%16s 0x%16x - 0x%16x (%d bytes)\n", sec.String(), r.Start(), r.End(), r.Size())
		return true
	})
}

// VisitSections invokes visitor for each region of the running kernel.
func VisitSections(visitor SectionVisitor) { image.VisitSections(visitor) }

// PrintLayout writes the layout of the running kernel to w.
func PrintLayout(w io.Writer) { image.PrintLayout(w) }

// Init validates and installs the link symbols of the running kernel and
// logs the resulting physical layout. It must be called before any of the
// package level range accessors.
func Init(syms LinkSymbols) *kernel.Error {
	if err := syms.Validate(); err != nil {
		return err
	}

	SetLinkSymbols(syms)
	PrintLayout(kfmt.Writer())
	return nil
}
