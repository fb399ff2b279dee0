package main

import (
	"debug/elf"
	"fmt"
	"strings"

	"kzero/kernel/mm"
	"kzero/kernel/mm/kmem"
	"kzero/multiboot"
)

// linkSymbol binds a linker script symbol to the LinkSymbols field it
// populates.
type linkSymbol struct {
	name     string
	optional bool
	field    func(*kmem.LinkSymbols) *uintptr
}

var linkSymbols = []linkSymbol{
	{"eboottext", true, func(s *kmem.LinkSymbols) *uintptr { return &s.EBootText }},
	{"text", false, func(s *kmem.LinkSymbols) *uintptr { return &s.Text }},
	{"etext", false, func(s *kmem.LinkSymbols) *uintptr { return &s.EText }},
	{"rodata", false, func(s *kmem.LinkSymbols) *uintptr { return &s.ROData }},
	{"erodata", false, func(s *kmem.LinkSymbols) *uintptr { return &s.EROData }},
	{"data", false, func(s *kmem.LinkSymbols) *uintptr { return &s.Data }},
	{"edata", false, func(s *kmem.LinkSymbols) *uintptr { return &s.EData }},
	{"bss", false, func(s *kmem.LinkSymbols) *uintptr { return &s.BSS }},
	{"ebss", false, func(s *kmem.LinkSymbols) *uintptr { return &s.EBSS }},
	{"end", false, func(s *kmem.LinkSymbols) *uintptr { return &s.End }},
	{"early_pagetables", true, func(s *kmem.LinkSymbols) *uintptr { return &s.EarlyPageTables }},
	{"eearly_pagetables", true, func(s *kmem.LinkSymbols) *uintptr { return &s.EEarlyPageTables }},
}

// resolveSymbols looks up the link symbols in an ELF symbol table. Symbol
// names are matched after prepending prefix (e.g. "runtime." for the
// symbols the Go linker defines). A missing boot text end defaults to the
// image base and missing early page tables default to an empty range at the
// image end.
func resolveSymbols(symbols []elf.Symbol, prefix string) (kmem.LinkSymbols, error) {
	values := make(map[string]uint64, len(symbols))
	for _, sym := range symbols {
		values[sym.Name] = sym.Value
	}

	var (
		syms    kmem.LinkSymbols
		found   = make(map[string]bool, len(linkSymbols))
		missing []string
	)

	for _, ls := range linkSymbols {
		v, ok := values[prefix+ls.name]
		if !ok {
			if !ls.optional {
				missing = append(missing, prefix+ls.name)
			}
			continue
		}
		*ls.field(&syms) = uintptr(v)
		found[ls.name] = true
	}

	if len(missing) != 0 {
		return kmem.LinkSymbols{}, fmt.Errorf("missing link symbols: %s", strings.Join(missing, ", "))
	}

	if !found["eboottext"] {
		syms.EBootText = mm.KernelVirtBase
	}

	if !found["early_pagetables"] || !found["eearly_pagetables"] {
		syms.EarlyPageTables, syms.EEarlyPageTables = syms.End, syms.End
	}

	if err := syms.Validate(); err != nil {
		return kmem.LinkSymbols{}, fmt.Errorf("invalid link symbols: %w", err)
	}

	return syms, nil
}

// resolveSections derives the link symbols from the ELF section headers in
// the same way the kernel does from the multiboot ELF symbols tag.
func resolveSections(sections []*elf.Section) (kmem.LinkSymbols, error) {
	syms, err := kmem.LinkSymbolsFromElfSections(func(visitor multiboot.ElfSectionVisitor) {
		for _, sec := range sections {
			if sec.Size == 0 {
				continue
			}
			visitor(sec.Name, multiboot.ElfSectionFlag(sec.Flags), uintptr(sec.Addr), sec.Size)
		}
	})
	if err != nil {
		return kmem.LinkSymbols{}, fmt.Errorf("invalid section layout: %w", err)
	}

	return syms, nil
}
