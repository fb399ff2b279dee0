// Package fdt contains the flattened device tree types consumed by the
// memory core.
package fdt

import (
	"encoding/binary"
	"kzero/kernel"
)

var (
	errUnsupportedCells = &kernel.Error{Module: "fdt", Message: "reg cell count must be 0, 1 or 2"}
	errMalformedReg     = &kernel.Error{Module: "fdt", Message: "reg property length is not a multiple of the entry size"}
)

// RegBlock describes a single (address, length) pair taken from the reg
// property of a device tree node.
type RegBlock struct {
	// The base address of the register block.
	Addr uint64

	// The length of the block. Only valid if HasLen is set; nodes whose
	// parent specifies #size-cells = <0> carry no length.
	Len    uint64
	HasLen bool
}

// Length returns the block length or 0 if the block carries no length.
func (r *RegBlock) Length() uint64 {
	if !r.HasLen {
		return 0
	}
	return r.Len
}

// RegBlockVisitor is invoked by VisitRegBlocks for each decoded block. The
// visitor must return true to continue or false to abort the scan.
type RegBlockVisitor func(block *RegBlock) bool

// VisitRegBlocks decodes prop, the raw big-endian contents of a reg property
// whose parent node uses addrCells/sizeCells 32-bit cells per address and
// length, and invokes visitor for each entry.
func VisitRegBlocks(prop []byte, addrCells, sizeCells uint32, visitor RegBlockVisitor) *kernel.Error {
	if addrCells == 0 || addrCells > 2 || sizeCells > 2 {
		return errUnsupportedCells
	}

	entrySize := int(addrCells+sizeCells) * 4
	if len(prop)%entrySize != 0 {
		return errMalformedReg
	}

	var block RegBlock
	for offset := 0; offset < len(prop); offset += entrySize {
		block.Addr = readCells(prop[offset:], addrCells)
		block.Len = readCells(prop[offset+int(addrCells)*4:], sizeCells)
		block.HasLen = sizeCells != 0

		if !visitor(&block) {
			break
		}
	}

	return nil
}

// readCells reads a value spanning count big-endian 32-bit cells.
func readCells(b []byte, count uint32) uint64 {
	switch count {
	case 1:
		return uint64(binary.BigEndian.Uint32(b))
	case 2:
		return binary.BigEndian.Uint64(b)
	default:
		return 0
	}
}
