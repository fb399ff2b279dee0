// Package mm defines the address and address range types shared by the
// memory management code. Physical and virtual addresses use distinct types
// so that crossing from one address space to the other always goes through
// an explicit translation (see package kmem).
package mm

import (
	"kzero/kernel"
	"math"
)

var (
	// checkInvariants enables the debug-only overflow checks on address
	// arithmetic. Tests toggle it to exercise the checks in release builds.
	checkInvariants = kernel.DebugBuild

	errAlignNotPowerOfTwo = &kernel.Error{Module: "mm", Message: "alignment must be a power of two"}
	errPhysAddrOverflow   = &kernel.Error{Module: "mm", Message: "physical address overflow"}
	errPhysAddrUnderflow  = &kernel.Error{Module: "mm", Message: "physical address underflow"}
	errVirtAddrOverflow   = &kernel.Error{Module: "mm", Message: "virtual address overflow"}
	errVirtAddrUnderflow  = &kernel.Error{Module: "mm", Message: "virtual address underflow"}
)

// VirtAddr is an address in the virtual address space the kernel executes in.
type VirtAddr uintptr

// Addr returns the raw value of the virtual address.
func (va VirtAddr) Addr() uintptr {
	return uintptr(va)
}

// Add returns the address offset bytes after va. Overflowing the address
// space is a programming error and is only detected in debug builds.
func (va VirtAddr) Add(offset uintptr) VirtAddr {
	sum := va + VirtAddr(offset)
	if checkInvariants && sum < va {
		panic(errVirtAddrOverflow)
	}
	return sum
}

// Sub returns the address offset bytes before va. Moving below address zero
// is a programming error and is only detected in debug builds.
func (va VirtAddr) Sub(offset uintptr) VirtAddr {
	if checkInvariants && VirtAddr(offset) > va {
		panic(errVirtAddrUnderflow)
	}
	return va - VirtAddr(offset)
}

// String implements fmt.Stringer for VirtAddr.
func (va VirtAddr) String() string {
	var buf [32]byte
	b := append(buf[:0], "VirtAddr("...)
	b = appendHex(b, uint64(va))
	return string(append(b, ')'))
}

// PhysAddr is a location in physical memory. Its width does not depend on
// the pointer size of the running architecture.
type PhysAddr uint64

// Addr returns the raw value of the physical address.
func (pa PhysAddr) Addr() uint64 {
	return uint64(pa)
}

// Add returns the address offset bytes after pa. Overflow is only detected
// in debug builds.
func (pa PhysAddr) Add(offset Size) PhysAddr {
	sum := pa + PhysAddr(offset)
	if checkInvariants && sum < pa {
		panic(errPhysAddrOverflow)
	}
	return sum
}

// Sub returns the address offset bytes before pa. Underflow is only detected
// in debug builds.
func (pa PhysAddr) Sub(offset Size) PhysAddr {
	if checkInvariants && PhysAddr(offset) > pa {
		panic(errPhysAddrUnderflow)
	}
	return pa - PhysAddr(offset)
}

// RoundUp rounds pa up to the next multiple of align. RoundUp panics if
// align is not a power of two or if the rounded address cannot be
// represented.
func (pa PhysAddr) RoundUp(align Size) PhysAddr {
	rounded, ok := pa.roundUpChecked(align)
	if !ok {
		panic(errPhysAddrOverflow)
	}
	return rounded
}

// RoundDown rounds pa down to the previous multiple of align. RoundDown
// panics if align is not a power of two.
func (pa PhysAddr) RoundDown(align Size) PhysAddr {
	if !isPowerOfTwo(align) {
		panic(errAlignNotPowerOfTwo)
	}
	return pa &^ PhysAddr(align-1)
}

// roundUpChecked behaves like RoundUp but reports whether the result is
// representable instead of panicking.
func (pa PhysAddr) roundUpChecked(align Size) (PhysAddr, bool) {
	if !isPowerOfTwo(align) {
		panic(errAlignNotPowerOfTwo)
	}

	mask := PhysAddr(align - 1)
	if pa&mask == 0 {
		return pa, true
	}

	if pa > PhysAddr(math.MaxUint64)-mask {
		return 0, false
	}
	return (pa + mask) &^ mask, true
}

// IsMultipleOf returns true if pa is a multiple of n. Only address zero is
// considered a multiple of zero.
func (pa PhysAddr) IsMultipleOf(n Size) bool {
	if n == 0 {
		return pa == 0
	}
	return uint64(pa)%uint64(n) == 0
}

// String implements fmt.Stringer for PhysAddr.
func (pa PhysAddr) String() string {
	var buf [32]byte
	b := append(buf[:0], "PhysAddr("...)
	b = appendHex(b, uint64(pa))
	return string(append(b, ')'))
}

const hexDigits = "0123456789abcdef"

// appendHex appends v to buf as a 0x-prefixed, zero padded 64-bit hex value.
// appendHex appends v as "0x" followed by exactly 16 zero-padded lower-case
// hex digits, so that every 64-bit address renders with the same width.
func appendHex(buf []byte, v uint64) []byte {
	buf = append(buf, '0', 'x')
	for shift := 60; shift >= 0; shift -= 4 {
		buf = append(buf, hexDigits[(v>>uint(shift))&0xf])
	}
	return buf
}
