package mm

import (
	"kzero/device/fdt"
	"kzero/kernel"
)

var (
	errInvertedRange = &kernel.Error{Module: "mm", Message: "range start is greater than range end"}
	errRangeOverflow = &kernel.Error{Module: "mm", Message: "range end is not representable"}
)

// VirtRange describes the half-open virtual address interval [start, end).
type VirtRange struct {
	start, end VirtAddr
}

// NewVirtRange returns the range [start, end). It panics if start > end.
func NewVirtRange(start, end VirtAddr) VirtRange {
	if start > end {
		panic(errInvertedRange)
	}
	return VirtRange{start: start, end: end}
}

// VirtRangeWithLen returns the range that begins at start and spans length
// bytes. It panics if the range end cannot be represented.
func VirtRangeWithLen(start VirtAddr, length uintptr) VirtRange {
	end := start + VirtAddr(length)
	if end < start {
		panic(errRangeOverflow)
	}
	return VirtRange{start: start, end: end}
}

// VirtRangeFromRegBlock returns the range described by a device tree register
// block. Blocks without a length yield an empty range at the block address.
func VirtRangeFromRegBlock(r *fdt.RegBlock) VirtRange {
	return VirtRangeWithLen(VirtAddr(uintptr(r.Addr)), uintptr(r.Length()))
}

// Start returns the first address in the range.
func (r VirtRange) Start() VirtAddr { return r.start }

// End returns the address just past the range.
func (r VirtRange) End() VirtAddr { return r.end }

// Size returns the range length in bytes.
func (r VirtRange) Size() uintptr { return uintptr(r.end - r.start) }

// Contains returns true if va lies inside the range.
func (r VirtRange) Contains(va VirtAddr) bool {
	return va >= r.start && va < r.end
}

// OffsetAddr returns the address offset bytes past the range start if that
// address lies inside the range. The range end is never a valid result.
func (r VirtRange) OffsetAddr(offset uintptr) (VirtAddr, bool) {
	if offset >= r.Size() {
		return 0, false
	}
	return r.start + VirtAddr(offset), true
}

// String implements fmt.Stringer for VirtRange.
func (r VirtRange) String() string {
	return rangeString(uint64(r.start), uint64(r.end))
}

// PhysRange describes the half-open physical address interval [start, end).
type PhysRange struct {
	start, end PhysAddr
}

// NewPhysRange returns the range [start, end). It panics if start > end.
func NewPhysRange(start, end PhysAddr) PhysRange {
	if start > end {
		panic(errInvertedRange)
	}
	return PhysRange{start: start, end: end}
}

// PhysRangeWithEnd returns the range [start, end) for raw address values.
func PhysRangeWithEnd(start, end uint64) PhysRange {
	return NewPhysRange(PhysAddr(start), PhysAddr(end))
}

// PhysRangeWithLen returns the range that begins at the raw address start and
// spans length bytes.
func PhysRangeWithLen(start uint64, length Size) PhysRange {
	return PhysRangeWithAddrLen(PhysAddr(start), length)
}

// PhysRangeWithAddrLen returns the range that begins at start and spans length
// bytes. It panics if the range end cannot be represented.
func PhysRangeWithAddrLen(start PhysAddr, length Size) PhysRange {
	end, ok := start.ForwardChecked(uint64(length))
	if !ok {
		panic(errRangeOverflow)
	}
	return PhysRange{start: start, end: end}
}

// PhysRangeFromRegBlock returns the range described by a device tree register
// block. Blocks without a length yield an empty range at the block address.
func PhysRangeFromRegBlock(r *fdt.RegBlock) PhysRange {
	return PhysRangeWithAddrLen(PhysAddr(r.Addr), Size(r.Length()))
}

// Start returns the first address in the range.
func (r PhysRange) Start() PhysAddr { return r.start }

// End returns the address just past the range.
func (r PhysRange) End() PhysAddr { return r.end }

// Size returns the range length in bytes.
func (r PhysRange) Size() Size { return Size(r.end - r.start) }

// IsEmpty returns true if the range contains no addresses.
func (r PhysRange) IsEmpty() bool { return r.start == r.end }

// Contains returns true if pa lies inside the range.
func (r PhysRange) Contains(pa PhysAddr) bool {
	return pa >= r.start && pa < r.end
}

// OffsetAddr returns the address offset bytes past the range start if that
// address lies inside the range. The range end is never a valid result.
func (r PhysRange) OffsetAddr(offset Size) (PhysAddr, bool) {
	if offset >= r.Size() {
		return 0, false
	}
	return r.start + PhysAddr(offset), true
}

// StepByRounded returns a stepper over the step-aligned addresses needed to
// cover the range with step sized units. The range start is rounded down and
// its end rounded up to step before the walk begins, so the first and last
// emitted addresses need not match the range bounds. The step must be a power
// of two.
//
// Each call derives a fresh stepper from the range; the range itself is
// never modified.
func (r PhysRange) StepByRounded(step Size) PhysAddrStepper {
	start := r.start.RoundDown(step)
	end, ok := r.end.roundUpChecked(step)

	return PhysAddrStepper{
		next:    start,
		end:     end,
		step:    step,
		openEnd: !ok,
	}
}

// VisitRounded invokes visitor for each address emitted by StepByRounded(step)
// until the sequence is exhausted or the visitor returns false.
func (r PhysRange) VisitRounded(step Size, visitor PhysAddrVisitor) {
	stepper := r.StepByRounded(step)
	for addr, ok := stepper.Next(); ok; addr, ok = stepper.Next() {
		if !visitor(addr) {
			return
		}
	}
}

// VisitFrames invokes visitor for each physical frame that overlaps the range.
func (r PhysRange) VisitFrames(visitor FrameVisitor) {
	stepper := r.StepByRounded(PageSize)
	for addr, ok := stepper.Next(); ok; addr, ok = stepper.Next() {
		if !visitor(FrameFromAddress(addr)) {
			return
		}
	}
}

// Add returns the smallest range that covers both r and other. The inputs do
// not need to overlap or abut: disjoint ranges are bridged into a single span
// that includes the gap between them. Callers that must not merge disjoint
// ranges should check Overlaps first.
func (r PhysRange) Add(other PhysRange) PhysRange {
	return PhysRange{
		start: min(r.start, other.start),
		end:   max(r.end, other.end),
	}
}

// Overlaps returns true if r and other share at least one address.
func (r PhysRange) Overlaps(other PhysRange) bool {
	if r.IsEmpty() || other.IsEmpty() {
		return false
	}
	return r.start < other.end && other.start < r.end
}

// String implements fmt.Stringer for PhysRange.
func (r PhysRange) String() string {
	return rangeString(uint64(r.start), uint64(r.end))
}

func rangeString(start, end uint64) string {
	var buf [40]byte
	b := appendHex(buf[:0], start)
	b = append(b, '.', '.')
	return string(appendHex(b, end))
}
