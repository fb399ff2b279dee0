package mm

import "math"

// PhysAddrVisitor is invoked by the range walking helpers for each visited
// address. The visitor must return true to continue or false to abort.
type PhysAddrVisitor func(PhysAddr) bool

// PhysAddrStepsBetween returns the number of bytes between start and end. If
// start > end or the distance does not fit in a uint the step count is
// unknown and ok is false.
func PhysAddrStepsBetween(start, end PhysAddr) (steps uint, ok bool) {
	if start > end {
		return 0, false
	}

	diff := uint64(end - start)
	if diff > uint64(math.MaxUint) {
		return 0, false
	}
	return uint(diff), true
}

// ForwardChecked returns the address count bytes after pa. It returns false
// instead of wrapping if the result is not representable.
func (pa PhysAddr) ForwardChecked(count uint64) (PhysAddr, bool) {
	next := pa + PhysAddr(count)
	if next < pa {
		return 0, false
	}
	return next, true
}

// BackwardChecked returns the address count bytes before pa. It returns false
// instead of wrapping if the result would be below zero.
func (pa PhysAddr) BackwardChecked(count uint64) (PhysAddr, bool) {
	if PhysAddr(count) > pa {
		return 0, false
	}
	return pa - PhysAddr(count), true
}

// PhysAddrStepper lazily emits a sequence of step-aligned physical addresses.
// Steppers are obtained from PhysRange.StepByRounded and hold no reference to
// the range they were derived from; walking the same range again requires a
// new call to StepByRounded.
type PhysAddrStepper struct {
	next PhysAddr
	end  PhysAddr
	step Size

	// openEnd is set when the rounded end lies past the last representable
	// address. The walk then stops when the next step would overflow.
	openEnd bool
	done    bool
}

// Next returns the next address in the sequence. Once the sequence is
// exhausted Next returns false.
func (s *PhysAddrStepper) Next() (PhysAddr, bool) {
	if s.done || (!s.openEnd && s.next >= s.end) {
		s.done = true
		return 0, false
	}

	addr := s.next
	if next, ok := addr.ForwardChecked(uint64(s.step)); ok {
		s.next = next
	} else {
		s.done = true
	}
	return addr, true
}

// SizeHint returns the bounds on the number of addresses left in the
// sequence. When the count fits in a uint lower and upper are both exact;
// otherwise lower is math.MaxUint and ok is false.
func (s *PhysAddrStepper) SizeHint() (lower, upper uint, ok bool) {
	n, exact := s.remaining()
	if !exact || n > uint64(math.MaxUint) {
		return math.MaxUint, 0, false
	}
	return uint(n), uint(n), true
}

func (s *PhysAddrStepper) remaining() (uint64, bool) {
	switch {
	case s.done:
		return 0, true
	case s.openEnd:
		steps := (math.MaxUint64 - uint64(s.next)) / uint64(s.step)
		if steps == math.MaxUint64 {
			return 0, false
		}
		return steps + 1, true
	case s.next >= s.end:
		return 0, true
	}

	span := uint64(s.end - s.next)
	n := span / uint64(s.step)
	if span%uint64(s.step) != 0 {
		n++
	}
	return n, true
}
