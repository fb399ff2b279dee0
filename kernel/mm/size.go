package mm

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// Translation granule sizes. Ranges are usually walked in one of these
// increments when building page tables.
const (
	PageSize4K = 4 * Kb
	PageSize2M = 2 * Mb
	PageSize1G = 1 * Gb
)

// isPowerOfTwo returns true if s is a non-zero power of two.
func isPowerOfTwo(s Size) bool {
	return s != 0 && s&(s-1) == 0
}
