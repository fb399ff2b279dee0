// Package cpu exposes the privileged CPU instructions used by the kernel
// core. The function bodies live in per-arch assembly files.
package cpu

// Halt stops instruction execution. Halt never returns.
func Halt()
