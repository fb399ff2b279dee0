//go:build !kdebug

package kernel

// DebugBuild is set when the kernel is compiled with the kdebug build tag. It
// enables invariant checks that are too expensive for release builds, such as
// bounds checks on address arithmetic and virtual to physical translations.
const DebugBuild = false
