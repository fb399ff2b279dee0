package kfmt

import "io"

// maxModuleLen is the longest module tag a PrefixWriter keeps. Longer names
// are truncated.
const maxModuleLen = 12

// PrefixWriter tags every line sent to Sink with "[module] ", the convention
// kernel subsystems follow when reporting to the console. The tag is stored
// inline so a PrefixWriter can be built on the stack before the allocator is
// available.
type PrefixWriter struct {
	Sink io.Writer

	prefix    [maxModuleLen + 3]byte
	prefixLen int

	// midLine is set when the last byte passed to Sink was not a line feed.
	midLine bool
}

// NewPrefixWriter returns a PrefixWriter that tags the lines it forwards to
// sink with the given module name.
func NewPrefixWriter(sink io.Writer, module string) PrefixWriter {
	w := PrefixWriter{Sink: sink}

	w.prefix[0] = '['
	n := copy(w.prefix[1:1+maxModuleLen], module)
	w.prefix[n+1] = ']'
	w.prefix[n+2] = ' '
	w.prefixLen = n + 3

	return w
}

// Prefix returns the tag injected at the start of each line.
func (w *PrefixWriter) Prefix() []byte {
	return w.prefix[:w.prefixLen]
}

// Printf formats its arguments like Fprintf and writes the result to w.
func (w *PrefixWriter) Printf(format string, args ...interface{}) {
	Fprintf(w, format, args...)
}

// Write implements io.Writer. Input is forwarded one line at a time and the
// tag is emitted right before the first byte of each line, so a line may be
// assembled over several calls and a trailing line feed never leaves a
// dangling tag. The returned count excludes the injected tags.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix()); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if eol := indexLineFeed(p); eol >= 0 {
			line = p[:eol+1]
		}

		n, err := w.Sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}

		w.midLine = line[len(line)-1] != '\n'
		p = p[len(line):]
	}

	return written, nil
}

func indexLineFeed(p []byte) int {
	for i, b := range p {
		if b == '\n' {
			return i
		}
	}
	return -1
}
