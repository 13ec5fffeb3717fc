package vm

import (
	"bufio"
	"io"
)

// StdioHost is the Host every CLI driver wires up: get-char/put-char read
// and write raw bytes against the process's own stdin/stdout, buffered the
// way the teacher's backend_vm.go wraps os.Stdout for its emulated write
// syscall.
type StdioHost struct {
	in  *bufio.Reader
	out *bufio.Writer
}

// NewStdioHost wraps r/w (typically os.Stdin/os.Stdout) for use as a Host.
// Callers must Flush the returned host (or close over os.Stdout themselves)
// after the interpreter halts, since output is buffered.
func NewStdioHost(r io.Reader, w io.Writer) *StdioHost {
	return &StdioHost{in: bufio.NewReader(r), out: bufio.NewWriter(w)}
}

func (h *StdioHost) ReadChar() (int32, error) {
	b, err := h.in.ReadByte()
	if err != nil {
		return -1, nil
	}
	return int32(b), nil
}

func (h *StdioHost) WriteChar(c byte) {
	h.out.WriteByte(c)
}

func (h *StdioHost) WriteString(s string) {
	h.out.WriteString(s)
}

// Flush writes any buffered output out to the underlying writer.
func (h *StdioHost) Flush() {
	h.out.Flush()
}
