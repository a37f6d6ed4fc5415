package lineio

import (
	"bufio"
	"io"

	"github.com/biogo/hts/bgzf"
)

// Writer writes text lines to a stream, optionally BGZF compressing them.
type Writer struct {
	w   io.Writer
	buf *bufio.Writer
	bg  *bgzf.Writer
}

// NewWriter returns a Writer emitting plain text to w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	return &Writer{w: buf, buf: buf}
}

// NewBGZFWriter returns a Writer emitting BGZF-compressed text to w.  wc
// sets the compression concurrency, as in bgzf.NewWriter.
func NewBGZFWriter(w io.Writer, wc int) *Writer {
	bg := bgzf.NewWriter(w, wc)
	return &Writer{w: bg, bg: bg}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) { return w.w.Write(p) }

// WriteString writes s.
func (w *Writer) WriteString(s string) (int, error) { return io.WriteString(w.w, s) }

// Flush flushes buffered data to the underlying stream.
func (w *Writer) Flush() error {
	if w.buf != nil {
		return w.buf.Flush()
	}
	return w.bg.Flush()
}

// Close flushes the writer and, for BGZF output, appends the BGZF
// terminator block.  It does not close the underlying stream.
func (w *Writer) Close() error {
	if w.buf != nil {
		return w.buf.Flush()
	}
	return w.bg.Close()
}
