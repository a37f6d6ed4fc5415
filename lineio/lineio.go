// Package lineio provides a buffered, single-line-lookahead reader over a
// byte stream that may be plain text, BGZF compressed, or gzip compressed.
// The reader reports the offset at which the buffered line begins and can
// reposition to any previously reported offset, provided the stream supports
// it.  For BGZF inputs, offsets are virtual offsets: the compressed offset
// of the containing block in the upper 48 bits and the offset within the
// uncompressed block in the lower 16 bits, the same packing .bam indexes
// use.  Gzip (non-BGZF) inputs can be read but not repositioned.
package lineio

import (
	"bufio"
	"io"

	"github.com/biogo/hts/bgzf"
	"github.com/grailbio/base/errors"
	"github.com/klauspost/compress/gzip"
)

// ErrNotIndexable is returned by Seek when the underlying stream does not
// support repositioning, either because it is gzip (not BGZF) compressed or
// because it is not seekable.
var ErrNotIndexable = errors.New("lineio: stream does not support seeking")

const sniffLen = 18 // gzip header plus the BC extra subfield magic

// PackOffset packs a BGZF virtual offset into a single int64.
func PackOffset(off bgzf.Offset) int64 {
	return off.File<<16 | int64(off.Block)
}

// UnpackOffset splits an int64 produced by PackOffset.
func UnpackOffset(v int64) bgzf.Offset {
	return bgzf.Offset{File: v >> 16, Block: uint16(v & 0xffff)}
}

// lineSource reads one physical line at a time, reporting the offset of the
// first byte of each line.
type lineSource interface {
	readLine() (line []byte, off int64, err error)
	seek(off int64) error
	indexable() bool
}

// plainSource serves uncompressed streams and the decompressed side of a
// gzip stream.  Offsets are plain byte offsets into the stream handed to it.
type plainSource struct {
	br  *bufio.Reader
	rs  io.ReadSeeker // nil if the stream cannot seek
	pos int64
}

func (s *plainSource) readLine() ([]byte, int64, error) {
	off := s.pos
	data, err := s.br.ReadBytes('\n')
	if len(data) == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, 0, err
	}
	s.pos += int64(len(data))
	if data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	return data, off, nil
}

func (s *plainSource) seek(off int64) error {
	if s.rs == nil {
		return ErrNotIndexable
	}
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return err
	}
	s.br.Reset(s.rs)
	s.pos = off
	return nil
}

func (s *plainSource) indexable() bool { return s.rs != nil }

// bgzfSource serves BGZF streams.  Lines are assembled byte by byte so that
// the virtual offset of a line's first byte is exact even when the line
// straddles a BGZF block boundary.
type bgzfSource struct {
	r        *bgzf.Reader
	seekable bool
}

func (s *bgzfSource) readLine() ([]byte, int64, error) {
	var (
		line  []byte
		off   int64
		first = true
		b     [1]byte
	)
	for {
		n, err := s.r.Read(b[:])
		if n > 0 {
			if first {
				off = PackOffset(s.r.LastChunk().Begin)
				first = false
			}
			if b[0] == '\n' {
				return line, off, nil
			}
			line = append(line, b[0])
		}
		if err != nil {
			if err == io.EOF {
				if !first {
					return line, off, nil
				}
				return nil, 0, io.EOF
			}
			return nil, 0, err
		}
	}
}

func (s *bgzfSource) seek(off int64) error {
	if !s.seekable {
		return ErrNotIndexable
	}
	return s.r.Seek(UnpackOffset(off))
}

func (s *bgzfSource) indexable() bool { return s.seekable }

// Reader iterates over the lines of a stream with one line of lookahead.
type Reader struct {
	src     lineSource
	line    []byte
	off     int64
	err     error
	hasLine bool
}

// NewReader sniffs the compression of r and returns a line reader over its
// decompressed content.  If r is an io.ReadSeeker positioned at the start of
// the stream, the returned reader supports Seek for plain and BGZF inputs.
func NewReader(r io.Reader) (*Reader, error) {
	rs, _ := r.(io.ReadSeeker)
	br := bufio.NewReader(r)
	hdr, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF {
		return nil, err
	}
	var src lineSource
	switch {
	case isBGZF(hdr):
		if rs != nil {
			// Hand the raw seekable stream to the BGZF reader so that
			// virtual-offset seeks work.
			if _, err := rs.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
			bg, err := bgzf.NewReader(rs, 1)
			if err != nil {
				return nil, err
			}
			src = &bgzfSource{r: bg, seekable: true}
		} else {
			bg, err := bgzf.NewReader(br, 1)
			if err != nil {
				return nil, err
			}
			src = &bgzfSource{r: bg}
		}
	case isGzip(hdr):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		src = &plainSource{br: bufio.NewReader(zr)}
	default:
		src = &plainSource{br: br, rs: rs}
	}
	lr := &Reader{src: src}
	lr.fill()
	return lr, nil
}

func isGzip(hdr []byte) bool {
	return len(hdr) >= 2 && hdr[0] == 0x1f && hdr[1] == 0x8b
}

// isBGZF reports whether hdr opens a gzip member carrying the BGZF "BC"
// extra subfield.
func isBGZF(hdr []byte) bool {
	return len(hdr) >= sniffLen && isGzip(hdr) && hdr[3]&0x04 != 0 &&
		hdr[12] == 'B' && hdr[13] == 'C'
}

func (r *Reader) fill() {
	line, off, err := r.src.readLine()
	if err != nil {
		r.hasLine = false
		r.err = err
		return
	}
	r.line = line
	r.off = off
	r.hasLine = true
	r.err = nil
}

// Peek returns the buffered line without consuming it.  At end of stream it
// returns io.EOF.
func (r *Reader) Peek() (string, error) {
	if !r.hasLine {
		return "", r.err
	}
	return string(r.line), nil
}

// Next consumes and returns the buffered line, then buffers the following
// physical line.  At end of stream it returns io.EOF.
func (r *Reader) Next() (string, error) {
	if !r.hasLine {
		return "", r.err
	}
	line := string(r.line)
	r.fill()
	return line, nil
}

// Tell returns the offset at which the currently buffered line begins, i.e.
// the offset of the line the next Peek or Next returns.
func (r *Reader) Tell() int64 { return r.off }

// Indexable reports whether Seek is supported.
func (r *Reader) Indexable() bool { return r.src.indexable() }

// Seek repositions the reader so that the next Peek returns the line
// beginning at off.  off must be a value previously obtained from Tell on
// the same stream.
func (r *Reader) Seek(off int64) error {
	if err := r.src.seek(off); err != nil {
		return err
	}
	r.fill()
	return nil
}

// SetPeek replaces the content of the buffered line without moving the
// stream.  The index range iterator uses this to rewrite an anchor line in
// place before handing the stream to a block reader.
func (r *Reader) SetPeek(line string) {
	if r.hasLine {
		r.line = []byte(line)
	}
}
