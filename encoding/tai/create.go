package tai

import (
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/taffy/encoding/maf"
	"github.com/grailbio/taffy/encoding/taf"
	"github.com/grailbio/taffy/lineio"
)

// Create scans the TAF or MAF stream behind li and writes its index to w.
// One entry is emitted for the first block of each contig and for each
// block at least blockSize reference bases past the previously emitted
// entry on the same contig.  Row 0 must lie on the + strand.
func Create(li *lineio.Reader, w io.Writer, blockSize int64) error {
	if !li.Indexable() {
		return lineio.ErrNotIndexable
	}
	header, err := li.Peek()
	if err != nil {
		return errors.E(err, "empty alignment file")
	}
	out := tsv.NewWriter(w)
	switch taf.SniffFormat(header) {
	case taf.FormatTAF:
		_, rle, err := taf.ReadHeader(li)
		if err != nil {
			return err
		}
		if err := createTAF(li, out, blockSize, rle); err != nil {
			return err
		}
	case taf.FormatMAF:
		if _, err := maf.ReadHeader(li); err != nil {
			return err
		}
		if err := createMAF(li, out, blockSize); err != nil {
			return err
		}
	default:
		return errors.E("cannot determine alignment format from header:", header)
	}
	return out.Flush()
}

// emitter writes index records, switching to "*" delta rows for repeated
// contigs.
type emitter struct {
	out               *tsv.Writer
	prevRef           string
	prevPos, prevFile int64
}

// emit decides whether (ref, pos) is far enough from the previous record to
// deserve an entry, and writes it if so.
func (e *emitter) emit(ref string, pos, filePos int64, blockSize int64) error {
	sameRef := e.prevRef != "" && ref == e.prevRef
	if sameRef && pos-e.prevPos < blockSize {
		return nil
	}
	if sameRef {
		// Relative coordinates save a little space.
		e.out.WriteString("*")
		e.out.WriteInt64(pos - e.prevPos)
		e.out.WriteInt64(filePos - e.prevFile)
	} else {
		e.out.WriteString(ref)
		e.out.WriteInt64(pos)
		e.out.WriteInt64(filePos)
	}
	if err := e.out.EndLine(); err != nil {
		return err
	}
	e.prevRef = ref
	e.prevPos = pos
	e.prevFile = filePos
	return nil
}

// createTAF scans the file line by line, emitting an entry for every
// sufficiently distant restart anchor line.
func createTAF(li *lineio.Reader, out *tsv.Writer, blockSize int64, rle bool) error {
	em := &emitter{out: out}
	for {
		off := li.Tell()
		line, err := li.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 || tokens[0][0] == '#' {
			continue
		}
		ref, pos, strand, ok, err := taf.ParseCoordinateLine(tokens, rle)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !strand {
			return errors.E("cannot index: reference (row 0) sequence found on negative strand:", ref)
		}
		if err := em.emit(ref, pos, off, blockSize); err != nil {
			return err
		}
	}
}

// createMAF scans block by block, recording the offset of each block's "a"
// line.
func createMAF(li *lineio.Reader, out *tsv.Writer, blockSize int64) error {
	em := &emitter{out: out}
	for {
		// Skim filler so the recorded offset is that of the a line itself:
		// the line the next Peek returns after a Seek.
		for {
			line, err := li.Peek()
			if err == io.EOF {
				return nil
			} else if err != nil {
				return err
			}
			tokens := strings.Fields(line)
			if len(tokens) > 0 && tokens[0] == "a" {
				break
			}
			if _, err := li.Next(); err != nil {
				return err
			}
		}
		off := li.Tell()
		block, err := maf.ReadBlock(li)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if len(block.Rows) == 0 {
			continue
		}
		row := block.Rows[0]
		if !row.Strand {
			return errors.E("cannot index: reference (row 0) sequence found on negative strand:", row.Name)
		}
		if err := em.emit(row.Name, row.Start, off, blockSize); err != nil {
			return err
		}
	}
}
