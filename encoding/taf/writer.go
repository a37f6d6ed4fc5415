package taf

import (
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/taffy/align"
)

// WriterOpts configures a Writer.
type WriterOpts struct {
	// RunLengthEncodeBases toggles RLE base stacks.
	RunLengthEncodeBases bool
	// RepeatCoordinatesEveryNColumns re-emits a row's coordinates once the
	// row has gone more than this many bases without them, so that random seeks do
	// not have to scan far for a restart anchor.  Zero or negative disables
	// repetition.
	RepeatCoordinatesEveryNColumns int64
}

// Writer writes TAF blocks.  Each written block is encoded as a diff against
// the previously written one, so blocks must be written in stream order and
// their rows must be linked to the previous block's rows (the taf Reader
// links them; for other sources use align.Link).
type Writer struct {
	w    io.Writer
	opts WriterOpts
	prev *align.Block
	// basesSince tracks, per row of the previously written block, how many
	// bases ago the row's coordinates were last spelled out.
	basesSince map[*align.Row]int64
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer, opts WriterOpts) *Writer {
	return &Writer{w: w, opts: opts}
}

// WriteHeader writes the #taf header line.  The run_length_encode_bases tag
// is included iff RLE is enabled, regardless of its presence in tags.
func (w *Writer) WriteHeader(tags align.Tags) error {
	tags = tags.Remove(RunLengthEncodeBasesKey)
	if w.opts.RunLengthEncodeBases {
		tags = append(tags, align.Tag{Key: RunLengthEncodeBasesKey, Value: "1"})
	}
	_, err := io.WriteString(w.w, HeaderPrefix+tags.Format(":")+"\n")
	return err
}

// Write emits one block as a run of column lines, the first carrying the
// row-edit descriptor that transforms the previous block's row list into
// this one's.
func (w *Writer) Write(block *align.Block) error {
	if len(block.Rows) == 0 {
		return nil
	}
	var sb strings.Builder
	cols := block.Columns()
	for i := 0; i < cols; i++ {
		w.writeColumn(&sb, block, i)
		if i == 0 {
			if err := w.writeCoordinates(&sb, block); err != nil {
				return err
			}
		}
		if tags := block.Tags(i); len(tags) > 0 {
			sb.WriteString(" @")
			sb.WriteString(tags.Format(":"))
		}
		sb.WriteByte('\n')
	}
	w.prev = block
	_, err := io.WriteString(w.w, sb.String())
	return err
}

// writeColumn emits the base stack of one column, grouping runs of equal
// characters when RLE is enabled.
func (w *Writer) writeColumn(sb *strings.Builder, block *align.Block, col int) {
	flush := func(base byte, count int) {
		if count == 0 {
			return
		}
		if w.opts.RunLengthEncodeBases {
			fmt.Fprintf(sb, "%c %d ", base, count)
			return
		}
		for i := 0; i < count; i++ {
			sb.WriteByte(base)
		}
	}
	var base byte
	count := 0
	for _, row := range block.Rows {
		if row.Bases[col] == base && count > 0 {
			count++
			continue
		}
		flush(base, count)
		base = row.Bases[col]
		count = 1
	}
	flush(base, count)
}

// writeCoordinates emits the " ;" descriptor: d ops for unlinked previous
// rows, then per current row an i, s, g or G op as needed.  Whenever row 0
// is forced to restate its coordinates, every other row restates too, making
// the line a self-describing restart anchor; the index relies on this.
func (w *Writer) writeCoordinates(sb *strings.Builder, block *align.Block) error {
	sb.WriteString(" ;")
	if w.prev != nil {
		i := 0
		for _, p := range w.prev.Rows {
			if p.Succ == nil {
				fmt.Fprintf(sb, " d %d", i)
			} else {
				i++
			}
		}
	}

	basesSince := make(map[*align.Row]int64, len(block.Rows))
	reportEverything := false
	for i, row := range block.Rows {
		if row.Pred == nil { // inserted row
			writeOp(sb, 'i', i, row)
			basesSince[row] = 0
			if i == 0 {
				reportEverything = true
			}
			continue
		}
		if !row.Pred.Precedes(row) { // slot reused by another sequence
			if i == 0 {
				reportEverything = true
			}
			writeOp(sb, 's', i, row)
			basesSince[row] = 0
			continue
		}
		c := w.basesSince[row.Pred] + row.Pred.Length
		if reportEverything ||
			(w.opts.RepeatCoordinatesEveryNColumns > 0 && c > w.opts.RepeatCoordinatesEveryNColumns) {
			writeOp(sb, 's', i, row)
			basesSince[row] = 0
			if i == 0 {
				reportEverything = true
			}
			continue
		}
		basesSince[row] = c
		if gap := row.Start - row.Pred.End(); gap > 0 {
			if row.LeftGapSeq != nil {
				if int64(len(row.LeftGapSeq)) != gap {
					return errors.E("interstitial gap sequence length does not match gap:", row.Name)
				}
				fmt.Fprintf(sb, " G %d %s", i, row.LeftGapSeq)
			} else {
				fmt.Fprintf(sb, " g %d %d", i, gap)
			}
		}
	}
	w.basesSince = basesSince
	return nil
}

func writeOp(sb *strings.Builder, op byte, i int, row *align.Row) {
	strand := '-'
	if row.Strand {
		strand = '+'
	}
	fmt.Fprintf(sb, " %c %d %s %d %c %d", op, i, row.Name, row.Start, strand, row.SeqLength)
}
