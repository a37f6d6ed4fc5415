// Package maf reads and writes MAF, the legacy row-oriented block format
// for whole-genome multiple sequence alignments.  See
// https://genome.ucsc.edu/FAQ/FAQformat.html#format5.
//
// The significant lines are the "##maf" header, "a" lines opening a block,
// "s" lines carrying one aligned row each, optional "q" base-quality lines,
// and a blank line terminating each block.  "i" and "e" lines are ignored.
package maf

import (
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/taffy/align"
	"github.com/grailbio/taffy/lineio"
)

// noQualityChar is the ascii-shifted phred value written into a transposed
// quality column for rows that carry no q line.
const noQualityChar = '~'

// ReadHeader consumes the ##maf header line and returns its key=value tags.
func ReadHeader(li *lineio.Reader) (align.Tags, error) {
	line, err := li.Next()
	if err != nil {
		return nil, errors.E(err, "missing ##maf header line")
	}
	tokens := strings.Fields(line)
	if len(tokens) == 0 || tokens[0] != "##maf" {
		return nil, errors.E("header line does not start with ##maf:", line)
	}
	return align.ParseTags(tokens[1:], "=")
}

// WriteHeader writes the ##maf header line followed by a blank line.
func WriteHeader(tags align.Tags, w io.Writer) error {
	_, err := io.WriteString(w, "##maf"+tags.Format("=")+"\n\n")
	return err
}

// Reader reads MAF blocks from a line source.  The returned blocks are not
// linked to each other; callers that need cross-block row links apply
// align.Link.
type Reader struct {
	li *lineio.Reader
}

// NewReader returns a Reader over li.  The header, if any, must already have
// been consumed with ReadHeader.
func NewReader(li *lineio.Reader) *Reader { return &Reader{li: li} }

// Next returns the next block, or io.EOF.  A block cut short by end of file
// after at least one s line is returned as-is; end of file before any s line
// is io.EOF.
func (r *Reader) Next() (*align.Block, error) { return ReadBlock(r.li) }

// ReadBlock reads the next MAF block from li.  It returns io.EOF at end of
// input.
func ReadBlock(li *lineio.Reader) (*align.Block, error) {
	for {
		line, err := li.Next()
		if err != nil {
			return nil, err
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		if tokens[0] != "a" {
			// An s line with no prior a line would be malformed; everything
			// else outside a block is ignorable.
			if tokens[0] == "s" {
				return nil, errors.E("s line without a preceding a line:", line)
			}
			continue
		}
		return readBlockBody(li)
	}
}

func readBlockBody(li *lineio.Reader) (*align.Block, error) {
	block := &align.Block{}
	var (
		qualities   [][]byte // one entry per q line, in row order
		qualityRows []int    // row index each q line belongs to
	)
	finish := func() (*align.Block, error) {
		if qualities != nil {
			if err := transposeQualities(block, qualities, qualityRows); err != nil {
				return nil, err
			}
		}
		return block, nil
	}
	for {
		line, err := li.Next()
		if err != nil {
			// End of file mid-block: return what we have, unless no s line
			// was consumed at all.
			if len(block.Rows) == 0 {
				return nil, err
			}
			return finish()
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 { // blank line ends the block
			return finish()
		}
		switch tokens[0] {
		case "s":
			row, err := parseRow(tokens, line)
			if err != nil {
				return nil, err
			}
			if len(block.Rows) > 0 && len(row.Bases) != block.Columns() {
				return nil, errors.E("row width does not match block:", line)
			}
			block.Rows = append(block.Rows, row)
		case align.QualityTagKey:
			if len(tokens) != 3 {
				return nil, errors.E("malformed q line:", line)
			}
			if len(block.Rows) == 0 || tokens[1] != block.Rows[len(block.Rows)-1].Name {
				return nil, errors.E("q line sequence name does not match previous s line:", line)
			}
			qualities = append(qualities, []byte(tokens[2]))
			qualityRows = append(qualityRows, len(block.Rows)-1)
		case "i", "e":
			// Ignored.
		default:
			return nil, errors.E("unrecognized line in block:", line)
		}
	}
}

func parseRow(tokens []string, line string) (*align.Row, error) {
	if len(tokens) != 7 {
		return nil, errors.E("s line does not have seven fields:", line)
	}
	start, err := strconv.ParseInt(tokens[2], 10, 64)
	if err != nil {
		return nil, errors.E(err, "malformed start in s line:", line)
	}
	length, err := strconv.ParseInt(tokens[3], 10, 64)
	if err != nil {
		return nil, errors.E(err, "malformed length in s line:", line)
	}
	if tokens[4] != "+" && tokens[4] != "-" {
		return nil, errors.E("malformed strand in s line:", line)
	}
	seqLength, err := strconv.ParseInt(tokens[5], 10, 64)
	if err != nil {
		return nil, errors.E(err, "malformed sequence length in s line:", line)
	}
	return &align.Row{
		Name:      tokens[1],
		Start:     start,
		Length:    length,
		SeqLength: seqLength,
		Strand:    tokens[4] == "+",
		Bases:     []byte(tokens[6]),
	}, nil
}

// transposeQualities turns the per-row MAF quality strings into one q tag
// per column.  MAF qualities are single digits 0-9; any other character is
// clamped into that range (so F reads as 9 and - as 0).  The tag values
// carry ascii-shifted phred characters, one per row, with '~' marking rows
// that had no q line.
func transposeQualities(block *align.Block, qualities [][]byte, qualityRows []int) error {
	cols := block.Columns()
	for _, q := range qualities {
		if len(q) != cols {
			return errors.E("q line width does not match block")
		}
	}
	block.ColumnTags = make([]align.Tags, cols)
	for i := 0; i < cols; i++ {
		column := make([]byte, len(block.Rows))
		qi := 0
		for j := range block.Rows {
			c := byte(noQualityChar)
			if qi < len(qualityRows) && qualityRows[qi] == j {
				q := qualities[qi][i]
				if q < '0' {
					q = '0'
				} else if q > '9' {
					q = '9'
				}
				c = '!' + 5*(q-'0')
				qi++
			}
			column[j] = c
		}
		block.ColumnTags[i] = align.Tags{{Key: align.QualityTagKey, Value: string(column)}}
	}
	return nil
}

// Writer writes MAF blocks.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer emitting to w.  The caller writes the header
// with WriteHeader first.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Write emits one block: an a line, one s line per row in order, q lines if
// the block's columns carry quality tags, and a terminating blank line.
func (w *Writer) Write(block *align.Block) error {
	var sb strings.Builder
	sb.WriteString("a\n")

	// Column 0 decides whether the block carries base qualities; a block
	// with qualities must carry them in every column.
	var columnQualities []string
	if block.Columns() > 0 {
		if _, ok := block.Tags(0).Find(align.QualityTagKey); ok {
			columnQualities = make([]string, block.Columns())
			for i := range columnQualities {
				v, ok := block.Tags(i).Find(align.QualityTagKey)
				if !ok {
					return errors.E("missing base quality at column in block with base qualities")
				}
				columnQualities[i] = v
			}
		}
	}

	for rowIdx, row := range block.Rows {
		strand := "-"
		if row.Strand {
			strand = "+"
		}
		sb.WriteString("s ")
		sb.WriteString(row.Name)
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(row.Start, 10))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(row.Length, 10))
		sb.WriteByte(' ')
		sb.WriteString(strand)
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(row.SeqLength, 10))
		sb.WriteByte(' ')
		sb.Write(row.Bases)
		sb.WriteByte('\n')

		if columnQualities != nil && row.Length > 0 {
			sb.WriteString("q ")
			sb.WriteString(row.Name)
			sb.WriteByte(' ')
			for col, b := range row.Bases {
				if b == '-' {
					sb.WriteByte('-')
					continue
				}
				// Invert the ascii-shifted phred into the single-digit MAF
				// quality: min(floor(q/5), 9), or F for phred 99 and above.
				q := columnQualities[col][rowIdx] - '!'
				switch {
				case q >= 99:
					sb.WriteByte('F')
				case q >= 45:
					sb.WriteByte('9')
				default:
					sb.WriteByte('0' + q/5)
				}
			}
			sb.WriteByte('\n')
		}
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w.w, sb.String())
	return err
}
