// Package taf reads and writes TAF, the column-oriented differential format
// for whole-genome multiple sequence alignments.  Each block is a run of
// text lines, one per alignment column; the first line carries a ";"
// descriptor listing the row edits (insert, substitute, delete, gap) that
// transform the previous block's row list into this block's, so row
// coordinates are only spelled out when they change.  Base stacks may be
// run-length encoded.  Column tags follow an "@" token.
package taf

import (
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/taffy/align"
	"github.com/grailbio/taffy/lineio"
)

const (
	// HeaderPrefix opens a TAF file.
	HeaderPrefix = "#taf"
	// RunLengthEncodeBasesKey is the header key toggling RLE base stacks.
	RunLengthEncodeBasesKey = "run_length_encode_bases"
)

// Format identifies the alignment format a header line announces.
type Format int

const (
	FormatUnknown Format = iota
	FormatTAF
	FormatMAF
)

// SniffFormat inspects a header line and reports whether it opens a TAF or
// MAF file.
func SniffFormat(headerLine string) Format {
	tokens := strings.Fields(headerLine)
	if len(tokens) == 0 {
		return FormatUnknown
	}
	switch tokens[0] {
	case HeaderPrefix:
		return FormatTAF
	case "##maf":
		return FormatMAF
	}
	return FormatUnknown
}

// ReadHeader consumes the #taf header line, returning its tags and whether
// run-length encoding of base stacks is enabled.
func ReadHeader(li *lineio.Reader) (align.Tags, bool, error) {
	line, err := li.Next()
	if err != nil {
		return nil, false, errors.E(err, "missing #taf header line")
	}
	tokens := strings.Fields(line)
	if len(tokens) == 0 || tokens[0] != HeaderPrefix {
		return nil, false, errors.E("header line does not start with #taf:", line)
	}
	tags, err := align.ParseTags(tokens[1:], ":")
	if err != nil {
		return nil, false, err
	}
	v, ok := tags.Find(RunLengthEncodeBasesKey)
	return tags, ok && v == "1", nil
}

// Reader reads TAF blocks.  The rows of each block are linked to the rows of
// the previously read block via their Pred/Succ references.
type Reader struct {
	li   *lineio.Reader
	rle  bool
	prev *align.Block
}

// NewReader returns a Reader over li.  rle is the run_length_encode_bases
// setting from the header (see ReadHeader).
func NewReader(li *lineio.Reader, rle bool) *Reader {
	return &Reader{li: li, rle: rle}
}

// Next returns the next block, or io.EOF.
func (r *Reader) Next() (*align.Block, error) {
	block, err := ReadBlock(r.prev, r.rle, r.li)
	if err != nil {
		return nil, err
	}
	r.prev = block
	return block, nil
}

// ReadBlock reads one block: a coordinate-bearing column line and all
// subsequent coordinate-less column lines.  prev is the previously read
// block, whose row list seeds this block's; nil means start of file.  It
// returns io.EOF at end of input.
func ReadBlock(prev *align.Block, rle bool, li *lineio.Reader) (*align.Block, error) {
	tokens, err := firstLine(li)
	if err != nil {
		return nil, err
	}
	block, err := establishRows(prev, tokens)
	if err != nil {
		return nil, err
	}

	var columns [][]byte
	var columnTags []align.Tags
	anyTags := false
	addColumn := func(tokens []string) error {
		column, err := parseBases(len(block.Rows), tokens, rle)
		if err != nil {
			return err
		}
		columns = append(columns, column)
		tags, err := columnTagsOf(tokens)
		if err != nil {
			return err
		}
		columnTags = append(columnTags, tags)
		anyTags = anyTags || tags != nil
		return nil
	}
	if err := addColumn(tokens); err != nil {
		return nil, err
	}
	for {
		line, err := li.Peek()
		if err != nil {
			break // end of file ends the block
		}
		tokens = strings.Fields(line)
		if len(tokens) == 0 || tokens[0][0] == '#' {
			// Skip whitespace-only and comment lines.
			if _, err := li.Next(); err != nil {
				return nil, err
			}
			continue
		}
		if _, ok := coordinatesAt(tokens); ok {
			// The next block starts here; leave the line buffered.
			break
		}
		if err := addColumn(tokens); err != nil {
			return nil, err
		}
		if _, err := li.Next(); err != nil {
			return nil, err
		}
	}

	// Assemble each row's bases by reading down the column stacks.
	for i, row := range block.Rows {
		bases := make([]byte, len(columns))
		var length int64
		for c, column := range columns {
			bases[c] = column[i]
			if column[i] != '-' {
				length++
			}
		}
		row.Bases = bases
		row.Length = length
	}
	if anyTags {
		block.ColumnTags = columnTags
	}
	return block, nil
}

// firstLine returns the tokens of the first non-blank, non-comment line.
func firstLine(li *lineio.Reader) ([]string, error) {
	for {
		line, err := li.Next()
		if err != nil {
			return nil, err
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 || tokens[0][0] == '#' {
			continue
		}
		return tokens, nil
	}
}

// coordinatesAt returns the position of the ";" token, if any.
func coordinatesAt(tokens []string) (int, bool) {
	for i, tok := range tokens {
		if tok == ";" {
			return i, true
		}
	}
	return 0, false
}

// establishRows clones prev's row list into a new block, then applies the
// row edits following the ";" token.  Cloned rows are linked to their
// originals; inserted and substituted rows carry no predecessor.
func establishRows(prev *align.Block, tokens []string) (*align.Block, error) {
	block := &align.Block{}
	if prev != nil {
		block.Rows = make([]*align.Row, 0, len(prev.Rows))
		for _, old := range prev.Rows {
			row := &align.Row{
				Name:      old.Name,
				Start:     old.End(),
				SeqLength: old.SeqLength,
				Strand:    old.Strand,
				Pred:      old,
			}
			old.Succ = row
			block.Rows = append(block.Rows, row)
		}
	}

	j, ok := coordinatesAt(tokens)
	if !ok {
		return nil, errors.E("block line carries no ; coordinate descriptor:", strings.Join(tokens, " "))
	}
	j++
	for j < len(tokens) && tokens[j] != "@" {
		op := tokens[j]
		if len(op) != 1 {
			return nil, errors.E("unknown row operation:", op)
		}
		j++
		if j >= len(tokens) {
			return nil, errors.E("row operation missing row index:", op)
		}
		idx, err := parseInt(tokens[j], "row index")
		if err != nil {
			return nil, err
		}
		j++
		switch op[0] {
		case 'i':
			if idx < 0 || int(idx) > len(block.Rows) {
				return nil, errors.E("insert index out of range:", tokens[j-1])
			}
			row := &align.Row{}
			if err := parseCoordinateFields(&j, tokens, row); err != nil {
				return nil, err
			}
			block.Rows = append(block.Rows, nil)
			copy(block.Rows[idx+1:], block.Rows[idx:])
			block.Rows[idx] = row
		case 's':
			row, err := rowAt(block, idx)
			if err != nil {
				return nil, err
			}
			// The outgoing row is terminated: the new occupant of the slot
			// has no predecessor.
			if row.Pred != nil {
				row.Pred.Succ = nil
				row.Pred = nil
			}
			if err := parseCoordinateFields(&j, tokens, row); err != nil {
				return nil, err
			}
		case 'd':
			row, err := rowAt(block, idx)
			if err != nil {
				return nil, err
			}
			if row.Pred != nil {
				row.Pred.Succ = nil
				row.Pred = nil
			}
			block.Rows = append(block.Rows[:idx], block.Rows[idx+1:]...)
		case 'g':
			row, err := rowAt(block, idx)
			if err != nil {
				return nil, err
			}
			if j >= len(tokens) {
				return nil, errors.E("g operation missing gap length")
			}
			gap, err := parseInt(tokens[j], "gap length")
			if err != nil {
				return nil, err
			}
			j++
			row.Start += gap
		case 'G':
			row, err := rowAt(block, idx)
			if err != nil {
				return nil, err
			}
			if j >= len(tokens) {
				return nil, errors.E("G operation missing gap bases")
			}
			row.LeftGapSeq = []byte(tokens[j])
			row.Start += int64(len(tokens[j]))
			j++
		default:
			return nil, errors.E("unknown row operation:", op)
		}
	}
	return block, nil
}

func rowAt(block *align.Block, idx int64) (*align.Row, error) {
	if idx < 0 || int(idx) >= len(block.Rows) {
		return nil, errors.E("row index out of range:", strconv.FormatInt(idx, 10))
	}
	return block.Rows[idx], nil
}

// parseCoordinateFields parses the name, start, strand and sequence length
// fields that follow an i or s operation, advancing *j past them.
func parseCoordinateFields(j *int, tokens []string, row *align.Row) error {
	if *j+4 > len(tokens) {
		return errors.E("row coordinates truncated")
	}
	row.Name = tokens[*j]
	start, err := parseInt(tokens[*j+1], "start")
	if err != nil {
		return err
	}
	strand := tokens[*j+2]
	if strand != "+" && strand != "-" {
		return errors.E("malformed strand:", strand)
	}
	seqLength, err := parseInt(tokens[*j+3], "sequence length")
	if err != nil {
		return err
	}
	row.Start = start
	row.Strand = strand == "+"
	row.SeqLength = seqLength
	*j += 4
	return nil
}

// parseBases decodes a column's base stack into exactly rowNumber
// characters.
func parseBases(rowNumber int, tokens []string, rle bool) ([]byte, error) {
	if !rle {
		if len(tokens) == 0 || len(tokens[0]) != rowNumber {
			return nil, errors.E("base stack length does not match row number:", strings.Join(tokens, " "))
		}
		return []byte(tokens[0]), nil
	}
	column := make([]byte, 0, rowNumber)
	i := 0
	for len(column) < rowNumber {
		if i+2 > len(tokens) {
			return nil, errors.E("run-length encoded base stack truncated")
		}
		if len(tokens[i]) != 1 {
			return nil, errors.E("run-length encoded base is not a single character:", tokens[i])
		}
		base := tokens[i][0]
		count, err := parseInt(tokens[i+1], "base run length")
		if err != nil {
			return nil, err
		}
		if count <= 0 || len(column)+int(count) > rowNumber {
			return nil, errors.E("run-length encoded base stack does not match row number")
		}
		for ; count > 0; count-- {
			column = append(column, base)
		}
		i += 2
	}
	return column, nil
}

// columnTagsOf parses any " @ key:value ..." tags on a column line.
func columnTagsOf(tokens []string) (align.Tags, error) {
	for i, tok := range tokens {
		if tok == "@" {
			return align.ParseTags(tokens[i+1:], ":")
		}
	}
	return nil, nil
}

func parseInt(s, what string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.E(err, "malformed", what, "field:", s)
	}
	return v, nil
}
