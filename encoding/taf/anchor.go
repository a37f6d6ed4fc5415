package taf

import (
	"strings"

	"github.com/grailbio/base/errors"
)

// Anchor lines are column lines whose ";" descriptor spells out coordinates
// for every row, so a reader can start cold at that line.  The index writer
// detects them and the range iterator rewrites them; both live here because
// they need the token-level layout of the descriptor.

// ParseCoordinateLine inspects a tokenized column line and, if the line is a
// restart anchor, returns the reference (row 0) contig, start and strand.
// ok is false for coordinate-less lines and for lines that only refresh some
// rows.
func ParseCoordinateLine(tokens []string, rle bool) (name string, start int64, strand bool, ok bool, err error) {
	j, has := coordinatesAt(tokens)
	if !has {
		return "", 0, false, false, nil
	}

	// The number of rows is the height of the base stack.
	numBases := 0
	if rle {
		for i := 0; i < j; i++ {
			if tokens[i][0] >= '0' && tokens[i][0] <= '9' {
				n, err := parseInt(tokens[i], "base run length")
				if err != nil {
					return "", 0, false, false, err
				}
				numBases += int(n)
			}
		}
	} else {
		numBases = len(tokens[0])
	}

	numCoordinates := 0
	j++
	for j < len(tokens) && tokens[j] != "@" {
		op := tokens[j]
		if len(op) != 1 {
			return "", 0, false, false, errors.E("unknown row operation:", op)
		}
		j++
		if j >= len(tokens) {
			return "", 0, false, false, errors.E("row operation missing row index:", op)
		}
		idx, err := parseInt(tokens[j], "row index")
		if err != nil {
			return "", 0, false, false, err
		}
		j++
		switch op[0] {
		case 'i', 's':
			numCoordinates++
			var row rowCoords
			if err := parseCoords(&j, tokens, &row); err != nil {
				return "", 0, false, false, err
			}
			if idx == 0 {
				name = row.name
				start = row.start
				strand = row.strand
			}
		case 'd':
		case 'g', 'G':
			j++
		default:
			return "", 0, false, false, errors.E("unknown row operation:", op)
		}
	}
	if numCoordinates != numBases || name == "" {
		return "", 0, false, false, nil
	}
	return name, start, strand, true, nil
}

type rowCoords struct {
	name   string
	start  int64
	strand bool
}

func parseCoords(j *int, tokens []string, c *rowCoords) error {
	if *j+4 > len(tokens) {
		return errors.E("row coordinates truncated")
	}
	c.name = tokens[*j]
	start, err := parseInt(tokens[*j+1], "start")
	if err != nil {
		return err
	}
	if tokens[*j+2] != "+" && tokens[*j+2] != "-" {
		return errors.E("malformed strand:", tokens[*j+2])
	}
	c.start = start
	c.strand = tokens[*j+2] == "+"
	if _, err := parseInt(tokens[*j+3], "sequence length"); err != nil {
		return err
	}
	*j += 4
	return nil
}

// RewriteAnchor rewrites an anchor line so that it parses with no previous
// block: every s operation becomes an i, and d/g/G operations, which only
// make sense relative to the previous row list, are dropped.  The index
// range iterator applies this to the line it seeks to before handing the
// stream to a Reader.
func RewriteAnchor(line string) (string, error) {
	tokens := strings.Fields(line)
	j, has := coordinatesAt(tokens)
	if !has {
		return "", errors.E("cannot restart at line without coordinates:", line)
	}
	keep := make([]bool, len(tokens))
	for i := range keep {
		keep[i] = true
	}
	j++
	for j < len(tokens) && tokens[j] != "@" {
		op := tokens[j]
		if len(op) != 1 {
			return "", errors.E("unknown row operation:", op)
		}
		opAt := j
		j += 2 // the operation and its row index
		if j > len(tokens) {
			return "", errors.E("row operation missing row index:", op)
		}
		switch op[0] {
		case 'i', 's':
			tokens[opAt] = "i"
			var c rowCoords
			if err := parseCoords(&j, tokens, &c); err != nil {
				return "", err
			}
		case 'd':
			keep[opAt] = false
			keep[opAt+1] = false
		case 'g', 'G':
			if j >= len(tokens) {
				return "", errors.E("gap operation truncated")
			}
			keep[opAt] = false
			keep[opAt+1] = false
			keep[opAt+2] = false
			j++
		default:
			return "", errors.E("unknown row operation:", op)
		}
	}
	kept := tokens[:0:0]
	for i, tok := range tokens {
		if keep[i] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " "), nil
}
