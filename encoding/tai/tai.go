// Package tai creates and queries .tai indexes over TAF and MAF files.  A
// .tai is a sparse ordered table of (contig, reference position, file
// offset) rows sampled from the blocks of the indexed file; the offsets
// point at restart anchor lines (TAF) or a lines (MAF), so a reader seeked
// to one can parse forward with no other context.  File offsets are plain
// byte offsets for uncompressed inputs and BGZF virtual offsets for
// bgzipped inputs.
//
// The index is modeled on samtools faidx: one tab-separated record per
// line, with records on the same contig after the first written as "*"
// rows holding deltas.
package tai

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/taffy/encoding/taf"
	"github.com/grailbio/taffy/lineio"
)

// DefaultBlockSize is the default spacing, in reference bases, between
// index entries on one contig.
const DefaultBlockSize = 10000

// ErrNotFound is returned by NewIterator when the queried region precedes
// every index entry for its contig, names a contig absent from the index,
// or scans to the next index bucket without an intersecting block.
var ErrNotFound = errors.New("tai: region not found in index")

// Path returns the conventional index path for a TAF or MAF file.
func Path(path string) string { return path + ".tai" }

// entry is one loaded index record.  Entries order by (name, seqPos).
type entry struct {
	name    string
	seqPos  int64
	filePos int64
}

func (e *entry) Compare(c llrb.Comparable) int {
	o := c.(*entry)
	if e.name != o.name {
		if e.name < o.name {
			return -1
		}
		return 1
	}
	switch {
	case e.seqPos < o.seqPos:
		return -1
	case e.seqPos > o.seqPos:
		return 1
	}
	return 0
}

// Index is a loaded .tai.
type Index struct {
	tree llrb.Tree
	// names keeps one instance of each distinct contig name, in order of
	// first appearance.
	names []string
	maf   bool
}

// MAF reports whether the indexed file is MAF rather than TAF.
func (idx *Index) MAF() bool { return idx.maf }

// Contigs returns the distinct contig names in the index, in file order.
func (idx *Index) Contigs() []string { return idx.names }

// Load parses a .tai from r.  maf indicates the format of the indexed file
// (see taf.SniffFormat).  Records that do not have exactly three fields are
// skipped with a warning.
func Load(r io.Reader, maf bool) (*Index, error) {
	idx := &Index{maf: maf}
	scanner := bufio.NewScanner(r)
	var prev *entry
	seen := make(map[string]bool)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			log.Error.Printf("skipping tai line that does not have 3 columns: %s", line)
			continue
		}
		seqPos, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.E(err, "malformed tai line:", line)
		}
		filePos, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, errors.E(err, "malformed tai line:", line)
		}
		e := &entry{seqPos: seqPos, filePos: filePos}
		if fields[0] == "*" {
			if prev == nil {
				return nil, errors.E("unable to deduce name from tai line:", line)
			}
			e.name = prev.name
			e.seqPos += prev.seqPos
			e.filePos += prev.filePos
		} else {
			e.name = fields[0]
			if !seen[e.name] {
				seen[e.name] = true
				idx.names = append(idx.names, e.name)
			}
		}
		idx.tree.Insert(e)
		prev = e
	}
	return idx, scanner.Err()
}

// floor returns the greatest entry with key <= (name, pos), or nil.
func (idx *Index) floor(name string, pos int64) *entry {
	c := idx.tree.Floor(&entry{name: name, seqPos: pos})
	if c == nil {
		return nil
	}
	return c.(*entry)
}

// ceil returns the least entry with key >= (name, pos), or nil.
func (idx *Index) ceil(name string, pos int64) *entry {
	c := idx.tree.Ceil(&entry{name: name, seqPos: pos})
	if c == nil {
		return nil
	}
	return c.(*entry)
}

// ParseRegion parses a samtools-style region string into a contig, 0-based
// start, and length:
//
//	chr1:10-13 -> chr1, 10, 3
//	chr1:10    -> chr1, 10, 1
//	chr1       -> chr1, 0, -1 (the whole contig)
func ParseRegion(region string) (contig string, start, length int64, err error) {
	colon := strings.LastIndex(region, ":")
	if colon < 0 {
		if region == "" {
			return "", 0, 0, errors.E("empty region")
		}
		return region, 0, -1, nil
	}
	contig = region[:colon]
	rest := region[colon+1:]
	startStr, endStr := rest, ""
	if dash := strings.Index(rest, "-"); dash >= 0 {
		startStr, endStr = rest[:dash], rest[dash+1:]
	}
	if contig == "" || startStr == "" {
		return "", 0, 0, errors.E("malformed region:", region)
	}
	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return "", 0, 0, errors.E("malformed region start:", region)
	}
	length = 1
	if endStr != "" {
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return "", 0, 0, errors.E("malformed region end:", region)
		}
		length = end - start
	}
	return contig, start, length, nil
}

// CreateFile indexes the TAF or MAF file at path, writing the index next to
// it at Path(path).
func CreateFile(path string, blockSize int64) (err error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	li, err := lineio.NewReader(in.Reader(ctx))
	if err != nil {
		return err
	}
	out, err := file.Create(ctx, Path(path))
	if err != nil {
		return err
	}
	if err = Create(li, out.Writer(ctx), blockSize); err != nil {
		out.Close(ctx) // nolint: errcheck
		return err
	}
	return out.Close(ctx)
}

// LoadFile loads the index for the TAF or MAF file at path from Path(path),
// sniffing the file's format from its header.
func LoadFile(path string) (idx *Index, err error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	li, err := lineio.NewReader(in.Reader(ctx))
	if err != nil {
		return nil, err
	}
	header, err := li.Peek()
	if err != nil {
		return nil, errors.E(err, "empty alignment file:", path)
	}
	format := taf.SniffFormat(header)
	if format == taf.FormatUnknown {
		return nil, errors.E("cannot determine format of", path)
	}
	tf, err := file.Open(ctx, Path(path))
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := tf.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	return Load(tf.Reader(ctx), format == taf.FormatMAF)
}
