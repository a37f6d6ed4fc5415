package tai

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/taffy/align"
	"github.com/grailbio/taffy/encoding/maf"
	"github.com/grailbio/taffy/encoding/taf"
	"github.com/grailbio/taffy/lineio"
)

// SequenceLengths returns the full sequence length of every contig in the
// index, by seeking to each contig's first entry and reading one block.
func (idx *Index) SequenceLengths(li *lineio.Reader) (map[string]int64, error) {
	// Re-read the header to pick up the RLE setting.
	if err := li.Seek(0); err != nil {
		return nil, err
	}
	var rle bool
	if idx.maf {
		if _, err := maf.ReadHeader(li); err != nil {
			return nil, err
		}
	} else {
		var err error
		if _, rle, err = taf.ReadHeader(li); err != nil {
			return nil, err
		}
	}

	lengths := make(map[string]int64, len(idx.names))
	for _, name := range idx.names {
		if _, ok := lengths[name]; ok {
			continue
		}
		e := idx.ceil(name, 0)
		if e == nil || e.name != name {
			return nil, errors.E("contig missing from index:", name)
		}
		if err := li.Seek(e.filePos); err != nil {
			return nil, err
		}
		var block *align.Block
		if idx.maf {
			var err error
			if block, err = maf.ReadBlock(li); err != nil {
				return nil, err
			}
		} else {
			line, err := li.Peek()
			if err != nil {
				return nil, err
			}
			rewritten, err := taf.RewriteAnchor(line)
			if err != nil {
				return nil, err
			}
			li.SetPeek(rewritten)
			if block, err = taf.ReadBlock(nil, rle, li); err != nil {
				return nil, err
			}
		}
		if len(block.Rows) == 0 || block.Rows[0].Name != name {
			return nil, errors.E("index entry for", name, "does not point at one of its blocks")
		}
		lengths[name] = block.Rows[0].SeqLength
	}
	return lengths, nil
}
