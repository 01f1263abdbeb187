// Package bundle writes and reads deterministic TAR archives of CAS blocks.
//
// An archive holds blocks/<cid> entries and, optionally, an index.json that
// names blocks with labels and records each label's ledger word pair, so an
// exported service archive can be checked offline against ledger state.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/storage"
)

// FormatVersion is the current index schema version.
const FormatVersion = 2

const indexName = "index.json"

var epoch0 = time.Unix(0, 0).UTC()

// Label names one exported block.
type Label struct {
	Name string
	CID  cid.Cid
}

type ExportOptions struct {
	// Labels are non-authoritative names for exported blocks. Every labelled
	// CID is exported even if it is missing from ids.
	Labels []Label
	// IncludeIndex controls whether index.json is written.
	IncludeIndex bool
}

// Index is the decoded index.json.
type Index struct {
	Version int          `json:"version"`
	Blocks  []IndexBlock `json:"blocks"`
	Labels  []IndexLabel `json:"labels,omitempty"`
}

type IndexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type IndexLabel struct {
	Name  string       `json:"name"`
	CID   string       `json:"cid"`
	Words cidword.Pair `json:"words"`
}

// Export writes the blocks for ids (and labelled CIDs) to w.
//
// Output bytes depend only on the set of blocks and labels: entries are
// sorted, headers are normalized, and each block is verified against its CID.
func Export(ctx context.Context, w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return errors.New("bundle: nil CAS")
	}

	uniq := make(map[string]cid.Cid, len(ids)+len(opts.Labels))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	labels := make([]IndexLabel, 0, len(opts.Labels))
	for _, l := range opts.Labels {
		if strings.TrimSpace(l.Name) == "" {
			return errors.New("bundle: empty label name")
		}
		words, err := cidword.EncodeCID(l.CID)
		if err != nil {
			return fmt.Errorf("bundle: label %q: %w", l.Name, err)
		}
		uniq[l.CID.String()] = l.CID
		labels = append(labels, IndexLabel{Name: l.Name, CID: l.CID.String(), Words: words})
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	for i := 1; i < len(labels); i++ {
		if labels[i].Name == labels[i-1].Name {
			return fmt.Errorf("bundle: duplicate label %q", labels[i].Name)
		}
	}

	keys := make([]string, 0, len(uniq))
	for s := range uniq {
		keys = append(keys, s)
	}
	sort.Strings(keys)

	tw := tar.NewWriter(w)
	blocks := make([]IndexBlock, 0, len(keys))
	for _, k := range keys {
		id := uniq[k]
		b, err := cas.Get(ctx, id)
		if err == nil {
			err = storage.Verify(id, b)
		}
		if err != nil {
			_ = tw.Close()
			return fmt.Errorf("bundle: block %s: %w", k, err)
		}
		if err := writeFile(tw, "blocks/"+k, b); err != nil {
			_ = tw.Close()
			return err
		}
		blocks = append(blocks, IndexBlock{CID: k, Size: len(b)})
	}

	if opts.IncludeIndex {
		// Index is built from structs and slices only, so encoding/json output is stable.
		b, err := json.Marshal(Index{Version: FormatVersion, Blocks: blocks, Labels: labels})
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeFile(tw, indexName, append(b, '\n')); err != nil {
			_ = tw.Close()
			return err
		}
	}
	return tw.Close()
}

type ImportOptions struct {
	// IgnoreUnknown skips unknown TAR entries instead of failing.
	IgnoreUnknown bool
}

// Import reads an archive from r, verifies every block against its file name
// and pins it to cas. It returns the archive's index, or nil if it has none.
//
// Label word pairs in the index must decode to the label's CID, and every
// label must name a block present in the archive.
func Import(ctx context.Context, r io.Reader, cas storage.CAS, opts ImportOptions) (*Index, error) {
	if cas == nil {
		return nil, errors.New("bundle: nil CAS")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var idx *Index

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		switch {
		case name == indexName:
			var parsed Index
			if err := json.NewDecoder(tr).Decode(&parsed); err != nil {
				return nil, fmt.Errorf("bundle: index.json: %w", err)
			}
			idx = &parsed
		case strings.HasPrefix(name, "blocks/"):
			key, err := importBlock(ctx, tr, cas, strings.TrimPrefix(name, "blocks/"))
			if err != nil {
				return nil, err
			}
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("bundle: duplicate block entry: %s", key)
			}
			seen[key] = struct{}{}
		case opts.IgnoreUnknown:
			_, _ = io.Copy(io.Discard, tr)
		default:
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}
	}

	if idx == nil {
		return nil, nil
	}
	for _, l := range idx.Labels {
		if _, ok := seen[l.CID]; !ok {
			return nil, fmt.Errorf("bundle: label %q names missing block %s", l.Name, l.CID)
		}
		decoded, err := cidword.Decode(l.Words)
		if err != nil {
			return nil, fmt.Errorf("bundle: label %q: %w", l.Name, err)
		}
		if decoded != l.CID {
			return nil, fmt.Errorf("bundle: label %q words decode to %q, want %q", l.Name, decoded, l.CID)
		}
	}
	return idx, nil
}

func importBlock(ctx context.Context, r io.Reader, cas storage.CAS, cidStr string) (string, error) {
	id, err := cid.Decode(cidStr)
	if err != nil || !id.Defined() {
		return "", storage.ErrInvalidCID
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if err := storage.Verify(id, payload); err != nil {
		return "", err
	}
	putID, err := cas.Put(ctx, payload)
	if err != nil {
		return "", err
	}
	// Put derives a CIDv1 raw; accept it when the archive used another
	// rendering of the same bytes.
	if err := storage.Verify(putID, payload); err != nil {
		return "", err
	}
	return id.String(), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
