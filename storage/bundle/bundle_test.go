package bundle_test

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/privfeedback/pfb/cidutil"
	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/bundle"
	"github.com/privfeedback/pfb/storage/localfs"
	"github.com/privfeedback/pfb/storage/memory"
)

func TestBundle_ExportIsDeterministic(t *testing.T) {
	ctx := context.Background()
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	id1, err := cas.Put(ctx, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	id2, err := cas.Put(ctx, []byte("world"))
	if err != nil {
		t.Fatal(err)
	}

	var outA, outB bytes.Buffer
	if err := bundle.Export(ctx, &outA, cas, []cid.Cid{id2, id1}, bundle.ExportOptions{IncludeIndex: true}); err != nil {
		t.Fatal(err)
	}
	if err := bundle.Export(ctx, &outB, cas, []cid.Cid{id1, id2, id1}, bundle.ExportOptions{IncludeIndex: true}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatalf("expected deterministic bundle bytes")
	}
}

func TestBundle_ImportRoundTripWithLabels(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	meta, err := src.Put(ctx, []byte(`{"name":"Service A"}`))
	if err != nil {
		t.Fatal(err)
	}
	fb, err := src.Put(ctx, []byte(`{"overallRating":4}`))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	opts := bundle.ExportOptions{
		IncludeIndex: true,
		Labels: []bundle.Label{
			{Name: "service", CID: meta},
			{Name: "feedback/0000", CID: fb},
		},
	}
	if err := bundle.Export(ctx, &buf, src, nil, opts); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := memory.New()
	idx, err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst, bundle.ImportOptions{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if idx == nil || idx.Version != bundle.FormatVersion || len(idx.Blocks) != 2 {
		t.Fatalf("unexpected index %+v", idx)
	}
	if idx.Labels[0].Name != "feedback/0000" || idx.Labels[1].Name != "service" {
		t.Fatalf("labels not sorted: %+v", idx.Labels)
	}
	wantWords, err := cidword.EncodeCID(meta)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Labels[1].Words != wantWords {
		t.Fatalf("service label words = %s want %s", idx.Labels[1].Words, wantWords)
	}
	if !dst.Has(ctx, meta) || !dst.Has(ctx, fb) {
		t.Fatalf("imported CAS is missing blocks")
	}
}

type tarEntry struct {
	name string
	body []byte
}

func buildTar(t *testing.T, entries ...tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		if err := tw.WriteHeader(&tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(e.body); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestBundle_ImportRejects(t *testing.T) {
	ctx := context.Background()
	payload := []byte("payload")
	id, err := cidutil.CIDv1RawSHA256CID(payload)
	if err != nil {
		t.Fatal(err)
	}
	other, err := cidword.Encode("bafkreiother")
	if err != nil {
		t.Fatal(err)
	}
	badIndex, err := json.Marshal(bundle.Index{
		Version: bundle.FormatVersion,
		Labels:  []bundle.IndexLabel{{Name: "service", CID: id.String(), Words: other}},
	})
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]struct {
		archive []byte
		want    error
		substr  string
	}{
		"tampered block": {
			archive: buildTar(t, tarEntry{"blocks/" + id.String(), []byte("tampered")}),
			want:    storage.ErrCIDMismatch,
		},
		"path traversal": {
			archive: buildTar(t, tarEntry{"../blocks/" + id.String(), payload}),
			substr:  "invalid entry path",
		},
		"unknown entry": {
			archive: buildTar(t, tarEntry{"notes.txt", []byte("hi")}),
			substr:  "unknown entry",
		},
		"label words mismatch": {
			archive: buildTar(t, tarEntry{"blocks/" + id.String(), payload}, tarEntry{"index.json", badIndex}),
			substr:  "words decode",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := bundle.Import(ctx, bytes.NewReader(tc.archive), memory.New(), bundle.ImportOptions{})
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
			if tc.substr != "" && !strings.Contains(err.Error(), tc.substr) {
				t.Fatalf("got %v, want message containing %q", err, tc.substr)
			}
		})
	}
}

func TestBundle_ImportIgnoreUnknown(t *testing.T) {
	archive := buildTar(t, tarEntry{"notes.txt", []byte("hi")})
	idx, err := bundle.Import(context.Background(), bytes.NewReader(archive), memory.New(), bundle.ImportOptions{IgnoreUnknown: true})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if idx != nil {
		t.Fatalf("expected no index, got %+v", idx)
	}
}

func TestBundle_ExportMissingBlock(t *testing.T) {
	id, err := cidutil.CIDv1RawSHA256CID([]byte("never stored"))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	err = bundle.Export(context.Background(), &buf, memory.New(), []cid.Cid{id}, bundle.ExportOptions{})
	if !storage.IsNotFound(err) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}
