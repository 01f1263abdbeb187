package casconfig

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/casregistry"
	_ "github.com/privfeedback/pfb/storage/localfs"
	_ "github.com/privfeedback/pfb/storage/memory"
)

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"no backends":    `{"backends":[]}`,
		"missing name":   `{"backends":[{"config":{}}]}`,
		"duplicate id":   `{"backends":[{"name":"memory"},{"name":"memory"}]}`,
		"bad policy":     `{"write_policy":"some","backends":[{"name":"memory"}]}`,
		"malformed json": `{"backends":`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestOpen_SingleBackend(t *testing.T) {
	cfg, err := Parse([]byte(`{"backends":[{"name":"memory"}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cas, closeFn, err := cfg.Open(casregistry.UsageCLI, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()

	ctx := context.Background()
	id, err := cas.Put(ctx, []byte("x"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !cas.Has(ctx, id) {
		t.Fatalf("Has after Put = false")
	}
}

func TestOpen_WriteAllReplicates(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		WritePolicy: "all",
		Backends: []BackendConfig{
			{Name: "memory", ID: "hot"},
			{Name: "localfs", ID: "disk", Config: map[string]string{"dir": filepath.Join(dir, "cas")}},
		},
	}
	cas, closeFn, err := cfg.Open(casregistry.UsageDaemon, "disk")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()

	rep, ok := cas.(storage.ReplicatingCAS)
	if !ok {
		t.Fatalf("expected ReplicatingCAS, got %T", cas)
	}
	if rep.Backends[0].Name != "disk" {
		t.Fatalf("preferred backend not first: %q", rep.Backends[0].Name)
	}
	id, per, err := rep.PutAll(context.Background(), []byte("replicated"))
	if err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if len(per) != 2 || !per["hot"].Equals(id) || !per["disk"].Equals(id) {
		t.Fatalf("unexpected per-backend CIDs: %v", per)
	}
}

func TestOpen_UnknownPreferred(t *testing.T) {
	cfg := Single("memory", nil)
	if _, _, err := cfg.Open(casregistry.UsageCLI, "nope"); err == nil {
		t.Fatalf("expected error for unknown preferred backend")
	}
}
