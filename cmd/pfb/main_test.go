package main

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/privfeedback/pfb/feedback"
)

const (
	ownerSeed = "1111111111111111111111111111111111111111111111111111111111111111"
	userSeed  = "2222222222222222222222222222222222222222222222222222222222222222"
)

type cliEnv struct {
	t       *testing.T
	keysDir string
	store   []string
}

func newEnv(t *testing.T) *cliEnv {
	dir := t.TempDir()
	return &cliEnv{t: t, keysDir: filepath.Join(dir, "keys"), store: []string{
		"--keys-dir", filepath.Join(dir, "keys"),
		"--ledger", filepath.Join(dir, "ledger.db"),
		"--cas-dir", filepath.Join(dir, "cas"),
	}}
}

func (e *cliEnv) run(args ...string) (int, string, string) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

// must runs a store-backed command and fails the test on a non-zero exit.
func (e *cliEnv) must(args ...string) string {
	e.t.Helper()
	return e.mustRun(append(append([]string{}, args...), e.store...)...)
}

// key runs a key subcommand against the test key store.
func (e *cliEnv) key(args ...string) string {
	e.t.Helper()
	return e.mustRun(append(append([]string{"key"}, args...), "--keys-dir", e.keysDir)...)
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	code, out, errOut := e.run(args...)
	if code != 0 {
		e.t.Fatalf("pfb %s: exit %d\nstdout: %s\nstderr: %s", strings.Join(args, " "), code, out, errOut)
	}
	return out
}

func field(t *testing.T, out, prefix string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(v)
		}
	}
	t.Fatalf("no %q line in output:\n%s", prefix, out)
	return ""
}

func TestRun_Usage(t *testing.T) {
	e := newEnv(t)
	if code, _, _ := e.run(); code != 2 {
		t.Fatalf("no args: exit %d want 2", code)
	}
	if code, _, _ := e.run("bogus"); code != 2 {
		t.Fatalf("unknown command: exit %d want 2", code)
	}
	code, out, _ := e.run("help")
	if code != 0 || !strings.Contains(out, "pfb word encode") {
		t.Fatalf("help: exit %d output %q", code, out)
	}
}

func TestWord_EncodeDecode(t *testing.T) {
	e := newEnv(t)
	const id = "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy"

	code, out, errOut := e.run("word", "encode", id)
	if code != 0 {
		t.Fatalf("encode: exit %d: %s", code, errOut)
	}
	words := strings.Fields(out)
	if len(words) != 2 || !strings.HasPrefix(words[0], "0x3b") {
		t.Fatalf("unexpected encode output %q", out)
	}
	code, out, errOut = e.run("word", "decode", words[0], words[1])
	if code != 0 || strings.TrimSpace(out) != id {
		t.Fatalf("decode: exit %d out %q err %q", code, out, errOut)
	}

	code, out, _ = e.run("word", "encode", "--decimal", "hi")
	if code != 0 || strings.Fields(out)[1] != "0" {
		t.Fatalf("decimal encode: exit %d out %q", code, out)
	}
	dec := strings.Fields(out)
	code, out, _ = e.run("word", "decode", dec[0], dec[1])
	if code != 0 || strings.TrimSpace(out) != "hi" {
		t.Fatalf("decimal decode: exit %d out %q", code, out)
	}

	if code, _, _ := e.run("word", "encode", strings.Repeat("a", 63)); code != 1 {
		t.Fatalf("too long: exit %d want 1", code)
	}
	if code, _, _ := e.run("word", "decode", "0xzz", "0x0"); code != 2 {
		t.Fatalf("bad word: exit %d want 2", code)
	}
	if code, _, _ := e.run("word", "decode", "0x3f", "0x0"); code != 1 {
		t.Fatalf("malformed pair: exit %d want 1", code)
	}
}

func TestCASPutGet(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, want, _ := e.run("cid", path)
	if code != 0 {
		t.Fatalf("cid: exit %d", code)
	}
	// Positional arguments end flag parsing, so store flags go first.
	got := e.mustRun(append(append([]string{"cas", "put"}, e.store...), path)...)
	if got != want {
		t.Fatalf("cas put = %q, cid = %q", got, want)
	}
	if body := e.mustRun(append(append([]string{"cas", "get"}, e.store...), strings.TrimSpace(got))...); body != "hello" {
		t.Fatalf("cas get = %q", body)
	}
	code, out, _ := e.run("cas", "backends")
	if code != 0 || !strings.Contains(out, "localfs") {
		t.Fatalf("backends: exit %d out %q", code, out)
	}
}

func TestKeyCommands(t *testing.T) {
	e := newEnv(t)
	keysDir := e.keysDir

	out := e.key("init", "--name", "alice", "--seed-hex", ownerSeed)
	root := field(t, out, "Created root key:")
	if !strings.HasPrefix(root, "ed25519:") {
		t.Fatalf("unexpected issuer key %q", root)
	}
	code, _, _ := e.run("key", "init", "--name", "alice", "--seed-hex", ownerSeed, "--keys-dir", keysDir)
	if code != 1 {
		t.Fatalf("re-init without --force: exit %d want 1", code)
	}

	out = e.key("derive", "--from", "alice", "--role", "owner")
	roleKey := field(t, out, "Created role key:")
	if roleKey == root {
		t.Fatalf("role key must differ from root key")
	}

	out = e.key("export", "--name", "alice", "--role", "owner", "--box")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != roleKey || !strings.HasPrefix(lines[1], "box:") {
		t.Fatalf("unexpected export output %q", out)
	}

	out = e.key("list")
	if !strings.Contains(out, "alice "+root) || !strings.Contains(out, "  - owner") {
		t.Fatalf("unexpected list output %q", out)
	}

	if code, _, _ := e.run("key", "init", "--name", "../x", "--keys-dir", keysDir); code != 2 {
		t.Fatalf("bad name: exit %d want 2", code)
	}
}

func TestFeedbackFlow(t *testing.T) {
	e := newEnv(t)
	t.Setenv("PFB_LINK_BASE_URL", "https://feedback.example/f")

	e.key("init", "--name", "owner", "--seed-hex", ownerSeed)
	userKey := field(t, e.key("init", "--name", "bob", "--seed-hex", userSeed), "Created root key:")

	out := e.must("service", "register", "--owner", "owner",
		"--name", "Coffee Bar", "--description", "Espresso downtown",
		"--question", "Taste?", "--question", "Service?")
	id := field(t, out, "Service:")
	if id != "1" {
		t.Fatalf("first service id = %q", id)
	}

	var shown serviceView
	if err := json.Unmarshal([]byte(e.must("service", "show", "--id", id)), &shown); err != nil {
		t.Fatalf("service show JSON: %v", err)
	}
	if shown.Metadata != field(t, out, "Metadata:") || shown.Document.Name != "Coffee Bar" || len(shown.Document.FeedbackQuestions) != 2 {
		t.Fatalf("unexpected service view %+v", shown)
	}
	if list := e.must("service", "list"); !strings.HasPrefix(list, "1\t") {
		t.Fatalf("unexpected service list %q", list)
	}

	// Submitting before an invitation fails.
	code, _, errOut := e.run(append([]string{"submit", "--id", id, "--user", "bob",
		"--rating", "4", "--rating", "5", "--overall", "4"}, e.store...)...)
	if code != 1 || !strings.Contains(errOut, "not invited") {
		t.Fatalf("uninvited submit: exit %d err %q", code, errOut)
	}

	out = e.must("invite", "--id", id, "--owner", "owner", "--user", "bob", "--link")
	if got := field(t, out, "Invited:"); got != userKey {
		t.Fatalf("invited %q want %q", got, userKey)
	}
	link := field(t, out, "Link:")
	if !strings.HasPrefix(link, "https://feedback.example/f/1/") {
		t.Fatalf("unexpected link %q", link)
	}

	// Wrong rating count is a usage error.
	code, _, _ = e.run(append([]string{"submit", "--link", link, "--user", "bob",
		"--rating", "4", "--overall", "4"}, e.store...)...)
	if code != 2 {
		t.Fatalf("short ratings: exit %d want 2", code)
	}

	// The link is bound to bob.
	code, _, _ = e.run(append([]string{"submit", "--link", link, "--user", "owner",
		"--rating", "4", "--rating", "5", "--overall", "4"}, e.store...)...)
	if code != 1 {
		t.Fatalf("link reuse by another user: exit %d want 1", code)
	}

	out = e.must("submit", "--link", link, "--user", "bob",
		"--rating", "4", "--rating", "5", "--overall", "4", "--remarks", "great crema")
	if !strings.HasPrefix(field(t, out, "Submitted:"), "1 #0") {
		t.Fatalf("unexpected submit output %q", out)
	}

	code, _, errOut = e.run(append([]string{"submit", "--id", id, "--user", "bob",
		"--rating", "1", "--rating", "1", "--overall", "1"}, e.store...)...)
	if code != 1 || !strings.Contains(errOut, "already submitted") {
		t.Fatalf("second submit: exit %d err %q", code, errOut)
	}

	var views []responseView
	if err := json.Unmarshal([]byte(e.must("responses", "--id", id, "--owner", "owner")), &views); err != nil {
		t.Fatalf("responses JSON: %v", err)
	}
	if len(views) != 1 || views[0].User != userKey || views[0].Response.Remarks != "great crema" {
		t.Fatalf("unexpected responses %+v", views)
	}

	code, _, _ = e.run(append([]string{"responses", "--id", id, "--owner", "bob"}, e.store...)...)
	if code != 1 {
		t.Fatalf("responses by non-owner: exit %d want 1", code)
	}

	var stats feedback.Stats
	if err := json.Unmarshal([]byte(e.must("stats", "--id", id, "--owner", "owner")), &stats); err != nil {
		t.Fatalf("stats JSON: %v", err)
	}
	if stats.Feedbacks != 1 || stats.MeanOverall != 4 || len(stats.Questions) != 2 || stats.Questions[1].Mean != 5 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	bundlePath := filepath.Join(t.TempDir(), "export.tar")
	e.must("export", "--id", id, "--out", bundlePath)
	names := tarNames(t, bundlePath)
	if len(names) < 3 {
		t.Fatalf("bundle holds %v, want metadata, one response and an index", names)
	}
}

func tarNames(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var names []string
	tr := tar.NewReader(f)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names
		}
		if err != nil {
			t.Fatalf("read bundle: %v", err)
		}
		names = append(names, h.Name)
	}
}
