package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/privfeedback/pfb/feedback"
	"github.com/privfeedback/pfb/keys"
	"github.com/privfeedback/pfb/ledger"
	"github.com/privfeedback/pfb/magiclink"
)

// resolveUser accepts an issuer key as is, or looks a key name up in the
// store.
func resolveUser(ks *keys.KeyStore, user, role string) (string, error) {
	if strings.HasPrefix(user, "ed25519:") {
		if _, err := keys.ParseIssuerKey(user); err != nil {
			return "", err
		}
		return user, nil
	}
	seed, err := ks.Seed(user, role)
	if err != nil {
		return "", err
	}
	return keys.GenerateIssuerKeyFromSeed(seed), nil
}

func cmdInvite(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("invite", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
	owner := addIdentityFlags(fs, "owner")

	var idStr, user, userRole string
	var link bool
	fs.StringVar(&idStr, "id", "", "Service id")
	fs.StringVar(&user, "user", "", "User key name or issuer key")
	fs.StringVar(&userRole, "user-role", "", "Role key of the user (with a key name)")
	fs.BoolVar(&link, "link", false, "Print a signed feedback link for the user")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, err := parseID(idStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --id: %v\n", err)
		return 2
	}
	if user == "" {
		fmt.Fprintln(errOut, "missing --user")
		return 2
	}
	ks, err := store.keyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	ownerID, err := owner.load(ks)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	userKey, err := resolveUser(ks, user, userRole)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --user: %v\n", err)
		return 2
	}

	var issuer *magiclink.Issuer
	if link {
		cfg, err := magiclink.LoadConfigFromEnv()
		if err != nil {
			fmt.Fprintf(errOut, "link config: %v\n", err)
			return 1
		}
		seed, err := ks.LoadSeed(owner.seedHex, owner.name, owner.role, owner.keyFile)
		if err != nil {
			fmt.Fprintf(errOut, "owner key: %v\n", err)
			return 1
		}
		if issuer, err = magiclink.NewIssuer(cfg, seed); err != nil {
			fmt.Fprintf(errOut, "link issuer: %v\n", err)
			return 1
		}
	}

	ctx := context.Background()
	svc, _, cleanup, err := store.service(ctx, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	if err := svc.Invite(ctx, id, ownerID, userKey); err != nil {
		fmt.Fprintf(errOut, "invite: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Invited: %s\n", userKey)
	if issuer != nil {
		l, err := issuer.Issue(id, userKey)
		if err != nil {
			fmt.Fprintf(errOut, "issue link: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "Link: %s\n", l.URL)
		fmt.Fprintf(out, "Expires: %s\n", l.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return 0
}

func cmdSubmit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
	user := addIdentityFlags(fs, "user")

	var idStr, linkURL, remarks string
	var ratings intList
	var overall int
	fs.StringVar(&idStr, "id", "", "Service id")
	fs.StringVar(&linkURL, "link", "", "Feedback link issued by the owner")
	fs.Var(&ratings, "rating", "Rating per question in order (repeatable)")
	fs.IntVar(&overall, "overall", 0, "Overall rating")
	fs.StringVar(&remarks, "remarks", "", "Free-form remarks")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (idStr == "") == (linkURL == "") {
		fmt.Fprintln(errOut, "exactly one of --id or --link is required")
		return 2
	}
	ks, err := store.keyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	me, err := user.load(ks)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ctx := context.Background()
	svc, l, cleanup, err := store.service(ctx, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	var id ledger.ServiceID
	if linkURL != "" {
		if id, err = verifyLink(ctx, l, linkURL, me.IssuerKey()); err != nil {
			fmt.Fprintf(errOut, "link: %v\n", err)
			return 1
		}
	} else if id, err = parseID(idStr); err != nil {
		fmt.Fprintf(errOut, "invalid --id: %v\n", err)
		return 2
	}

	resp := feedback.Response{Ratings: ratings, OverallRating: overall, Remarks: remarks}
	entry, fbCID, err := svc.Submit(ctx, id, me.Signer, resp)
	if err != nil {
		fmt.Fprintf(errOut, "submit: %v\n", err)
		if errors.Is(err, feedback.ErrInvalidResponse) {
			return 2
		}
		return 1
	}
	fmt.Fprintf(out, "Submitted: %s #%d\n", id, entry.Index)
	fmt.Fprintf(out, "Feedback: %s\n", fbCID)
	return 0
}

// verifyLink checks raw against the issuer key of the owner of the service it
// names and returns the service id.
func verifyLink(ctx context.Context, l ledger.Ledger, raw, userKey string) (ledger.ServiceID, error) {
	cfg, err := magiclink.LoadConfigFromEnv()
	if err != nil {
		return 0, err
	}
	// The owner key is needed before the token can be trusted, so the id is
	// read from the path first and confirmed by the verifier.
	id, err := linkServiceID(raw)
	if err != nil {
		return 0, err
	}
	svc, err := l.Service(ctx, id)
	if err != nil {
		return 0, err
	}
	pub, err := keys.ParseIssuerKey(svc.Owner)
	if err != nil {
		return 0, err
	}
	v, err := magiclink.NewVerifier(cfg, pub)
	if err != nil {
		return 0, err
	}
	claims, err := v.VerifyURL(raw)
	if err != nil {
		return 0, err
	}
	if claims.User != userKey {
		return 0, fmt.Errorf("%w: link was issued to %s", magiclink.ErrMismatch, claims.User)
	}
	return claims.ServiceID, nil
}

func linkServiceID(raw string) (ledger.ServiceID, error) {
	path := raw
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return 0, fmt.Errorf("%w: path", magiclink.ErrInvalid)
	}
	return ledger.ParseServiceID(parts[len(parts)-2])
}

type responseView struct {
	Index    int               `json:"index"`
	User     string            `json:"user"`
	CID      string            `json:"cid"`
	Response feedback.Response `json:"response"`
}

func cmdResponses(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("responses", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
	owner := addIdentityFlags(fs, "owner")
	var idStr string
	fs.StringVar(&idStr, "id", "", "Service id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, err := parseID(idStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --id: %v\n", err)
		return 2
	}
	ks, err := store.keyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	ownerID, err := owner.load(ks)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ctx := context.Background()
	svc, _, cleanup, err := store.service(ctx, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	records, err := svc.Responses(ctx, id, ownerID)
	if err != nil {
		fmt.Fprintf(errOut, "responses: %v\n", err)
		return 1
	}
	views := make([]responseView, 0, len(records))
	for _, r := range records {
		views = append(views, responseView{Index: r.Entry.Index, User: r.Entry.User, CID: r.CID.String(), Response: r.Response})
	}
	return writeJSON(out, errOut, views)
}

func cmdStats(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
	owner := addIdentityFlags(fs, "owner")
	var idStr string
	fs.StringVar(&idStr, "id", "", "Service id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, err := parseID(idStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --id: %v\n", err)
		return 2
	}
	ks, err := store.keyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	ownerID, err := owner.load(ks)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ctx := context.Background()
	svc, _, cleanup, err := store.service(ctx, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	stats, err := svc.Summarize(ctx, id, ownerID)
	if err != nil {
		fmt.Fprintf(errOut, "stats: %v\n", err)
		return 1
	}
	return writeJSON(out, errOut, stats)
}

func cmdExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
	var idStr, outPath string
	fs.StringVar(&idStr, "id", "", "Service id")
	fs.StringVar(&outPath, "out", "", "Bundle path (tar)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, err := parseID(idStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --id: %v\n", err)
		return 2
	}
	if outPath == "" {
		fmt.Fprintln(errOut, "missing --out")
		return 2
	}

	ctx := context.Background()
	svc, _, cleanup, err := store.service(ctx, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(errOut, "create %s: %v\n", outPath, err)
		return 1
	}
	if err := svc.Export(ctx, f, id); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(errOut, "close %s: %v\n", outPath, err)
		return 1
	}
	fmt.Fprintf(out, "Exported: %s\n", outPath)
	return 0
}
