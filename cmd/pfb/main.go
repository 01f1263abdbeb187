package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "word":
		return cmdWord(args[1:], out, errOut)
	case "cid":
		return cmdCID(args[1:], out, errOut)
	case "cas":
		return cmdCAS(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "service":
		return cmdService(args[1:], out, errOut)
	case "invite":
		return cmdInvite(args[1:], out, errOut)
	case "submit":
		return cmdSubmit(args[1:], out, errOut)
	case "responses":
		return cmdResponses(args[1:], out, errOut)
	case "stats":
		return cmdStats(args[1:], out, errOut)
	case "export":
		return cmdExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "pfb: private feedback CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pfb word encode [--decimal] <identifier>")
	fmt.Fprintln(w, "  pfb word decode <word1> <word2>")
	fmt.Fprintln(w, "  pfb cid <file>")
	fmt.Fprintln(w, "  pfb cas put [store flags] <file>")
	fmt.Fprintln(w, "  pfb cas get [store flags] <cid>")
	fmt.Fprintln(w, "  pfb cas backends")
	fmt.Fprintln(w, "  pfb key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  pfb key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  pfb key list")
	fmt.Fprintln(w, "  pfb key export --name <name> [--role <role>] [--box]")
	fmt.Fprintln(w, "  pfb service register --owner <name> --name <text> [--description <text>] --question <text> [--question ...]")
	fmt.Fprintln(w, "  pfb service show --id <n>")
	fmt.Fprintln(w, "  pfb service list [--owner-key <issuer key>]")
	fmt.Fprintln(w, "  pfb invite --id <n> --owner <name> --user <name|issuer key> [--link]")
	fmt.Fprintln(w, "  pfb submit (--id <n> | --link <url>) --user <name> --rating <1-5> [--rating ...] --overall <1-5> [--remarks <text>]")
	fmt.Fprintln(w, "  pfb responses --id <n> --owner <name>")
	fmt.Fprintln(w, "  pfb stats --id <n> --owner <name>")
	fmt.Fprintln(w, "  pfb export --id <n> --out <file.tar>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Store flags (service, invite, submit, responses, stats, export, cas):")
	fmt.Fprintln(w, "  --ledger <sqlite path>   local ledger (default pfb-ledger.db)")
	fmt.Fprintln(w, "  --cas-dir <dir>          local CAS directory (default pfb-cas)")
	fmt.Fprintln(w, "  --cas-config <json>      CAS backend config, overrides --cas-dir")
	fmt.Fprintln(w, "  --remote <host:port>     use a pfbd daemon for both ledger and CAS")
	fmt.Fprintln(w, "  --timeout <duration>     per-call timeout with --remote (default 30s)")
	fmt.Fprintln(w, "  --keys-dir <dir>         key store (default ~/.pfb/keys)")
	fmt.Fprintln(w, "  --verbose                debug logging to stderr")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - identifiers are ASCII and at most 62 bytes; words print as 0x + 64 hex digits")
	fmt.Fprintln(w, "  - identity flags also accept --<who>-role, --<who>-key-file and --<who>-seed-hex")
	fmt.Fprintln(w, "  - invite --link reads PFB_LINK_ISSUER, PFB_LINK_AUDIENCE, PFB_LINK_BASE_URL and PFB_LINK_TTL")
	fmt.Fprintln(w, "  - responses are sealed to the owner's box key; only the owner can read them")
}
