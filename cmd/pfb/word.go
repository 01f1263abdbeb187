package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/privfeedback/pfb/cidutil"
	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/storage/casregistry"
)

func cmdWord(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: pfb word <encode|decode> ...")
		return 2
	}
	switch args[0] {
	case "encode":
		return cmdWordEncode(args[1:], out, errOut)
	case "decode":
		return cmdWordDecode(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown word subcommand: %s\n", args[0])
		return 2
	}
}

func cmdWordEncode(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("word encode", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var decimal bool
	fs.BoolVar(&decimal, "decimal", false, "Print words as unsigned decimal integers")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pfb word encode [--decimal] <identifier>")
		return 2
	}
	p, err := cidword.Encode(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	if decimal {
		fmt.Fprintln(out, p.Word1.Int().String())
		fmt.Fprintln(out, p.Word2.Int().String())
		return 0
	}
	fmt.Fprintln(out, p.Word1.Hex())
	fmt.Fprintln(out, p.Word2.Hex())
	return 0
}

func cmdWordDecode(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("word decode", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(errOut, "usage: pfb word decode <word1> <word2>")
		return 2
	}
	w1, err := cidword.ParseWord(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid word1: %v\n", err)
		return 2
	}
	w2, err := cidword.ParseWord(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(errOut, "invalid word2: %v\n", err)
		return 2
	}
	s, err := cidword.Decode(cidword.Pair{Word1: w1, Word2: w2})
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, s)
	return 0
}

func cmdCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pfb cid <file>")
		return 2
	}
	path := fs.Arg(0)
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return 1
	}
	_, _ = fmt.Fprintln(out, cidutil.CIDv1RawSHA256(b))
	return 0
}

func cmdCAS(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: pfb cas <put|get|backends> ...")
		return 2
	}
	switch args[0] {
	case "put":
		return cmdCASPut(args[1:], out, errOut)
	case "get":
		return cmdCASGet(args[1:], out, errOut)
	case "backends":
		for _, b := range casregistry.List(casregistry.UsageCLI) {
			fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
			for _, o := range b.Options {
				req := ""
				if o.Required {
					req = " (required)"
				}
				fmt.Fprintf(out, "  %s: %s%s\n", o.Key, o.Description, req)
			}
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown cas subcommand: %s\n", args[0])
		return 2
	}
}

func cmdCASPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cas put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pfb cas put [store flags] <file>")
		return 2
	}
	path := fs.Arg(0)
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return 1
	}

	ctx := context.Background()
	cas, closeFn, err := store.openCAS(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "open cas: %v\n", err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}
	id, err := cas.Put(ctx, b)
	if err != nil {
		fmt.Fprintf(errOut, "put: %v\n", err)
		return 1
	}
	if !cidutil.FitsWordPair(id) {
		fmt.Fprintf(errOut, "warning: %s does not fit in two ledger words\n", id)
	}
	fmt.Fprintln(out, id.String())
	return 0
}

func cmdCASGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cas get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pfb cas get [store flags] <cid>")
		return 2
	}
	id, err := cidutil.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid cid: %v\n", err)
		return 2
	}

	ctx := context.Background()
	cas, closeFn, err := store.openCAS(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "open cas: %v\n", err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}
	b, err := cas.Get(ctx, id)
	if err != nil {
		fmt.Fprintf(errOut, "get: %v\n", err)
		return 1
	}
	_, _ = out.Write(b)
	return 0
}
