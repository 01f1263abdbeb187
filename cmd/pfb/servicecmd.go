package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/feedback"
)

func cmdService(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: pfb service <register|show|list> ...")
		return 2
	}
	switch args[0] {
	case "register":
		return cmdServiceRegister(args[1:], out, errOut)
	case "show":
		return cmdServiceShow(args[1:], out, errOut)
	case "list":
		return cmdServiceList(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown service subcommand: %s\n", args[0])
		return 2
	}
}

func cmdServiceRegister(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("service register", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
	owner := addIdentityFlags(fs, "owner")

	var name, description string
	var questions stringList
	fs.StringVar(&name, "name", "", "Service name")
	fs.StringVar(&description, "description", "", "Service description")
	fs.Var(&questions, "question", "Rating question (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if len(questions) == 0 {
		fmt.Fprintln(errOut, "missing --question")
		return 2
	}
	ks, err := store.keyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	id, err := owner.load(ks)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	meta := feedback.Metadata{Name: name, Description: description}
	for _, q := range questions {
		meta.FeedbackQuestions = append(meta.FeedbackQuestions, feedback.Question{Type: feedback.QuestionRating, Question: q})
	}

	ctx := context.Background()
	svc, _, cleanup, err := store.service(ctx, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	serviceID, metaCID, err := svc.RegisterService(ctx, id, meta)
	if err != nil {
		fmt.Fprintf(errOut, "register: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Service: %s\n", serviceID)
	fmt.Fprintf(out, "Metadata: %s\n", metaCID)
	return 0
}

type serviceView struct {
	ID       string            `json:"id"`
	Owner    string            `json:"owner"`
	Metadata string            `json:"metadata"`
	Words    cidword.Pair      `json:"words"`
	Document feedback.Metadata `json:"document"`
}

func cmdServiceShow(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("service show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
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

	ctx := context.Background()
	svc, _, cleanup, err := store.service(ctx, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	rec, meta, err := svc.LoadService(ctx, id)
	if err != nil {
		fmt.Fprintf(errOut, "service %s: %v\n", id, err)
		return 1
	}
	metaStr, err := cidword.Decode(rec.Metadata)
	if err != nil {
		fmt.Fprintf(errOut, "service %s: %v\n", id, err)
		return 1
	}
	return writeJSON(out, errOut, serviceView{
		ID:       rec.ID.String(),
		Owner:    rec.Owner,
		Metadata: metaStr,
		Words:    rec.Metadata,
		Document: meta,
	})
}

func cmdServiceList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("service list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	store := addStoreFlags(fs)
	var ownerKey string
	fs.StringVar(&ownerKey, "owner-key", "", "Only list services of this issuer key")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	l, _, closeFn, err := store.open(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer func() { _ = closeFn() }()

	services, err := l.Services(ctx, ownerKey)
	if err != nil {
		fmt.Fprintf(errOut, "list services: %v\n", err)
		return 1
	}
	for _, s := range services {
		metaStr, err := cidword.Decode(s.Metadata)
		if err != nil {
			metaStr = "<" + err.Error() + ">"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", s.ID, s.Owner, metaStr)
	}
	return 0
}

func writeJSON(out io.Writer, errOut io.Writer, v any) int {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	return 0
}
