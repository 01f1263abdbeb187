package grpcledger

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/ledger"
)

// Wire fields:
//
//	service_id  decimal string
//	owner, user issuer key strings
//	metadata, feedback  {"word1": "0x..", "word2": "0x.."}
//	state       number
//	services, interactions, entries  lists of the objects above

func pairValue(p cidword.Pair) map[string]any {
	return map[string]any{"word1": p.Word1.Hex(), "word2": p.Word2.Hex()}
}

func field(s *structpb.Struct, key string) *structpb.Value {
	if s == nil {
		return nil
	}
	return s.GetFields()[key]
}

func stringField(s *structpb.Struct, key string) string {
	return field(s, key).GetStringValue()
}

func idField(s *structpb.Struct) (ledger.ServiceID, error) {
	return ledger.ParseServiceID(stringField(s, "service_id"))
}

func pairField(s *structpb.Struct, key string) (cidword.Pair, error) {
	obj := field(s, key).GetStructValue()
	if obj == nil {
		return cidword.Pair{}, fmt.Errorf("missing %s", key)
	}
	w1, err := cidword.ParseWord(stringField(obj, "word1"))
	if err != nil {
		return cidword.Pair{}, fmt.Errorf("%s.word1: %w", key, err)
	}
	w2, err := cidword.ParseWord(stringField(obj, "word2"))
	if err != nil {
		return cidword.Pair{}, fmt.Errorf("%s.word2: %w", key, err)
	}
	return cidword.Pair{Word1: w1, Word2: w2}, nil
}

func serviceValue(s ledger.Service) map[string]any {
	return map[string]any{
		"service_id": s.ID.String(),
		"owner":      s.Owner,
		"metadata":   pairValue(s.Metadata),
	}
}

func serviceFrom(s *structpb.Struct) (ledger.Service, error) {
	id, err := idField(s)
	if err != nil {
		return ledger.Service{}, err
	}
	meta, err := pairField(s, "metadata")
	if err != nil {
		return ledger.Service{}, err
	}
	return ledger.Service{ID: id, Owner: stringField(s, "owner"), Metadata: meta}, nil
}

func interactionValue(i ledger.Interaction) map[string]any {
	return map[string]any{
		"service_id": i.ServiceID.String(),
		"user":       i.User,
		"state":      float64(i.State),
	}
}

func interactionFrom(s *structpb.Struct) (ledger.Interaction, error) {
	id, err := idField(s)
	if err != nil {
		return ledger.Interaction{}, err
	}
	return ledger.Interaction{
		User:      stringField(s, "user"),
		ServiceID: id,
		State:     ledger.State(field(s, "state").GetNumberValue()),
	}, nil
}

func entryValue(e ledger.Entry) map[string]any {
	return map[string]any{
		"index":      float64(e.Index),
		"service_id": e.ServiceID.String(),
		"user":       e.User,
		"feedback":   pairValue(e.Feedback),
	}
}

func entryFrom(s *structpb.Struct) (ledger.Entry, error) {
	id, err := idField(s)
	if err != nil {
		return ledger.Entry{}, err
	}
	fb, err := pairField(s, "feedback")
	if err != nil {
		return ledger.Entry{}, err
	}
	return ledger.Entry{
		Index:     int(field(s, "index").GetNumberValue()),
		ServiceID: id,
		User:      stringField(s, "user"),
		Feedback:  fb,
	}, nil
}

func listField(s *structpb.Struct, key string) []*structpb.Struct {
	var out []*structpb.Struct
	for _, v := range field(s, key).GetListValue().GetValues() {
		out = append(out, v.GetStructValue())
	}
	return out
}

func listValue[T any](items []T, conv func(T) map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return out
}
