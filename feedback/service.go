// Package feedback runs the private feedback flow on top of a CAS and a
// ledger: owners register services and invite users, users submit ratings
// sealed to the owner, and owners read and summarize the responses.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/keys"
	"github.com/privfeedback/pfb/ledger"
	"github.com/privfeedback/pfb/seal"
	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/bundle"
)

const fetchConcurrency = 8

type Deps struct {
	CAS    storage.CAS
	Ledger ledger.Ledger
	Logger *zap.Logger
	Now    func() time.Time
}

type Service struct {
	cas    storage.CAS
	ledger ledger.Ledger
	log    *zap.Logger
	now    func() time.Time
}

func New(d Deps) (*Service, error) {
	if d.CAS == nil {
		return nil, errors.New("feedback: CAS is required")
	}
	if d.Ledger == nil {
		return nil, errors.New("feedback: ledger is required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{cas: d.CAS, ledger: d.Ledger, log: d.Logger, now: d.Now}, nil
}

// Record is one decrypted response.
type Record struct {
	Entry    ledger.Entry
	CID      cid.Cid
	Response Response
}

// pin stores data and returns its CID encoded as ledger words.
func (s *Service) pin(ctx context.Context, data []byte) (cid.Cid, cidword.Pair, error) {
	id, err := s.cas.Put(ctx, data)
	if err != nil {
		return cid.Undef, cidword.Pair{}, fmt.Errorf("pin: %w", err)
	}
	words, err := cidword.EncodeCID(id)
	if err != nil {
		return cid.Undef, cidword.Pair{}, err
	}
	return id, words, nil
}

// fetch resolves words to a CID and loads the document.
func (s *Service) fetch(ctx context.Context, words cidword.Pair) (cid.Cid, []byte, error) {
	id, err := cidword.DecodeCID(words)
	if err != nil {
		return cid.Undef, nil, err
	}
	b, err := s.cas.Get(ctx, id)
	if err != nil {
		return id, nil, fmt.Errorf("fetch %s: %w", id, err)
	}
	return id, b, nil
}

// RegisterService pins meta with the owner's box key and registers it.
func (s *Service) RegisterService(ctx context.Context, owner *Identity, meta Metadata) (ledger.ServiceID, cid.Cid, error) {
	boxKey, err := keys.EncodeBoxPublicKey(owner.BoxPublic)
	if err != nil {
		return 0, cid.Undef, err
	}
	meta.Version = MetadataVersion
	meta.OwnerBoxKey = boxKey
	if err := meta.Validate(); err != nil {
		return 0, cid.Undef, err
	}
	doc, err := json.Marshal(meta)
	if err != nil {
		return 0, cid.Undef, err
	}
	metaCID, words, err := s.pin(ctx, doc)
	if err != nil {
		return 0, cid.Undef, err
	}
	id, err := s.ledger.RegisterService(ctx, owner.IssuerKey(), words)
	if err != nil {
		return 0, cid.Undef, err
	}
	s.log.Info("service registered",
		zap.Stringer("service_id", id),
		zap.Stringer("metadata", metaCID),
		zap.Int("questions", len(meta.FeedbackQuestions)),
	)
	return id, metaCID, nil
}

// LoadService returns the ledger record and metadata document of id.
func (s *Service) LoadService(ctx context.Context, id ledger.ServiceID) (ledger.Service, Metadata, error) {
	svc, err := s.ledger.Service(ctx, id)
	if err != nil {
		return ledger.Service{}, Metadata{}, err
	}
	_, doc, err := s.fetch(ctx, svc.Metadata)
	if err != nil {
		return ledger.Service{}, Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(doc, &meta); err != nil {
		return ledger.Service{}, Metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if err := meta.Validate(); err != nil {
		return ledger.Service{}, Metadata{}, err
	}
	return svc, meta, nil
}

func (s *Service) Invite(ctx context.Context, id ledger.ServiceID, owner *Identity, user string) error {
	if err := s.ledger.Invite(ctx, id, owner.IssuerKey(), user); err != nil {
		return err
	}
	s.log.Info("user invited", zap.Stringer("service_id", id), zap.String("user", user))
	return nil
}

func aad(id ledger.ServiceID, user string) []byte {
	return []byte("service:" + id.String() + "\x00user:" + user)
}

// Submit seals resp to the service owner, pins the envelope and records it
// on the ledger.
func (s *Service) Submit(ctx context.Context, id ledger.ServiceID, user *keys.Signer, resp Response) (ledger.Entry, cid.Cid, error) {
	_, meta, err := s.LoadService(ctx, id)
	if err != nil {
		return ledger.Entry{}, cid.Undef, err
	}
	state, err := s.ledger.InteractionState(ctx, id, user.IssuerKey)
	if err != nil {
		return ledger.Entry{}, cid.Undef, err
	}
	if err := ledger.CheckTransition(state); err != nil {
		return ledger.Entry{}, cid.Undef, err
	}

	resp.Service = id.String()
	if err := resp.Validate(meta); err != nil {
		return ledger.Entry{}, cid.Undef, err
	}
	boxKey, err := keys.ParseBoxPublicKey(meta.OwnerBoxKey)
	if err != nil {
		return ledger.Entry{}, cid.Undef, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	plain, err := json.Marshal(resp)
	if err != nil {
		return ledger.Entry{}, cid.Undef, err
	}
	env, err := seal.Seal(boxKey, plain, aad(id, user.IssuerKey))
	if err != nil {
		return ledger.Entry{}, cid.Undef, err
	}
	doc, err := env.Marshal()
	if err != nil {
		return ledger.Entry{}, cid.Undef, err
	}
	fbCID, words, err := s.pin(ctx, doc)
	if err != nil {
		return ledger.Entry{}, cid.Undef, err
	}
	entry, err := s.ledger.SubmitFeedback(ctx, ledger.NewSubmission(user, id, words))
	if err != nil {
		return ledger.Entry{}, cid.Undef, err
	}
	s.log.Info("feedback submitted",
		zap.Stringer("service_id", id),
		zap.Int("index", entry.Index),
		zap.Stringer("cid", fbCID),
	)
	return entry, fbCID, nil
}

// Responses fetches and opens every response to id. Only the owner's box
// key can open them.
func (s *Service) Responses(ctx context.Context, id ledger.ServiceID, owner *Identity) ([]Record, error) {
	svc, err := s.ledger.Service(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.Owner != owner.IssuerKey() {
		return nil, ledger.ErrNotOwner
	}
	entries, err := s.ledger.Feedback(ctx, id)
	if err != nil {
		return nil, err
	}

	records := make([]Record, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, e := range entries {
		g.Go(func() error {
			rec, err := s.open(gctx, e, owner)
			if err != nil {
				return fmt.Errorf("feedback %d: %w", e.Index, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.log.Debug("responses opened", zap.Stringer("service_id", id), zap.Int("count", len(records)))
	return records, nil
}

func (s *Service) open(ctx context.Context, e ledger.Entry, owner *Identity) (Record, error) {
	id, doc, err := s.fetch(ctx, e.Feedback)
	if err != nil {
		return Record{}, err
	}
	env, err := seal.Unmarshal(doc)
	if err != nil {
		return Record{}, err
	}
	plain, err := seal.Open(owner.BoxPrivate, env, aad(e.ServiceID, e.User))
	if err != nil {
		return Record{}, err
	}
	var resp Response
	if err := json.Unmarshal(plain, &resp); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return Record{Entry: e, CID: id, Response: resp}, nil
}

// Export writes a bundle holding the metadata document and every sealed
// response of id. Labels name the metadata and each response by index.
func (s *Service) Export(ctx context.Context, w io.Writer, id ledger.ServiceID) error {
	svc, err := s.ledger.Service(ctx, id)
	if err != nil {
		return err
	}
	metaCID, err := cidword.DecodeCID(svc.Metadata)
	if err != nil {
		return err
	}
	entries, err := s.ledger.Feedback(ctx, id)
	if err != nil {
		return err
	}
	labels := []bundle.Label{{Name: "metadata", CID: metaCID}}
	for _, e := range entries {
		fb, err := cidword.DecodeCID(e.Feedback)
		if err != nil {
			return fmt.Errorf("feedback %d: %w", e.Index, err)
		}
		labels = append(labels, bundle.Label{Name: fmt.Sprintf("feedback/%04d", e.Index), CID: fb})
	}
	return bundle.Export(ctx, w, s.cas, nil, bundle.ExportOptions{Labels: labels, IncludeIndex: true})
}
