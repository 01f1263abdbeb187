package feedback

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MetadataVersion = 1
	MaxQuestions    = 20
	MinRating       = 1
	MaxRating       = 5
	MaxRemarksBytes = 4096
	QuestionRating  = "rating"
)

var (
	ErrInvalidMetadata = errors.New("feedback: invalid service metadata")
	ErrInvalidResponse = errors.New("feedback: invalid response")
)

// Question is one item of a service's feedback form.
type Question struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

// Metadata is the service document pinned to the CAS. Its CID is what the
// ledger records for the service.
type Metadata struct {
	Version           int        `json:"v"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	FeedbackQuestions []Question `json:"feedbackQuestions"`
	// OwnerBoxKey is the base64 X25519 key responses are sealed to.
	OwnerBoxKey string `json:"ownerBoxKey"`
}

func (m Metadata) Validate() error {
	if m.Version != MetadataVersion {
		return fmt.Errorf("%w: version %d", ErrInvalidMetadata, m.Version)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMetadata)
	}
	n := len(m.FeedbackQuestions)
	if n == 0 || n > MaxQuestions {
		return fmt.Errorf("%w: %d questions, want 1..%d", ErrInvalidMetadata, n, MaxQuestions)
	}
	for i, q := range m.FeedbackQuestions {
		if q.Type != QuestionRating {
			return fmt.Errorf("%w: question %d has type %q", ErrInvalidMetadata, i, q.Type)
		}
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("%w: question %d is empty", ErrInvalidMetadata, i)
		}
	}
	if m.OwnerBoxKey == "" {
		return fmt.Errorf("%w: owner box key is required", ErrInvalidMetadata)
	}
	return nil
}

// Response is a user's answers. Ratings has one entry per question.
type Response struct {
	Service       string `json:"service"`
	Ratings       []int  `json:"ratings"`
	OverallRating int    `json:"overallRating"`
	Remarks       string `json:"remarks"`
}

// Validate checks r against the form described by m.
func (r Response) Validate(m Metadata) error {
	if len(r.Ratings) != len(m.FeedbackQuestions) {
		return fmt.Errorf("%w: %d ratings for %d questions", ErrInvalidResponse, len(r.Ratings), len(m.FeedbackQuestions))
	}
	for i, v := range r.Ratings {
		if v < MinRating || v > MaxRating {
			return fmt.Errorf("%w: rating %d is %d, want %d..%d", ErrInvalidResponse, i, v, MinRating, MaxRating)
		}
	}
	if r.OverallRating < MinRating || r.OverallRating > MaxRating {
		return fmt.Errorf("%w: overall rating is %d, want %d..%d", ErrInvalidResponse, r.OverallRating, MinRating, MaxRating)
	}
	if len(r.Remarks) > MaxRemarksBytes || !utf8.ValidString(r.Remarks) {
		return fmt.Errorf("%w: remarks must be valid UTF-8 of at most %d bytes", ErrInvalidResponse, MaxRemarksBytes)
	}
	return nil
}
