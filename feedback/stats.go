package feedback

import (
	"context"
	"time"

	"github.com/privfeedback/pfb/ledger"
)

// QuestionStat is the mean rating of one question.
type QuestionStat struct {
	Question string  `json:"question"`
	Mean     float64 `json:"mean"`
}

// Stats summarizes a service for its owner.
type Stats struct {
	ServiceID    ledger.ServiceID `json:"service_id"`
	Name         string           `json:"name"`
	Interactions int              `json:"interactions"`
	Pending      int              `json:"pending"`
	Feedbacks    int              `json:"feedbacks"`
	MeanOverall  float64          `json:"mean_overall"`
	Questions    []QuestionStat   `json:"questions"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// Summarize counts interactions and averages the ratings of id. Means are
// zero when there is no feedback.
func (s *Service) Summarize(ctx context.Context, id ledger.ServiceID, owner *Identity) (Stats, error) {
	_, meta, err := s.LoadService(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	interactions, err := s.ledger.Interactions(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	records, err := s.Responses(ctx, id, owner)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		ServiceID:    id,
		Name:         meta.Name,
		Interactions: len(interactions),
		Feedbacks:    len(records),
		Questions:    make([]QuestionStat, len(meta.FeedbackQuestions)),
		GeneratedAt:  s.now().UTC(),
	}
	for _, in := range interactions {
		if in.State != ledger.StateSubmitted {
			st.Pending++
		}
	}
	for i, q := range meta.FeedbackQuestions {
		st.Questions[i].Question = q.Question
	}
	if len(records) == 0 {
		return st, nil
	}

	var overall int
	sums := make([]int, len(meta.FeedbackQuestions))
	for _, r := range records {
		overall += r.Response.OverallRating
		for i := range sums {
			if i < len(r.Response.Ratings) {
				sums[i] += r.Response.Ratings[i]
			}
		}
	}
	n := float64(len(records))
	st.MeanOverall = float64(overall) / n
	for i := range sums {
		st.Questions[i].Mean = float64(sums[i]) / n
	}
	return st, nil
}
