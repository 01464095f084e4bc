package types

import (
	"time"
)

// CollectionResult is one source's output for a run.
type CollectionResult struct {
	SourceKey    string       `json:"sourceKey"`
	DisplayName  string       `json:"name,omitempty"`
	Articles     []Article    `json:"articles"`
	PagesVisited int          `json:"pagesVisited,omitempty"`
	Errors       []*ItemError `json:"-"`

	// Structural is set when the whole source failed; Articles is empty then.
	Structural error `json:"-"`
}

// AddError records a per-item failure and continues.
func (r *CollectionResult) AddError(context string, err error) {
	r.Errors = append(r.Errors, &ItemError{Source: r.SourceKey, Context: context, Err: err})
}

// Failed reports whether the source failed structurally.
func (r *CollectionResult) Failed() bool { return r.Structural != nil }

// SourceStats summarizes one source for the run report.
type SourceStats struct {
	Articles     int    `json:"articles"`
	PagesVisited int    `json:"pagesVisited,omitempty"`
	Errors       int    `json:"errors,omitempty"`
	Structural   string `json:"structuralError,omitempty"`
}

// RunReport aggregates every source's result for a single run.
type RunReport struct {
	Mode          Mode                   `json:"mode"`
	StartedAt     time.Time              `json:"startedAt"`
	FinishedAt    time.Time              `json:"finishedAt"`
	Results       []*CollectionResult    `json:"results"`
	TotalArticles int                    `json:"totalArticles"`
	Stats         map[string]SourceStats `json:"perSourceStats"`
}

// Finish computes totals and per-source stats after all sources ran.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
	r.Stats = make(map[string]SourceStats, len(r.Results))
	r.TotalArticles = 0
	for _, res := range r.Results {
		stats := SourceStats{
			Articles:     len(res.Articles),
			PagesVisited: res.PagesVisited,
			Errors:       len(res.Errors),
		}
		if res.Structural != nil {
			stats.Structural = res.Structural.Error()
		}
		r.Stats[res.SourceKey] = stats
		r.TotalArticles += len(res.Articles)
	}
}

// AllArticles flattens every source's articles in result order.
func (r *RunReport) AllArticles() []Article {
	out := make([]Article, 0, r.TotalArticles)
	for _, res := range r.Results {
		out = append(out, res.Articles...)
	}
	return out
}
