package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusProcessed Status = "processed"
	// StatusNoArticles is the sentinel for a user whose search returned
	// nothing usable; no storage or model call happens for them.
	StatusNoArticles Status = "no_articles"
	// StatusSkipped marks a user with neither topics nor keywords.
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

type UserResult struct {
	UserID    uuid.UUID
	Status    Status
	Stored    int
	Fallbacks int
	Digested  bool
	Err       error
}

type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Users      []UserResult
}

func (r RunReport) Count(status Status) int {
	n := 0
	for _, u := range r.Users {
		if u.Status == status {
			n++
		}
	}
	return n
}

func (r RunReport) Stored() int {
	n := 0
	for _, u := range r.Users {
		n += u.Stored
	}
	return n
}

// Err joins the per-user errors.
func (r RunReport) Err() error {
	var errs []error
	for _, u := range r.Users {
		if u.Err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", u.UserID, u.Err))
		}
	}
	return errors.Join(errs...)
}
