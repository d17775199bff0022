package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/helpdesk/internal/identity"
)

// IdentityService is the identity-service surface the sweep needs.
type IdentityService interface {
	ListUsers(ctx context.Context, pageToken string, pageSize int) (identity.UserPage, error)
	DeleteUser(ctx context.Context, uid string) error
}

// DataStore removes a user's documents from the shared document store.
type DataStore interface {
	DeleteUserData(ctx context.Context, uid string) error
}

// Tally is the outcome of one sweep. The failure unit is the individual
// identity: Failed counts records that were skipped over, never an aborted
// run.
type Tally struct {
	Scanned int
	Skipped int
	Deleted int
	Failed  int
}

// Sweeper deletes unverified accounts older than the grace period, documents
// first, then the identity record.
type Sweeper struct {
	ids      IdentityService
	store    DataStore
	grace    time.Duration
	pageSize int
	log      zerolog.Logger
	now      func() time.Time
}

// NewSweeper builds a sweeper. pageSize is capped by the identity service at
// 1000 per page.
func NewSweeper(ids IdentityService, store DataStore, grace time.Duration, pageSize int, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		ids:      ids,
		store:    store,
		grace:    grace,
		pageSize: pageSize,
		log:      log.With().Str("component", "cleanup").Logger(),
		now:      time.Now,
	}
}

// Sweep runs one pass over the full identity list. A failure on one identity
// is logged and counted; the sweep moves on to the next. Only a page listing
// failure ends the pass early, returning the partial tally.
func (s *Sweeper) Sweep(ctx context.Context) (Tally, error) {
	cutoff := s.now().Add(-s.grace)
	var tally Tally

	pageToken := ""
	for {
		page, err := s.ids.ListUsers(ctx, pageToken, s.pageSize)
		if err != nil {
			return tally, err
		}

		for _, user := range page.Users {
			tally.Scanned++
			if user.EmailVerified || user.CreatedAt.After(cutoff) {
				tally.Skipped++
				continue
			}
			if err := s.deleteAccount(ctx, user.UID); err != nil {
				tally.Failed++
				s.log.Error().Err(err).Str("uid", user.UID).Msg("account cleanup failed")
				continue
			}
			tally.Deleted++
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	s.log.Info().
		Int("scanned", tally.Scanned).
		Int("skipped", tally.Skipped).
		Int("deleted", tally.Deleted).
		Int("failed", tally.Failed).
		Msg("cleanup sweep finished")
	return tally, nil
}

// deleteAccount removes the user's documents first so a failure leaves the
// identity record in place for the next sweep.
func (s *Sweeper) deleteAccount(ctx context.Context, uid string) error {
	if err := s.store.DeleteUserData(ctx, uid); err != nil {
		return err
	}
	return s.ids.DeleteUser(ctx, uid)
}
