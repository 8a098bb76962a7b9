package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/damas-online/internal/game"
	"github.com/park285/damas-online/internal/obslog"
	"go.uber.org/zap"
)

// Dispatcher hands a finished match to the results store and the ledger,
// at most once per match across every client that reaches the end.
type Dispatcher struct {
	claimer  Claimer
	recorder Recorder
	ledger   Ledger
	now      func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithClaimer(c Claimer) DispatcherOption   { return func(d *Dispatcher) { d.claimer = c } }
func WithRecorder(r Recorder) DispatcherOption { return func(d *Dispatcher) { d.recorder = r } }
func WithLedger(l Ledger) DispatcherOption     { return func(d *Dispatcher) { d.ledger = l } }

func withClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher defaults to an in-memory claimer; recorder and ledger are optional.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{claimer: NewMemoryClaimer(), now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Settle records and pays out a finished match. A match that was already
// claimed by another caller is skipped without error. When recording or the
// ledger call fails the claim is released so a later attempt can retry.
func (d *Dispatcher) Settle(ctx context.Context, matchID string, st *game.State) error {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return fmt.Errorf("match id required")
	}
	if st == nil || !st.GameOver {
		return fmt.Errorf("settle %s: match not finished", matchID)
	}
	if err := d.claimer.Claim(ctx, matchID); err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			obslog.L().Info("match_settle_skip", zap.String("match_id", matchID))
			return nil
		}
		return fmt.Errorf("claim %s: %w", matchID, err)
	}

	endedAt := d.now()
	if d.recorder != nil {
		if err := d.recorder.SaveResult(ctx, BuildResult(matchID, st, endedAt)); err != nil {
			d.release(ctx, matchID)
			obslog.L().Error("match_result_persist_error", zap.String("match_id", matchID), zap.Error(err))
			return fmt.Errorf("record %s: %w", matchID, err)
		}
	}

	outcome := BuildOutcome(matchID, st, endedAt)
	if d.ledger != nil {
		rcpt, err := d.ledger.Settle(ctx, outcome)
		if err != nil {
			d.release(ctx, matchID)
			obslog.L().Error("match_ledger_error", zap.String("match_id", matchID), zap.Error(err))
			return fmt.Errorf("ledger %s: %w", matchID, err)
		}
		obslog.L().Info("match_ledger_settle",
			zap.String("match_id", matchID),
			zap.String("status", rcpt.Status),
			zap.String("transaction_id", rcpt.TransactionID),
		)
	}

	obslog.L().Info("match_settled",
		zap.String("match_id", matchID),
		zap.String("type", string(outcome.Kind)),
		zap.String("winner", outcome.Winner),
		zap.String("method", outcome.Method),
		zap.Int("move_number", outcome.MoveNumber),
	)
	return nil
}

func (d *Dispatcher) release(ctx context.Context, matchID string) {
	if err := d.claimer.Release(ctx, matchID); err != nil {
		obslog.L().Warn("match_claim_release_error", zap.String("match_id", matchID), zap.Error(err))
	}
}
