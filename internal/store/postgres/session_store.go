package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// SessionStore persists terminal execution sessions.
type SessionStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a session store on an existing client.
func NewSessionStore(client *Client, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		pool:   client.Pool(),
		logger: logger.With(slog.String("component", "session_store")),
	}
}

// Archive upserts a terminal session. Re-archiving the same session ID
// overwrites the previous row, so retries after transient errors are safe.
func (s *SessionStore) Archive(ctx context.Context, sess domain.ExecutionSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (
			id, opportunity_id, pair_id, pair_label, strategy, state,
			leg1_venue, leg1_instrument, leg1_ask, leg1_order_id,
			leg2_venue, leg2_instrument, leg2_ask, leg2_order_id,
			cost, profit, profit_rate,
			notional, shares, expected_profit,
			unhedged, reason,
			detected_at, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20,
			$21, $22,
			$23, $24, $25
		)
		ON CONFLICT (id) DO UPDATE SET
			state         = EXCLUDED.state,
			leg1_order_id = EXCLUDED.leg1_order_id,
			leg2_order_id = EXCLUDED.leg2_order_id,
			unhedged      = EXCLUDED.unhedged,
			reason        = EXCLUDED.reason,
			finished_at   = EXCLUDED.finished_at`,
		sess.ID, sess.Opportunity.ID, sess.Opportunity.PairID, sess.Opportunity.Label,
		string(sess.Opportunity.Strategy), string(sess.State),
		string(sess.Opportunity.Leg1.Venue), sess.Opportunity.Leg1.Instrument,
		sess.Opportunity.Leg1.Ask, sess.Leg1OrderID,
		string(sess.Opportunity.Leg2.Venue), sess.Opportunity.Leg2.Instrument,
		sess.Opportunity.Leg2.Ask, sess.Leg2OrderID,
		sess.Opportunity.Cost, sess.Opportunity.Profit, sess.Opportunity.ProfitRate,
		sess.Sizing.Notional, sess.Sizing.Shares, sess.Sizing.ExpectedProfit,
		sess.Unhedged, sess.Reason,
		sess.Opportunity.DetectedAt, sess.StartedAt, sess.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: archive session %s: %w", sess.ID, err)
	}

	s.logger.Debug("session archived",
		slog.String("session_id", sess.ID),
		slog.String("state", string(sess.State)))
	return nil
}

// ListRecent returns the most recently started sessions, newest first.
func (s *SessionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT
			id, opportunity_id, pair_id, pair_label, strategy, state,
			leg1_venue, leg1_instrument, leg1_ask, leg1_order_id,
			leg2_venue, leg2_instrument, leg2_ask, leg2_order_id,
			cost, profit, profit_rate,
			notional, shares, expected_profit,
			unhedged, reason,
			detected_at, started_at, finished_at
		FROM sessions
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ExecutionSession
	for rows.Next() {
		var (
			sess     domain.ExecutionSession
			strategy string
			state    string
			leg1V    string
			leg2V    string
		)
		err := rows.Scan(
			&sess.ID, &sess.Opportunity.ID, &sess.Opportunity.PairID, &sess.Opportunity.Label,
			&strategy, &state,
			&leg1V, &sess.Opportunity.Leg1.Instrument,
			&sess.Opportunity.Leg1.Ask, &sess.Leg1OrderID,
			&leg2V, &sess.Opportunity.Leg2.Instrument,
			&sess.Opportunity.Leg2.Ask, &sess.Leg2OrderID,
			&sess.Opportunity.Cost, &sess.Opportunity.Profit, &sess.Opportunity.ProfitRate,
			&sess.Sizing.Notional, &sess.Sizing.Shares, &sess.Sizing.ExpectedProfit,
			&sess.Unhedged, &sess.Reason,
			&sess.Opportunity.DetectedAt, &sess.StartedAt, &sess.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan session: %w", err)
		}
		sess.Opportunity.Strategy = domain.ArbStrategy(strategy)
		sess.State = domain.SessionState(state)
		sess.Opportunity.Leg1.Venue = domain.Venue(leg1V)
		sess.Opportunity.Leg2.Venue = domain.Venue(leg2V)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate sessions: %w", err)
	}
	return sessions, nil
}
