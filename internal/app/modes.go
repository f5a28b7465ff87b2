package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/hedgebot/internal/detector"
	"github.com/alanyoungcy/hedgebot/internal/domain"
	"github.com/alanyoungcy/hedgebot/internal/executor"
	"github.com/alanyoungcy/hedgebot/internal/feed"
	"github.com/alanyoungcy/hedgebot/internal/registry"
	"github.com/alanyoungcy/hedgebot/internal/timing"
)

// opportunityCooldown throttles repeated announcements for the same pair. A
// persistent mispricing would otherwise fire an event on every scan tick.
const opportunityCooldown = 30 * time.Second

// TradeMode runs the full engine: both venue feeds, the detection loop, and
// the execution coordinator.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Float64("notional", a.cfg.Executor.Notional),
		slog.Bool("dry_run", a.cfg.Executor.DryRun),
	)

	coord := executor.New(executor.Config{
		Notional:     a.cfg.Executor.Notional,
		PollInterval: a.cfg.Executor.PollInterval.Duration,
		MaxFillWait:  a.cfg.Executor.MaxFillWait.Duration,
	}, deps.Orders, deps.Tracker, deps.Bus, deps.Archive, a.logger)

	return a.runEngine(ctx, deps, coord)
}

// recentSessionLimit bounds the archive tail reported at monitor startup.
const recentSessionLimit = 10

// MonitorMode runs feeds and detection only. Opportunities are logged and
// published but no orders are placed. Before the feeds warm up it reports
// what a previous run left behind: the archive tail and the last mirrored
// quotes.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	a.reportArchiveTail(ctx, deps.Archive)
	a.reportMirroredQuotes(ctx, deps)
	return a.runEngine(ctx, deps, nil)
}

// reportArchiveTail logs the most recent archived sessions so an operator
// starting in monitor mode sees how the engine last fared.
func (a *App) reportArchiveTail(ctx context.Context, archive domain.SessionStore) {
	if archive == nil {
		return
	}
	sessions, err := archive.ListRecent(ctx, recentSessionLimit)
	if err != nil {
		a.logger.WarnContext(ctx, "archive query failed", slog.String("error", err.Error()))
		return
	}
	for _, s := range sessions {
		a.logger.InfoContext(ctx, "archived session",
			slog.String("session_id", s.ID),
			slog.String("pair_id", s.Opportunity.PairID),
			slog.String("state", string(s.State)),
			slog.Bool("unhedged", s.Unhedged),
			slog.Time("started_at", s.StartedAt),
		)
	}
}

// reportMirroredQuotes logs the last mirrored quote of every subscribed
// instrument, the market state as of the previous run's final write.
func (a *App) reportMirroredQuotes(ctx context.Context, deps *Dependencies) {
	if deps.Mirror == nil {
		return
	}
	for venue, instruments := range registry.Instruments(deps.Pairs) {
		for _, instrument := range instruments {
			q, err := deps.Mirror.GetQuote(ctx, venue, instrument)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				a.logger.WarnContext(ctx, "quote mirror read failed",
					slog.String("venue", string(venue)),
					slog.String("instrument", instrument),
					slog.String("error", err.Error()),
				)
				continue
			}
			a.logger.InfoContext(ctx, "last mirrored quote",
				slog.String("venue", string(venue)),
				slog.String("instrument", instrument),
				slog.Float64("bid", q.BestBid),
				slog.Float64("ask", q.BestAsk),
				slog.Time("as_of", q.AsOf),
			)
		}
	}
}

// runEngine starts one feed pump per venue plus the detection loop and blocks
// until the context is cancelled or a wiring-level error occurs. A nil coord
// disables execution.
func (a *App) runEngine(ctx context.Context, deps *Dependencies, coord *executor.Coordinator) error {
	g, ctx := errgroup.WithContext(ctx)

	endpoints := map[domain.Venue]string{
		domain.VenueA: a.cfg.Feed.VenueAWsURL,
		domain.VenueB: a.cfg.Feed.VenueBWsURL,
	}

	for venue, instruments := range registry.Instruments(deps.Pairs) {
		venue := venue
		conn := feed.NewConn(feed.ConnConfig{
			Venue:                venue,
			Endpoint:             endpoints[venue],
			Instruments:          instruments,
			HeartbeatInterval:    a.cfg.Feed.HeartbeatInterval.Duration,
			HeartbeatFailLimit:   a.cfg.Feed.HeartbeatFailLimit,
			MaxReconnectAttempts: a.cfg.Feed.MaxReconnectAttempts,
			BaseReconnectDelay:   a.cfg.Feed.BaseReconnectDelay.Duration,
		}, a.logger)

		if err := conn.Open(ctx); err != nil {
			return fmt.Errorf("app: open %s feed: %w", venue, err)
		}
		g.Go(func() error {
			return a.pumpFeed(ctx, conn, venue, deps)
		})
	}

	g.Go(func() error {
		return a.detectLoop(ctx, g, deps, coord)
	})

	err := g.Wait()
	a.logTimingStats(deps.Tracker)
	return err
}

// pumpFeed is the single consumer of one venue connection. It applies every
// canonical event to the in-memory book and mirrors the refreshed quote. A
// fatal feed error is surfaced and ends this pump only; the other venue keeps
// streaming so its book stays current for when the feed operator intervenes.
func (a *App) pumpFeed(ctx context.Context, conn *feed.Conn, venue domain.Venue, deps *Dependencies) error {
	defer conn.Close()

	log := a.logger.With(slog.String("venue", string(venue)))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-conn.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case feed.KindSnapshot:
				deps.Book.ApplySnapshot(ev.Snapshot)
				a.mirrorQuote(ctx, deps, ev.Snapshot.Venue, ev.Snapshot.Instrument)
			case feed.KindDelta:
				deps.Book.ApplyDelta(ev.Delta)
				a.mirrorQuote(ctx, deps, ev.Delta.Venue, ev.Delta.Instrument)
			case feed.KindFatal:
				log.ErrorContext(ctx, "feed terminated", slog.String("error", ev.Err.Error()))
				if err := deps.Bus.Publish(ctx, domain.ProgressEvent{
					Type:   domain.EventFeedFatal,
					Detail: fmt.Sprintf("%s: %v", venue, ev.Err),
					At:     time.Now(),
				}); err != nil {
					log.WarnContext(ctx, "publish feed_fatal failed", slog.String("error", err.Error()))
				}
				return nil
			}
		}
	}
}

// mirrorQuote writes the current best quote through to the external mirror.
// Mirror failures are logged and swallowed; the in-memory path is the source
// of truth and must never stall on cache trouble.
func (a *App) mirrorQuote(ctx context.Context, deps *Dependencies, venue domain.Venue, instrument string) {
	if deps.Mirror == nil {
		return
	}
	q, ok := deps.Book.Best(venue, instrument)
	if !ok {
		return
	}
	if err := deps.Mirror.SetQuote(ctx, q); err != nil {
		a.logger.WarnContext(ctx, "quote mirror write failed",
			slog.String("venue", string(venue)),
			slog.String("instrument", instrument),
			slog.String("error", err.Error()),
		)
	}
}

// detectLoop scans the book on a fixed interval, announces findings, and in
// trade mode hands each fresh opportunity to the coordinator on its own
// goroutine so a slow fill never blocks detection.
func (a *App) detectLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies, coord *executor.Coordinator) error {
	det := detector.New(deps.Pairs, deps.Book, a.logger)

	var mu sync.Mutex
	lastAnnounced := make(map[string]time.Time)

	ticker := time.NewTicker(a.cfg.Executor.ScanInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for _, opp := range det.Scan() {
			opp := opp
			mu.Lock()
			announce := time.Since(lastAnnounced[opp.PairID]) >= opportunityCooldown
			if announce {
				lastAnnounced[opp.PairID] = time.Now()
			}
			mu.Unlock()

			if announce {
				if err := deps.Bus.Publish(ctx, domain.ProgressEvent{
					Type:   domain.EventOpportunity,
					PairID: opp.PairID,
					Detail: fmt.Sprintf("%s %s cost=%.4f profit=%.4f rate=%.2f%%", opp.Label, opp.Strategy, opp.Cost, opp.Profit, opp.ProfitRate),
					At:     opp.DetectedAt,
				}); err != nil {
					a.logger.WarnContext(ctx, "publish opportunity failed", slog.String("error", err.Error()))
				}
			}

			if coord == nil || coord.InFlight(opp.PairID) {
				continue
			}
			g.Go(func() error {
				if _, err := coord.Execute(ctx, opp); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
					a.logger.ErrorContext(ctx, "execution failed",
						slog.String("pair_id", opp.PairID),
						slog.String("error", err.Error()),
					)
				}
				return nil
			})
		}
	}
}

// logTimingStats dumps per-checkpoint latency statistics at shutdown.
func (a *App) logTimingStats(tracker *timing.Tracker) {
	checkpoints := []string{
		executor.CheckpointLeg1Submitted,
		executor.CheckpointLeg1Filled,
		executor.CheckpointLeg2Submitted,
		executor.CheckpointLeg2Filled,
		executor.CheckpointConfirmed,
	}
	for _, name := range checkpoints {
		stats, ok := tracker.StatsFor(name)
		if !ok {
			continue
		}
		a.logger.Info("checkpoint latency",
			slog.String("checkpoint", name),
			slog.Int("count", stats.Count),
			slog.Duration("mean", stats.Mean),
			slog.Duration("median", stats.Median),
			slog.Duration("min", stats.Min),
			slog.Duration("max", stats.Max),
			slog.Duration("stdev", stats.Stdev),
			slog.Duration("p95", stats.P95),
		)
	}
}
