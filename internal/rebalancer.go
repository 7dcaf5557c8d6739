package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/config"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/events"
	"github.com/vadiminshakov/rebalancer/internal/metrics"
	"github.com/vadiminshakov/rebalancer/internal/services/executor"
	"github.com/vadiminshakov/rebalancer/internal/services/rebalance"
	"github.com/vadiminshakov/rebalancer/internal/services/snapshot"
	"github.com/vadiminshakov/rebalancer/internal/services/targets"
	"github.com/vadiminshakov/rebalancer/internal/services/trader"
	"github.com/vadiminshakov/rebalancer/internal/storage/actions"
	"github.com/vadiminshakov/rebalancer/internal/storage/balancesnapshots"
	"github.com/vadiminshakov/rebalancer/pkg/retrier"
)

const (
	outcomeDryRun   = "dry_run"
	outcomeRejected = "rejected"
	outcomeError    = "error"

	runsBuffer = 16
)

type snapshotSource interface {
	Snapshot(ctx context.Context) (domain.PortfolioSnapshot, error)
}

type targetSupplier interface {
	Targets(ctx context.Context) ([]domain.TargetAllocation, error)
}

type planExecutor interface {
	Execute(ctx context.Context, runID, reason string, instructions []domain.TradeInstruction) (domain.ExecutionReport, error)
}

// RunResult is everything a single rebalancing run produced.
type RunResult struct {
	RunID    string
	DryRun   bool
	Snapshot domain.PortfolioSnapshot
	Plan     *rebalance.Plan
	Report   domain.ExecutionReport
}

// Rebalancer drives rebalancing runs: snapshot, targets, plan, execute, record.
type Rebalancer struct {
	Config config.Config

	logger    *zap.Logger
	source    snapshotSource
	targets   targetSupplier
	planner   *rebalance.Planner
	executor  planExecutor
	journal   *executor.Journal
	actions   *actions.WALStore
	snapshots *balancesnapshots.WALStore
	runs      *events.RunBroadcaster
	retrier   *retrier.Retrier

	newRunID func() string
	now      func() time.Time
}

// NewRebalancer wires a rebalancer for the platform client (binance, bybit or simulate).
func NewRebalancer(conf config.Config, client any, logger *zap.Logger) (_ *Rebalancer, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("platform", conf.Platform))

	provider, err := newServiceProvider(client, conf, logger)
	if err != nil {
		return nil, err
	}
	prices, err := provider.Pricer()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pricer")
	}
	wallet, err := provider.Wallet()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create wallet")
	}
	swapper, err := provider.Swapper()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create swapper")
	}

	source, err := snapshot.NewSource(wallet, prices, snapshot.Config{
		Numeraire: conf.Numeraire,
		Universe:  conf.Universe,
		Decimals:  conf.Decimals,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create snapshot source")
	}

	planner, err := rebalance.NewPlanner(conf.PlannerConfig())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create planner")
	}

	r := &Rebalancer{
		Config:   conf,
		logger:   logger,
		source:   source,
		targets:  newTargetSupplier(conf),
		planner:  planner,
		runs:     events.NewRunBroadcaster(runsBuffer),
		newRunID: func() string { return uuid.NewString() },
		now:      time.Now,
	}
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	r.retrier = retrier.New(
		retrier.WithMaxRetries(3),
		retrier.WithInitialInterval(time.Second),
		retrier.WithOnRetry(func(attempt int, err error) {
			logger.Warn("snapshot fetch failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)

	if r.journal, err = executor.OpenJournal(filepath.Join(conf.DataDir, "trades")); err != nil {
		return nil, errors.Wrap(err, "failed to open trade journal")
	}
	if r.actions, err = actions.NewWALStore(filepath.Join(conf.DataDir, "actions")); err != nil {
		return nil, errors.Wrap(err, "failed to open action store")
	}
	if r.snapshots, err = balancesnapshots.NewWALStore(filepath.Join(conf.DataDir, "snapshots")); err != nil {
		return nil, errors.Wrap(err, "failed to open snapshot store")
	}

	guarded := trader.NewGuardedSwapper(conf.Platform, swapper, trader.GuardSettings{
		RequestsPerSecond: conf.Guard.RequestsPerSecond,
		Burst:             1,
		FailureThreshold:  conf.Guard.FailureThreshold,
		OpenTimeout:       conf.Guard.OpenTimeout,
	}, logger)

	opts := []executor.Option{executor.WithAuditSink(r.actions)}
	if conf.ClampToLiveBalance {
		opts = append(opts, executor.WithBalanceClamp(wallet))
	}
	if r.executor, err = executor.NewExecutor(logger, guarded, r.journal, opts...); err != nil {
		return nil, errors.Wrap(err, "failed to create executor")
	}

	return r, nil
}

func newTargetSupplier(conf config.Config) targetSupplier {
	if conf.TargetsFile != "" {
		return targets.NewFileSupplier(conf.TargetsFile)
	}
	return targets.NewStaticSupplier(conf.Targets)
}

// Snapshots returns the snapshot history store.
func (r *Rebalancer) Snapshots() *balancesnapshots.WALStore {
	return r.snapshots
}

// Actions returns the audit trail store.
func (r *Rebalancer) Actions() *actions.WALStore {
	return r.actions
}

// Runs returns the broadcaster of run summaries.
func (r *Rebalancer) Runs() *events.RunBroadcaster {
	return r.runs
}

// PendingIntents lists trade intents left unresolved by interrupted runs.
func (r *Rebalancer) PendingIntents() []executor.TradeIntent {
	if r.journal == nil {
		return nil
	}
	return r.journal.PendingIntents()
}

// Close releases the stores.
func (r *Rebalancer) Close() error {
	var err error
	if r.journal != nil {
		err = multierr.Append(err, r.journal.Close())
	}
	if r.actions != nil {
		err = multierr.Append(err, r.actions.Close())
	}
	if r.snapshots != nil {
		err = multierr.Append(err, r.snapshots.Close())
	}
	return err
}

// Run executes a rebalancing run immediately and then every RebalanceInterval until ctx is done.
// Failed runs are logged and retried at the next tick.
func (r *Rebalancer) Run(ctx context.Context) error {
	r.runAndLog(ctx)

	ticker := time.NewTicker(r.Config.RebalanceInterval)
	defer ticker.Stop()

	r.logger.Info("Starting rebalancing loop", zap.Duration("interval", r.Config.RebalanceInterval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Context done, stopping rebalancing loop.")
			return ctx.Err()
		case <-ticker.C:
			r.runAndLog(ctx)
		}
	}
}

func (r *Rebalancer) runAndLog(ctx context.Context) {
	result, err := r.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("Rebalancing run failed", zap.String("run_id", result.RunID), zap.Error(err))
	}
}

// RunOnce performs a single rebalancing run. The result is never nil.
// Plan rejections and swap failures are returned as errors together with what was done so far.
func (r *Rebalancer) RunOnce(ctx context.Context) (*RunResult, error) {
	started := r.now()
	result := &RunResult{RunID: r.newRunID(), DryRun: r.Config.DryRun}
	logger := r.logger.With(zap.String("run_id", result.RunID))

	snap, err := retrier.DoWithData(r.retrier, ctx, r.source.Snapshot)
	if err != nil {
		err = errors.Wrap(err, "failed to take portfolio snapshot")
		r.finish(result, started, outcomeError, err)
		return result, err
	}
	result.Snapshot = snap
	r.observeSnapshot(result.RunID, snap, logger)

	allocation, err := r.targets.Targets(ctx)
	if err != nil {
		err = errors.Wrap(err, "failed to get target allocation")
		r.finish(result, started, outcomeError, err)
		return result, err
	}

	plan, err := r.planner.PlanRebalance(snap, allocation)
	if err != nil {
		metrics.PlanErrors.WithLabelValues(planErrorReason(err)).Inc()
		err = errors.Wrap(err, "rebalance plan rejected")
		r.finish(result, started, outcomeRejected, err)
		return result, err
	}
	result.Plan = plan
	for _, instr := range plan.Instructions {
		metrics.PlannedTrades.WithLabelValues(instr.Kind.String()).Inc()
	}
	r.reportSkipped(plan, snap, logger)

	if r.Config.DryRun {
		for i, instr := range plan.Instructions {
			logger.Info("dry run instruction", zap.Int("step", i+1), zap.Stringer("instruction", instr))
		}
		r.finish(result, started, outcomeDryRun, nil)
		return result, nil
	}

	report, err := r.executor.Execute(ctx, result.RunID, planReason(plan), plan.Instructions)
	result.Report = report
	r.finish(result, started, report.Outcome.String(), err)
	if err != nil {
		return result, err
	}

	logger.Info("Rebalancing run finished",
		zap.String("outcome", report.Outcome.String()),
		zap.Int("swaps", len(report.Completed)))
	return result, nil
}

// reportSkipped surfaces legs that will not trade. A funding leg into a coin the wallet does not hold
// sizes to zero under balance sizing, so that coin is never bought until sizing changes.
func (r *Rebalancer) reportSkipped(plan *rebalance.Plan, snap domain.PortfolioSnapshot, logger *zap.Logger) {
	for _, leg := range plan.Skipped {
		metrics.SkippedLegs.WithLabelValues(leg.Kind.String(), leg.To).Inc()

		fields := []zap.Field{
			zap.String("from", leg.From),
			zap.String("to", leg.To),
			zap.String("kind", leg.Kind.String()),
			zap.String("points", leg.Points.String()),
		}
		if asset, ok := snap.Asset(leg.To); leg.Kind == domain.TradeKindFunding &&
			r.Config.Sizing == rebalance.SizingBalance && (!ok || asset.Balance.IsZero()) {
			logger.Warn("target coin is not held and cannot be funded with balance sizing, use portfolio sizing to buy it", fields...)
			continue
		}
		logger.Warn("leg below asset precision, skipped", fields...)
	}
}

func (r *Rebalancer) observeSnapshot(runID string, snap domain.PortfolioSnapshot, logger *zap.Logger) {
	if err := r.snapshots.Save(runID, snap); err != nil {
		logger.Warn("failed to save portfolio snapshot", zap.Error(err))
	}

	metrics.PortfolioValue.Set(snap.TotalBalanceUSD.InexactFloat64())
	for _, asset := range snap.Assets {
		metrics.AssetWeight.WithLabelValues(asset.CoinType).Set(asset.Percentage.InexactFloat64())
	}
	logger.Info("portfolio snapshot taken",
		zap.String("total", snap.TotalBalanceUSD.String()),
		zap.Int("assets", len(snap.Assets)))
}

func (r *Rebalancer) finish(result *RunResult, started time.Time, outcome string, runErr error) {
	metrics.Runs.WithLabelValues(outcome).Inc()
	metrics.RunDuration.Observe(r.now().Sub(started).Seconds())

	summary := events.RunSummary{
		Timestamp:    r.now().UTC(),
		RunID:        result.RunID,
		Outcome:      outcome,
		DryRun:       result.DryRun,
		Completed:    len(result.Report.Completed),
		NotAttempted: len(result.Report.NotAttempted),
	}
	if !result.Snapshot.TotalBalanceUSD.IsZero() {
		summary.TotalValue = result.Snapshot.TotalBalanceUSD.String()
	}
	if result.Plan != nil {
		summary.Planned = len(result.Plan.Instructions)
	}
	metrics.LastRunFailed.Set(0)
	if runErr != nil {
		summary.Error = runErr.Error()
		metrics.LastRunFailed.Set(1)
	}
	r.runs.Publish(summary)
}

func planErrorReason(err error) string {
	switch {
	case errors.Is(err, rebalance.ErrAllocationMismatch):
		return "allocation_mismatch"
	case errors.Is(err, rebalance.ErrNormalizationAnomaly):
		return "normalization_anomaly"
	case errors.Is(err, rebalance.ErrInsufficientNumeraire):
		return "insufficient_numeraire"
	default:
		return "other"
	}
}

// planReason explains a plan for the audit trail: normalized targets and the drifts acted upon.
func planReason(plan *rebalance.Plan) string {
	normalized := make([]string, 0, len(plan.Normalized))
	for _, t := range plan.Normalized {
		normalized = append(normalized, t.String())
	}
	reason := "targets " + strings.Join(normalized, ", ")
	if len(plan.Adjustments) == 0 {
		return reason + "; within dust threshold"
	}

	drifts := make([]string, 0, len(plan.Adjustments))
	for _, a := range plan.Adjustments {
		drifts = append(drifts, fmt.Sprintf("%s %s", a.CoinType, a.DeltaPercentage.StringFixed(2)))
	}
	return reason + "; drift " + strings.Join(drifts, ", ")
}
