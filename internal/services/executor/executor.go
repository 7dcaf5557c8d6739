// Package executor runs planned trade instructions one by one against a swap collaborator.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/metrics"
)

type swapper interface {
	Swap(ctx context.Context, instr domain.TradeInstruction, clientOrderID string) (domain.SwapReceipt, error)
}

type balanceReader interface {
	GetBalance(ctx context.Context, coin string) (decimal.Decimal, error)
}

type auditSink interface {
	RecordAction(description, reason string) error
}

// Executor executes plans strictly sequentially.
// Amounts come from the planning snapshot and are not refreshed between swaps;
// with a balance reader and clamping enabled each amount is capped by the live balance.
type Executor struct {
	logger   *zap.Logger
	swapper  swapper
	balances balanceReader
	journal  *Journal
	audit    auditSink
	clamp    bool
	now      func() time.Time
}

// Option configures the Executor.
type Option func(*Executor)

// WithBalanceClamp caps each instruction amount at the live balance read from r.
func WithBalanceClamp(r balanceReader) Option {
	return func(e *Executor) {
		e.balances = r
		e.clamp = r != nil
	}
}

// WithAuditSink records a summary of every executed plan.
func WithAuditSink(a auditSink) Option {
	return func(e *Executor) {
		e.audit = a
	}
}

// NewExecutor creates an executor. The journal is required.
func NewExecutor(logger *zap.Logger, s swapper, journal *Journal, opts ...Option) (*Executor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s == nil {
		return nil, errors.New("swapper is required")
	}
	if journal == nil {
		return nil, errors.New("trade journal is required")
	}

	e := &Executor{logger: logger, swapper: s, journal: journal, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}

	if pending := journal.PendingIntents(); len(pending) > 0 {
		metrics.PendingIntents.Set(float64(len(pending)))
		for _, intent := range pending {
			logger.Warn("trade intent left pending by a previous run, reconcile manually",
				zap.String("id", intent.ID),
				zap.String("run_id", intent.RunID),
				zap.String("from", intent.FromCoin),
				zap.String("to", intent.ToCoin),
				zap.String("amount", intent.Amount.String()))
		}
	}

	return e, nil
}

// Execute runs instructions in order, each awaited before the next.
// The first failure stops the run and is returned as *SwapExecutionError together with the report.
func (e *Executor) Execute(ctx context.Context, runID, reason string, instructions []domain.TradeInstruction) (domain.ExecutionReport, error) {
	report := domain.ExecutionReport{RunID: runID, Outcome: domain.OutcomeNoop}
	if len(instructions) == 0 {
		e.record(report, reason)
		return report, nil
	}

	for i, planned := range instructions {
		if err := ctx.Err(); err != nil {
			return e.fail(report, instructions, i, planned, err, reason, false)
		}

		instr, err := e.clampToLive(ctx, planned)
		if err != nil {
			return e.fail(report, instructions, i, planned, err, reason, false)
		}

		intent, err := e.journal.Prepare(runID, instr, e.now().UTC())
		if err != nil {
			return e.fail(report, instructions, i, instr, errors.Wrap(err, "journal trade intent"), reason, false)
		}

		e.logger.Info("executing swap",
			zap.String("run_id", runID),
			zap.Int("step", i+1),
			zap.Int("of", len(instructions)),
			zap.Stringer("instruction", instr),
			zap.String("client_order_id", intent.ID))

		started := time.Now()
		receipt, swapErr := e.swapper.Swap(ctx, instr, intent.ID)
		metrics.SwapDuration.Observe(time.Since(started).Seconds())

		if swapErr != nil {
			if err := e.journal.MarkFailed(intent, swapErr); err != nil {
				e.logger.Error("failed to journal failed swap", zap.String("id", intent.ID), zap.Error(err))
			}
			metrics.Swaps.WithLabelValues(instr.Kind.String(), "failed").Inc()
			return e.fail(report, instructions, i, instr, swapErr, reason, true)
		}

		if err := e.journal.MarkDone(intent, receipt); err != nil {
			e.logger.Error("failed to journal completed swap", zap.String("id", intent.ID), zap.Error(err))
		}
		metrics.Swaps.WithLabelValues(instr.Kind.String(), "done").Inc()

		report.Completed = append(report.Completed, domain.ExecutedTrade{
			Instruction: instr,
			Receipt:     receipt,
			ExecutedAt:  e.now().UTC(),
		})
	}

	report.Outcome = domain.OutcomeCompleted
	e.record(report, reason)
	return report, nil
}

// PendingIntents exposes intents left pending by interrupted runs.
func (e *Executor) PendingIntents() []TradeIntent {
	return e.journal.PendingIntents()
}

func (e *Executor) clampToLive(ctx context.Context, instr domain.TradeInstruction) (domain.TradeInstruction, error) {
	if !e.clamp {
		return instr, nil
	}

	live, err := e.balances.GetBalance(ctx, instr.FromCoin)
	if err != nil {
		return instr, errors.Wrapf(err, "read live %s balance", instr.FromCoin)
	}
	if live.GreaterThanOrEqual(instr.InputAmount) {
		return instr, nil
	}
	if !live.IsPositive() {
		return instr, errors.Errorf("no live %s balance left", instr.FromCoin)
	}

	e.logger.Warn("clamping swap amount to live balance",
		zap.String("coin", instr.FromCoin),
		zap.String("planned", instr.InputAmount.String()),
		zap.String("live", live.String()))
	instr.InputAmount = live
	return instr, nil
}

// fail finalizes the report for a run stopped at instruction i.
// A run cancelled before instruction i was sent leaves it among the not attempted ones.
func (e *Executor) fail(report domain.ExecutionReport, instructions []domain.TradeInstruction, i int,
	instr domain.TradeInstruction, cause error, reason string, attempted bool) (domain.ExecutionReport, error) {
	cancelled := errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded)

	rest := i + 1
	if cancelled && !attempted {
		rest = i
	} else {
		report.Failed = &domain.FailedTrade{Instruction: instr, Error: cause.Error()}
	}
	if rest < len(instructions) {
		report.NotAttempted = append([]domain.TradeInstruction(nil), instructions[rest:]...)
	}

	switch {
	case cancelled:
		report.Outcome = domain.OutcomeAborted
	case len(report.Completed) > 0:
		report.Outcome = domain.OutcomePartial
	default:
		report.Outcome = domain.OutcomeFailed
	}

	e.logger.Error("rebalance execution stopped",
		zap.String("run_id", report.RunID),
		zap.String("outcome", report.Outcome.String()),
		zap.Int("completed", len(report.Completed)),
		zap.Int("not_attempted", len(report.NotAttempted)),
		zap.Error(cause))

	e.record(report, fmt.Sprintf("%s; stopped: %v", reason, cause))
	return report, &SwapExecutionError{Report: report, Instruction: instr, Err: cause}
}

func (e *Executor) record(report domain.ExecutionReport, reason string) {
	if e.audit == nil {
		return
	}
	if err := e.audit.RecordAction(Describe(report), reason); err != nil {
		e.logger.Error("failed to record action", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

// Describe renders a human-readable summary of an execution report.
func Describe(report domain.ExecutionReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rebalance %s: %s", report.RunID, report.Outcome)
	for _, t := range report.Completed {
		fmt.Fprintf(&b, "; swapped %s %s -> %s", t.Instruction.InputAmount.String(), t.Instruction.FromCoin, t.Instruction.ToCoin)
	}
	if report.Failed != nil {
		fmt.Fprintf(&b, "; failed %s %s -> %s", report.Failed.Instruction.InputAmount.String(),
			report.Failed.Instruction.FromCoin, report.Failed.Instruction.ToCoin)
	}
	if n := len(report.NotAttempted); n > 0 {
		fmt.Fprintf(&b, "; %d not attempted", n)
	}
	return b.String()
}
