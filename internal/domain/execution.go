package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionOutcome final state of a plan execution.
type ExecutionOutcome string

const (
	// OutcomeNoop plan had no instructions.
	OutcomeNoop ExecutionOutcome = "noop"
	// OutcomeCompleted every instruction succeeded.
	OutcomeCompleted ExecutionOutcome = "completed"
	// OutcomePartial at least one instruction succeeded before a failure; the portfolio is partially rebalanced.
	OutcomePartial ExecutionOutcome = "partial"
	// OutcomeFailed the first instruction failed, nothing was executed.
	OutcomeFailed ExecutionOutcome = "failed"
	// OutcomeAborted execution stopped because the context was cancelled.
	OutcomeAborted ExecutionOutcome = "aborted"
)

// String returns the string representation.
func (o ExecutionOutcome) String() string {
	return string(o)
}

// SwapReceipt swap collaborator response for a successful trade.
type SwapReceipt struct {
	TxReference  string          `json:"txReference"`
	FilledAmount decimal.Decimal `json:"filledAmount"`
}

// ExecutedTrade instruction that was executed successfully.
type ExecutedTrade struct {
	Instruction TradeInstruction `json:"instruction"`
	Receipt     SwapReceipt      `json:"receipt"`
	ExecutedAt  time.Time        `json:"executedAt"`
}

// FailedTrade instruction whose execution failed.
type FailedTrade struct {
	Instruction TradeInstruction `json:"instruction"`
	Error       string           `json:"error"`
}

// ExecutionReport describes which instructions of a plan were executed.
type ExecutionReport struct {
	RunID        string             `json:"runId"`
	Outcome      ExecutionOutcome   `json:"outcome"`
	Completed    []ExecutedTrade    `json:"completed,omitempty"`
	Failed       *FailedTrade       `json:"failed,omitempty"`
	NotAttempted []TradeInstruction `json:"notAttempted,omitempty"`
}

// ActionRecord audit entry describing an executed plan.
type ActionRecord struct {
	Timestamp   time.Time `json:"ts"`
	Description string    `json:"description"`
	Reason      string    `json:"reason"`
}

// ActionRecordIndexed bundles an action record with its WAL index.
type ActionRecordIndexed struct {
	Index  uint64
	Action ActionRecord
}
