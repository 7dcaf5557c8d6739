package executor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// ErrSwapExecution matches every SwapExecutionError.
var ErrSwapExecution = errors.New("swap execution failed")

// SwapExecutionError is returned when a swap fails mid-plan.
// Report lists completed, failed and never-attempted instructions; completed swaps are not rolled back.
type SwapExecutionError struct {
	Report      domain.ExecutionReport
	Instruction domain.TradeInstruction
	Err         error
}

func (e *SwapExecutionError) Error() string {
	return fmt.Sprintf("%s: %s (%s, %d completed, %d not attempted): %v",
		ErrSwapExecution.Error(), e.Instruction.String(), e.Report.Outcome,
		len(e.Report.Completed), len(e.Report.NotAttempted), e.Err)
}

// Unwrap exposes both the sentinel and the swap cause.
func (e *SwapExecutionError) Unwrap() []error {
	return []error{ErrSwapExecution, e.Err}
}
