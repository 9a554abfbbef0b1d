package sheets

import (
	"context"

	"spendboard/internal/amqp"
)

// ActivityWriter records transaction events in a spreadsheet.
type ActivityWriter interface {
	AppendActivity(ctx context.Context, ev *amqp.TransactionEvent) (rowRef string, err error)
}
