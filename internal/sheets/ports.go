package sheets

import (
	"context"

	"github.com/netzema/fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter mirrors classified transactions to an external sheet.
	TransactionWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)
