package exchange

import (
	"time"

	"github.com/rickgao/asset-market/internal/model"
)

// Operation names passed to Recorder.
const (
	OpMint     = "mint"
	OpTransfer = "transfer"
	OpApprove  = "approve"
	OpList     = "list"
	OpBuy      = "buy"
	OpCancel   = "cancel"
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
)

// Publisher receives committed events in sequence order. Publish is called
// with the exchange lock held and must not block or call back into the exchange.
type Publisher interface {
	Publish(ev model.Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev model.Event)

func (f PublisherFunc) Publish(ev model.Event) { f(ev) }

// Recorder observes the outcome of every mutating operation.
type Recorder interface {
	ObserveOp(op string, err error, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOp(string, error, time.Duration) {}
