package gateway

import (
	"context"
	"math/big"

	"github.com/interop-labs/gateway-go/pkg/types"
)

// DestinationApp is the collaborator contract every destination application
// exposes. The gateway calls these during delivery, after the engine lock
// is released, so a callback is free to call back into the gateway: replay
// gating and the committed approvals are already visible to it. The gateway
// tolerates callback failure: a returned error or panic is absorbed at the
// isolation boundary and never unwinds the enclosing batch.
type DestinationApp interface {
	Execute(ctx context.Context, id types.CommandID, sourceChain, sourceAddress string, payload []byte) error
	ExecuteWithToken(ctx context.Context, id types.CommandID, sourceChain, sourceAddress string, payload []byte, symbol string, amount *big.Int) error
}

// attemptDelivery runs one captured delivery callback through the isolation
// boundary. The outcome records whether delivery was attempted, and the
// absorbed error if it failed; the approval committed before this call is
// unaffected either way. Must be called without the engine lock held.
func (g *Gateway) attemptDelivery(outcome *types.DeliveryOutcome, d *pendingDelivery) {
	outcome.Attempted = true
	if err := isolate(d.app, d.call); err != nil {
		outcome.Err = err.Error()
		g.logger.Sugar().Warnw("Delivery callback absorbed",
			"contract", d.addr.Hex(),
			"error", err,
		)
		return
	}
	outcome.Delivered = true
}

// isolate invokes the callback in a frame whose panic is locally
// recoverable. This is the boundary that keeps a destination application's
// failure from aborting the batch; the recover must live exactly here.
func isolate(app DestinationApp, call func(DestinationApp) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.Deliveryf("destination application panicked: %v", r)
		}
	}()
	if callErr := call(app); callErr != nil {
		return types.Deliveryf("%v", callErr)
	}
	return nil
}
