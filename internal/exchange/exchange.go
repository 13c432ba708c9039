package exchange

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/asset-market/internal/ledger"
	"github.com/rickgao/asset-market/internal/marketplace"
	"github.com/rickgao/asset-market/internal/model"
	"github.com/rickgao/asset-market/internal/registry"
)

// Config describes what the exchange hosts.
type Config struct {
	// Identity the marketplace acts as; owners approve it before listing.
	MarketplaceIdentity model.Identity

	// Collection names, one registry each.
	Collections []string
}

// Exchange hosts the registries, the ledger and the marketplace and applies
// every mutating operation in a single total order.
type Exchange struct {
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	collections map[string]*registry.Registry
	names       []string
	ledger      *ledger.Ledger
	market      *marketplace.Marketplace

	// Serializes mutations and event emission. Reads through View share it.
	mu         sync.RWMutex
	seq        uint64
	publishers []Publisher
}

// Option configures an Exchange.
type Option func(*Exchange)

// WithPublisher adds a receiver for committed events.
func WithPublisher(p Publisher) Option {
	return func(e *Exchange) {
		e.publishers = append(e.publishers, p)
	}
}

// WithRecorder sets the operation recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Exchange) {
		e.recorder = r
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exchange) {
		e.now = now
	}
}

// New creates an exchange with one empty registry per configured collection.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Exchange, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MarketplaceIdentity.IsNull() {
		return nil, fmt.Errorf("marketplace identity is required")
	}
	if len(cfg.Collections) == 0 {
		return nil, fmt.Errorf("at least one collection is required")
	}

	l := ledger.New(logger.With("component", "ledger"))
	e := &Exchange{
		logger:      logger,
		recorder:    nopRecorder{},
		now:         time.Now,
		collections: make(map[string]*registry.Registry, len(cfg.Collections)),
		ledger:      l,
		market:      marketplace.New(cfg.MarketplaceIdentity, l, logger.With("component", "marketplace")),
	}

	for _, name := range cfg.Collections {
		if name == "" {
			return nil, fmt.Errorf("collection name must not be empty")
		}
		if _, dup := e.collections[name]; dup {
			return nil, fmt.Errorf("duplicate collection %q", name)
		}
		e.collections[name] = registry.New(name, logger.With("component", "registry", "collection", name))
		e.names = append(e.names, name)
	}
	sort.Strings(e.names)

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MarketplaceIdentity returns the identity owners approve before listing.
func (e *Exchange) MarketplaceIdentity() model.Identity {
	return e.market.Identity()
}

// Collections returns the hosted collection names, sorted.
func (e *Exchange) Collections() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Collection returns the registry for name.
func (e *Exchange) Collection(name string) (*registry.Registry, error) {
	reg, ok := e.collections[name]
	if !ok {
		return nil, model.Errorf(model.ErrUnknownCollection, "collection %q", name)
	}
	return reg, nil
}

// Marketplace exposes the listing book for read-only use.
func (e *Exchange) Marketplace() *marketplace.Marketplace {
	return e.market
}

// Ledger exposes balances for read-only use.
func (e *Exchange) Ledger() *ledger.Ledger {
	return e.ledger
}

// LastSeq returns the sequence number of the last emitted event.
func (e *Exchange) LastSeq() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

// View runs fn while no mutation is in progress, so everything fn reads
// from the registries, ledger and marketplace reflects the same committed
// state. fn must not call mutating Exchange methods or LastSeq.
func (e *Exchange) View(fn func() error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn()
}

// Mint creates a new asset in collection owned by to.
func (e *Exchange) Mint(caller model.Identity, collection string, to model.Identity, uri string) (model.AssetID, error) {
	start := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCaller(caller); err != nil {
		e.recorder.ObserveOp(OpMint, err, e.now().Sub(start))
		return 0, err
	}

	reg, err := e.Collection(collection)
	if err != nil {
		e.recorder.ObserveOp(OpMint, err, e.now().Sub(start))
		return 0, err
	}

	id, err := reg.Mint(to, uri)
	e.recorder.ObserveOp(OpMint, err, e.now().Sub(start))
	if err != nil {
		return 0, err
	}

	e.emitLocked(model.Event{
		Type:       model.EventMint,
		Collection: collection,
		AssetID:    id,
		Caller:     caller,
		To:         to,
		URI:        uri,
	})
	return id, nil
}

// Transfer moves an asset between identities on behalf of caller.
func (e *Exchange) Transfer(caller model.Identity, collection string, from, to model.Identity, id model.AssetID) error {
	start := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCaller(caller); err != nil {
		e.recorder.ObserveOp(OpTransfer, err, e.now().Sub(start))
		return err
	}

	err := e.withCollection(collection, func(reg *registry.Registry) error {
		return reg.Transfer(caller, from, to, id)
	})
	e.recorder.ObserveOp(OpTransfer, err, e.now().Sub(start))
	if err != nil {
		return err
	}

	e.emitLocked(model.Event{
		Type:       model.EventTransfer,
		Collection: collection,
		AssetID:    id,
		Caller:     caller,
		From:       from,
		To:         to,
	})
	return nil
}

// Approve sets or revokes (null operator) the approval for an asset.
func (e *Exchange) Approve(caller model.Identity, collection string, operator model.Identity, id model.AssetID) error {
	start := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCaller(caller); err != nil {
		e.recorder.ObserveOp(OpApprove, err, e.now().Sub(start))
		return err
	}

	err := e.withCollection(collection, func(reg *registry.Registry) error {
		return reg.Approve(caller, operator, id)
	})
	e.recorder.ObserveOp(OpApprove, err, e.now().Sub(start))
	if err != nil {
		return err
	}

	e.emitLocked(model.Event{
		Type:       model.EventApprove,
		Collection: collection,
		AssetID:    id,
		Caller:     caller,
		To:         operator,
	})
	return nil
}

// List offers an asset for sale at price.
func (e *Exchange) List(caller model.Identity, collection string, id model.AssetID, price int64) (model.ListingID, error) {
	start := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCaller(caller); err != nil {
		e.recorder.ObserveOp(OpList, err, e.now().Sub(start))
		return model.NoListing, err
	}

	var listingID model.ListingID
	err := e.withCollection(collection, func(reg *registry.Registry) error {
		var err error
		listingID, err = e.market.List(caller, reg, id, price)
		return err
	})
	e.recorder.ObserveOp(OpList, err, e.now().Sub(start))
	if err != nil {
		return model.NoListing, err
	}

	e.emitLocked(model.Event{
		Type:       model.EventList,
		Collection: collection,
		AssetID:    id,
		ListingID:  listingID,
		Caller:     caller,
		From:       caller,
		Amount:     price,
	})
	return listingID, nil
}

// Buy executes the atomic swap for listingID.
func (e *Exchange) Buy(caller model.Identity, listingID model.ListingID, payment int64) (model.Listing, error) {
	start := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCaller(caller); err != nil {
		e.recorder.ObserveOp(OpBuy, err, e.now().Sub(start))
		return model.Listing{}, err
	}

	l, err := e.market.Buy(caller, listingID, payment)
	e.recorder.ObserveOp(OpBuy, err, e.now().Sub(start))
	if err != nil {
		return model.Listing{}, err
	}

	e.emitLocked(model.Event{
		Type:       model.EventSale,
		Collection: l.Collection,
		AssetID:    l.AssetID,
		ListingID:  l.ID,
		Caller:     caller,
		From:       l.Seller,
		To:         caller,
		Amount:     l.Price,
	})
	return l, nil
}

// Cancel withdraws an active listing.
func (e *Exchange) Cancel(caller model.Identity, listingID model.ListingID) (model.Listing, error) {
	start := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCaller(caller); err != nil {
		e.recorder.ObserveOp(OpCancel, err, e.now().Sub(start))
		return model.Listing{}, err
	}

	l, err := e.market.Cancel(caller, listingID)
	e.recorder.ObserveOp(OpCancel, err, e.now().Sub(start))
	if err != nil {
		return model.Listing{}, err
	}

	e.emitLocked(model.Event{
		Type:       model.EventCancel,
		Collection: l.Collection,
		AssetID:    l.AssetID,
		ListingID:  l.ID,
		Caller:     caller,
		From:       l.Seller,
	})
	return l, nil
}

// Deposit credits funds to account.
func (e *Exchange) Deposit(caller, account model.Identity, amount int64) error {
	start := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCaller(caller); err != nil {
		e.recorder.ObserveOp(OpDeposit, err, e.now().Sub(start))
		return err
	}

	err := e.ledger.Deposit(account, amount)
	e.recorder.ObserveOp(OpDeposit, err, e.now().Sub(start))
	if err != nil {
		return err
	}

	e.emitLocked(model.Event{
		Type:   model.EventDeposit,
		Caller: caller,
		To:     account,
		Amount: amount,
	})
	return nil
}

// Withdraw debits funds from the caller's own account.
func (e *Exchange) Withdraw(caller model.Identity, amount int64) error {
	start := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCaller(caller); err != nil {
		e.recorder.ObserveOp(OpWithdraw, err, e.now().Sub(start))
		return err
	}

	err := e.ledger.Withdraw(caller, amount)
	e.recorder.ObserveOp(OpWithdraw, err, e.now().Sub(start))
	if err != nil {
		return err
	}

	e.emitLocked(model.Event{
		Type:   model.EventWithdraw,
		Caller: caller,
		From:   caller,
		Amount: amount,
	})
	return nil
}

// checkCaller rejects requests made in the marketplace's own name. The
// marketplace only ever acts through Buy.
func (e *Exchange) checkCaller(caller model.Identity) error {
	if caller == e.market.Identity() {
		return model.Errorf(model.ErrNotOwnerOrAuthorized, "%s may not act as a caller", caller)
	}
	return nil
}

func (e *Exchange) withCollection(name string, fn func(*registry.Registry) error) error {
	reg, err := e.Collection(name)
	if err != nil {
		return err
	}
	return fn(reg)
}

// emitLocked stamps ev and hands it to every publisher (caller must hold e.mu).
func (e *Exchange) emitLocked(ev model.Event) {
	e.seq++
	ev.ID = uuid.New()
	ev.Seq = e.seq
	ev.OccurredAt = e.now().UnixMicro()

	e.logger.Info("event committed",
		"seq", ev.Seq,
		"type", ev.Type,
		"collection", ev.Collection,
		"asset_id", ev.AssetID,
		"listing_id", ev.ListingID,
		"caller", ev.Caller,
	)

	for _, p := range e.publishers {
		p.Publish(ev)
	}
}
