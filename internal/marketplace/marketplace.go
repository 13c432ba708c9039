package marketplace

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/asset-market/internal/model"
)

// Marketplace owns listing records. All methods are safe for concurrent use;
// each operation holds the marketplace lock for its whole duration.
type Marketplace struct {
	self     model.Identity
	payments Payments
	logger   *slog.Logger

	mu sync.Mutex

	// Listing with id N lives at index N-1.
	listings []*listingRecord
}

// New creates a marketplace acting as self when it moves assets.
func New(self model.Identity, payments Payments, logger *slog.Logger) *Marketplace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Marketplace{
		self:     self,
		payments: payments,
		logger:   logger,
	}
}

// Identity returns the identity owners must approve before listing.
func (m *Marketplace) Identity() model.Identity {
	return m.self
}

// List publishes an offer to sell id from col at price.
func (m *Marketplace) List(caller model.Identity, col Collection, id model.AssetID, price int64) (model.ListingID, error) {
	if price <= 0 {
		return model.NoListing, model.Errorf(model.ErrInvalidPrice, "price %d", price)
	}

	owner, err := col.OwnerOf(id)
	if err != nil {
		return model.NoListing, err
	}
	if caller != owner {
		return model.NoListing, model.Errorf(model.ErrNotOwner, "%s does not own asset %d in %s", caller, id, col.Name())
	}
	if !col.IsAuthorized(m.self, id) {
		return model.NoListing, model.Errorf(model.ErrNotAuthorized, "asset %d in %s not approved for %s", id, col.Name(), m.self)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	listingID := model.ListingID(len(m.listings) + 1)
	m.listings = append(m.listings, &listingRecord{
		Listing: model.Listing{
			ID:         listingID,
			Collection: col.Name(),
			AssetID:    id,
			Seller:     caller,
			Price:      price,
			IsActive:   true,
			Status:     model.ListingActive,
		},
		collection: col,
	})

	m.logger.Info("listing created",
		"listing_id", listingID,
		"collection", col.Name(),
		"asset_id", id,
		"seller", caller,
		"price", price,
	)
	return listingID, nil
}

// Buy swaps payment for the listed asset. On success the seller has been paid,
// caller owns the asset and the listing is sold. On failure nothing changed.
func (m *Marketplace) Buy(caller model.Identity, listingID model.ListingID, payment int64) (model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.recordLocked(listingID)
	if err != nil {
		return model.Listing{}, err
	}
	if rec.Status.IsTerminal() {
		return model.Listing{}, model.Errorf(model.ErrListingNotActive, "listing %d is %s", listingID, rec.Status)
	}
	if payment != rec.Price {
		return model.Listing{}, model.Errorf(model.ErrWrongPayment, "listing %d costs %d, got %d", listingID, rec.Price, payment)
	}
	if err := m.checkFulfillable(rec); err != nil {
		return model.Listing{}, err
	}

	holdID, err := m.payments.Hold(caller, payment)
	if err != nil {
		return model.Listing{}, fmt.Errorf("buy listing %d: %w", listingID, err)
	}

	if err := rec.collection.Transfer(m.self, rec.Seller, caller, rec.AssetID); err != nil {
		if relErr := m.payments.Release(holdID); relErr != nil {
			m.logger.Error("failed to release hold after aborted purchase",
				"listing_id", listingID,
				"hold_id", holdID,
				"error", relErr,
			)
		}
		return model.Listing{}, model.Errorf(model.ErrStaleListing, "listing %d: transfer asset: %v", listingID, err)
	}

	if err := m.payments.Settle(holdID, rec.Seller); err != nil {
		// Unreachable while holds are only consumed here under m.mu.
		m.logger.Error("failed to settle hold after asset transfer",
			"listing_id", listingID,
			"hold_id", holdID,
			"error", err,
		)
		return model.Listing{}, fmt.Errorf("buy listing %d: settle payment: %w", listingID, err)
	}

	rec.IsActive = false
	rec.Status = model.ListingSold
	rec.Buyer = caller

	m.logger.Info("listing sold",
		"listing_id", listingID,
		"collection", rec.Collection,
		"asset_id", rec.AssetID,
		"seller", rec.Seller,
		"buyer", caller,
		"price", rec.Price,
	)
	return rec.Listing, nil
}

// Cancel withdraws an active listing. Only the seller may cancel.
func (m *Marketplace) Cancel(caller model.Identity, listingID model.ListingID) (model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.recordLocked(listingID)
	if err != nil {
		return model.Listing{}, err
	}
	if rec.Status.IsTerminal() {
		return model.Listing{}, model.Errorf(model.ErrListingNotActive, "listing %d is %s", listingID, rec.Status)
	}
	if caller != rec.Seller {
		return model.Listing{}, model.Errorf(model.ErrNotSeller, "%s did not create listing %d", caller, listingID)
	}

	rec.IsActive = false
	rec.Status = model.ListingCancelled

	m.logger.Info("listing cancelled", "listing_id", listingID, "seller", caller)
	return rec.Listing, nil
}

// GetListing returns the current record, including sold and cancelled ones.
func (m *Marketplace) GetListing(listingID model.ListingID) (model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.recordLocked(listingID)
	if err != nil {
		return model.Listing{}, err
	}
	return rec.Listing, nil
}

// ActiveListings returns every active listing in id order.
func (m *Marketplace) ActiveListings() []model.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]model.Listing, 0)
	for _, rec := range m.listings {
		if rec.IsActive {
			result = append(result, rec.Listing)
		}
	}
	return result
}

// ListingCount returns how many listings were ever created.
func (m *Marketplace) ListingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.listings)
}

// StaleListings returns active listings that would fail at buy time because
// the seller no longer owns the asset or the approval is gone.
func (m *Marketplace) StaleListings() []model.ListingID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []model.ListingID
	for _, rec := range m.listings {
		if rec.IsActive && m.checkFulfillable(rec) != nil {
			stale = append(stale, rec.ID)
		}
	}
	return stale
}

// checkFulfillable re-validates seller ownership and marketplace approval.
func (m *Marketplace) checkFulfillable(rec *listingRecord) error {
	owner, err := rec.collection.OwnerOf(rec.AssetID)
	if err != nil {
		return model.Errorf(model.ErrStaleListing, "listing %d: %v", rec.ID, err)
	}
	if owner != rec.Seller {
		return model.Errorf(model.ErrStaleListing, "listing %d: seller %s no longer owns asset %d", rec.ID, rec.Seller, rec.AssetID)
	}
	if !rec.collection.IsAuthorized(m.self, rec.AssetID) {
		return model.Errorf(model.ErrStaleListing, "listing %d: approval for asset %d revoked", rec.ID, rec.AssetID)
	}
	return nil
}

// recordLocked looks up a listing (caller must hold m.mu).
func (m *Marketplace) recordLocked(listingID model.ListingID) (*listingRecord, error) {
	if listingID == model.NoListing || uint64(listingID) > uint64(len(m.listings)) {
		return nil, model.Errorf(model.ErrUnknownListing, "listing %d", listingID)
	}
	return m.listings[listingID-1], nil
}
