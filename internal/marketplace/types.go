package marketplace

import (
	"github.com/google/uuid"

	"github.com/rickgao/asset-market/internal/model"
)

// Collection is the registry a listing draws its asset from.
type Collection interface {
	Name() string
	OwnerOf(id model.AssetID) (model.Identity, error)
	IsAuthorized(operator model.Identity, id model.AssetID) bool
	Transfer(caller, from, to model.Identity, id model.AssetID) error
}

// Payments is the all-or-nothing value transfer used to pay sellers.
// A hold that was granted must always be settleable or releasable.
type Payments interface {
	Hold(payer model.Identity, amount int64) (uuid.UUID, error)
	Settle(id uuid.UUID, to model.Identity) error
	Release(id uuid.UUID) error
}

// listingRecord is a listing plus the live reference to its collection.
type listingRecord struct {
	model.Listing
	collection Collection
}
