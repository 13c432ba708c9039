package model

// Identity names a caller, an asset holder or an operator.
type Identity string

// NullIdentity is never a valid owner or recipient.
const NullIdentity Identity = ""

// IsNull reports whether id is the null identity.
func (id Identity) IsNull() bool {
	return id == NullIdentity
}

func (id Identity) String() string {
	return string(id)
}

// AssetID identifies an asset within one collection.
type AssetID uint64

// ListingID identifies a listing within one marketplace. Zero is reserved.
type ListingID uint64

// NoListing is the reserved sentinel listing id.
const NoListing ListingID = 0

// -----------------------------------------------------------------------------
// Registry Types
// -----------------------------------------------------------------------------

// Asset is a snapshot of one minted asset.
type Asset struct {
	Collection  string   `json:"collection"`
	ID          AssetID  `json:"asset_id"`
	Owner       Identity `json:"owner"`
	MetadataURI string   `json:"uri"`
	Approved    Identity `json:"approved,omitempty"` // Current operator, empty if none
}

// -----------------------------------------------------------------------------
// Marketplace Types
// -----------------------------------------------------------------------------

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingSold || s == ListingCancelled
}

// Listing is an offer to sell one asset at a fixed price.
type Listing struct {
	ID         ListingID     `json:"listing_id"`
	Collection string        `json:"collection"`
	AssetID    AssetID       `json:"asset_id"`
	Seller     Identity      `json:"seller"` // Holder at listing time
	Price      int64         `json:"price"`  // Smallest currency unit
	IsActive   bool          `json:"is_active"`
	Status     ListingStatus `json:"status"`
	Buyer      Identity      `json:"buyer,omitempty"` // Set once sold
}
