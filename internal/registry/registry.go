package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/asset-market/internal/model"
)

// asset is one row of the asset table.
type asset struct {
	owner model.Identity
	uri   string
}

// Registry owns the asset table, the owner index and the approval table of
// one collection. All methods are safe for concurrent use.
type Registry struct {
	name   string
	logger *slog.Logger

	mu sync.RWMutex

	// Asset table indexed by id; ids are dense so the slice length is the next id.
	assets []asset

	// Per-owner enumeration.
	index *ownerIndex

	// Approved operator per asset.
	approvals map[model.AssetID]model.Identity
}

// New creates an empty registry for the named collection.
func New(name string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		name:      name,
		logger:    logger,
		index:     newOwnerIndex(),
		approvals: make(map[model.AssetID]model.Identity),
	}
}

// Name returns the collection name.
func (r *Registry) Name() string {
	return r.name
}

// Mint creates a new asset owned by to and returns its id.
func (r *Registry) Mint(to model.Identity, uri string) (model.AssetID, error) {
	if to.IsNull() {
		return 0, model.Errorf(model.ErrInvalidRecipient, "cannot mint to the null identity")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := model.AssetID(len(r.assets))
	r.assets = append(r.assets, asset{owner: to, uri: uri})
	r.index.add(to, id)

	r.logger.Debug("asset minted",
		"collection", r.name,
		"asset_id", id,
		"owner", to,
	)
	return id, nil
}

// OwnerOf returns the current owner of id.
func (r *Registry) OwnerOf(id model.AssetID) (model.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, err := r.assetLocked(id)
	if err != nil {
		return model.NullIdentity, err
	}
	return a.owner, nil
}

// Asset returns a snapshot of id including its current operator.
func (r *Registry) Asset(id model.AssetID) (model.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, err := r.assetLocked(id)
	if err != nil {
		return model.Asset{}, err
	}
	return model.Asset{
		Collection:  r.name,
		ID:          id,
		Owner:       a.owner,
		MetadataURI: a.uri,
		Approved:    r.approvals[id],
	}, nil
}

// BalanceOf returns how many assets owner currently holds. Never fails.
func (r *Registry) BalanceOf(owner model.Identity) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.index.count(owner)
}

// TotalSupply returns the number of assets ever minted.
func (r *Registry) TotalSupply() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.assets)
}

// Transfer moves id from from to to. The caller must be from, or hold the
// approval for id; from must be the current owner. Any approval is cleared.
func (r *Registry) Transfer(caller, from, to model.Identity, id model.AssetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.assetLocked(id)
	if err != nil {
		return err
	}
	if caller.IsNull() || from != a.owner || (caller != from && !r.isAuthorizedLocked(caller, id)) {
		return model.Errorf(model.ErrNotOwnerOrAuthorized,
			"%s may not move asset %d from %s", caller, id, from)
	}
	if to.IsNull() {
		return model.Errorf(model.ErrInvalidRecipient, "cannot transfer asset %d to the null identity", id)
	}

	r.index.remove(from, id)
	r.index.add(to, id)
	a.owner = to
	delete(r.approvals, id)

	r.logger.Debug("asset transferred",
		"collection", r.name,
		"asset_id", id,
		"from", from,
		"to", to,
		"caller", caller,
	)
	return nil
}

// TokensAndURIsOf returns owner's asset ids and their URIs, index aligned, in
// the order the owner received them. Fails when owner currently holds nothing.
func (r *Registry) TokensAndURIsOf(owner model.Identity) ([]model.AssetID, []string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.index.count(owner) == 0 {
		return nil, nil, model.Errorf(model.ErrNoAssetsForOwner, "%s holds no assets in %s", owner, r.name)
	}

	ids := r.index.list(owner)
	uris := make([]string, len(ids))
	for i, id := range ids {
		uris[i] = r.assets[id].uri
	}
	return ids, uris, nil
}

// CheckIndex verifies that the owner index agrees with the asset table and
// returns a description of every inconsistency found.
func (r *Registry) CheckIndex() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var problems []string

	counts := make(map[model.Identity]int)
	for i, a := range r.assets {
		id := model.AssetID(i)
		counts[a.owner]++

		pos, ok := r.index.position[id]
		ids := r.index.tokens[a.owner]
		if !ok || pos >= len(ids) || ids[pos] != id {
			problems = append(problems, fmt.Sprintf("asset %d missing from index of %s", id, a.owner))
		}
	}

	for owner, ids := range r.index.tokens {
		if counts[owner] != len(ids) {
			problems = append(problems, fmt.Sprintf("owner %s indexed %d assets, owns %d", owner, len(ids), counts[owner]))
		}
	}

	return problems
}

// assetLocked returns the row for id (caller must hold a lock).
func (r *Registry) assetLocked(id model.AssetID) (*asset, error) {
	if uint64(id) >= uint64(len(r.assets)) {
		return nil, model.Errorf(model.ErrUnknownAsset, "asset %d not minted in %s", id, r.name)
	}
	return &r.assets[id], nil
}
