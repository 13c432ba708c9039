package registry

import "github.com/rickgao/asset-market/internal/model"

// Approve records operator as the only party allowed to move id on the owner's
// behalf, replacing any previous operator. Approving the null identity revokes.
func (r *Registry) Approve(caller, operator model.Identity, id model.AssetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.assetLocked(id)
	if err != nil {
		return err
	}
	if caller.IsNull() || caller != a.owner {
		return model.Errorf(model.ErrNotOwner, "%s does not own asset %d", caller, id)
	}

	if operator.IsNull() {
		delete(r.approvals, id)
	} else {
		r.approvals[id] = operator
	}

	r.logger.Debug("asset approval set",
		"collection", r.name,
		"asset_id", id,
		"operator", operator,
	)
	return nil
}

// IsAuthorized reports whether operator holds the live approval for id.
func (r *Registry) IsAuthorized(operator model.Identity, id model.AssetID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.isAuthorizedLocked(operator, id)
}

// isAuthorizedLocked checks the approval table (caller must hold a lock).
// Entries are removed on every ownership change, so a present entry was
// granted by the current owner.
func (r *Registry) isAuthorizedLocked(operator model.Identity, id model.AssetID) bool {
	if operator.IsNull() {
		return false
	}
	approved, ok := r.approvals[id]
	return ok && approved == operator
}
