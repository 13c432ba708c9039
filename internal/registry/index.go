package registry

import "github.com/rickgao/asset-market/internal/model"

// ownerIndex maps each owner to the ids it holds, in insertion order, plus the
// position of every id inside its owner's slice.
type ownerIndex struct {
	tokens   map[model.Identity][]model.AssetID
	position map[model.AssetID]int
}

func newOwnerIndex() *ownerIndex {
	return &ownerIndex{
		tokens:   make(map[model.Identity][]model.AssetID),
		position: make(map[model.AssetID]int),
	}
}

// add appends id to owner's slice.
func (ix *ownerIndex) add(owner model.Identity, id model.AssetID) {
	ix.position[id] = len(ix.tokens[owner])
	ix.tokens[owner] = append(ix.tokens[owner], id)
}

// remove drops id from owner's slice by moving the last element into its slot.
// The caller guarantees that owner currently holds id.
func (ix *ownerIndex) remove(owner model.Identity, id model.AssetID) {
	ids := ix.tokens[owner]
	pos := ix.position[id]
	last := len(ids) - 1

	if pos != last {
		moved := ids[last]
		ids[pos] = moved
		ix.position[moved] = pos
	}

	ids = ids[:last]
	delete(ix.position, id)

	if len(ids) == 0 {
		delete(ix.tokens, owner)
		return
	}
	ix.tokens[owner] = ids
}

// count returns how many ids owner holds.
func (ix *ownerIndex) count(owner model.Identity) int {
	return len(ix.tokens[owner])
}

// list returns a copy of owner's ids.
func (ix *ownerIndex) list(owner model.Identity) []model.AssetID {
	ids := ix.tokens[owner]
	out := make([]model.AssetID, len(ids))
	copy(out, ids)
	return out
}
