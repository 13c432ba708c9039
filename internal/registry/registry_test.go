package registry

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/rickgao/asset-market/internal/model"
)

const (
	alice  model.Identity = "alice"
	bob    model.Identity = "bob"
	carol  model.Identity = "carol"
	market model.Identity = "market"
)

func mustMint(t *testing.T, r *Registry, to model.Identity, uri string) model.AssetID {
	t.Helper()
	id, err := r.Mint(to, uri)
	if err != nil {
		t.Fatalf("Mint(%s, %q) failed: %v", to, uri, err)
	}
	return id
}

func TestRegistry_MintAssignsSequentialIDs(t *testing.T) {
	r := New("nft", nil)

	for want := 0; want < 5; want++ {
		id := mustMint(t, r, alice, fmt.Sprintf("uri%d", want))
		if id != model.AssetID(want) {
			t.Errorf("Mint() id = %d, want %d", id, want)
		}
	}

	if r.TotalSupply() != 5 {
		t.Errorf("TotalSupply() = %d, want 5", r.TotalSupply())
	}
	if r.BalanceOf(alice) != 5 {
		t.Errorf("BalanceOf(alice) = %d, want 5", r.BalanceOf(alice))
	}
}

func TestRegistry_MintNullRecipient(t *testing.T) {
	r := New("nft", nil)

	_, err := r.Mint(model.NullIdentity, "uri")
	if !errors.Is(err, model.ErrInvalidRecipient) {
		t.Fatalf("Mint(null) error = %v, want InvalidRecipient", err)
	}
	if r.TotalSupply() != 0 {
		t.Errorf("TotalSupply() = %d, want 0 after failed mint", r.TotalSupply())
	}

	// The failed mint must not consume an id.
	if id := mustMint(t, r, alice, "uri"); id != 0 {
		t.Errorf("first successful Mint() id = %d, want 0", id)
	}
}

func TestRegistry_OwnerOf(t *testing.T) {
	r := New("nft", nil)
	id := mustMint(t, r, alice, "uri")

	owner, err := r.OwnerOf(id)
	if err != nil {
		t.Fatalf("OwnerOf() failed: %v", err)
	}
	if owner != alice {
		t.Errorf("OwnerOf() = %q, want %q", owner, alice)
	}

	_, err = r.OwnerOf(99)
	if !errors.Is(err, model.ErrUnknownAsset) {
		t.Errorf("OwnerOf(99) error = %v, want UnknownAsset", err)
	}
}

func TestRegistry_BalanceOfUnknownOwner(t *testing.T) {
	r := New("nft", nil)

	if got := r.BalanceOf("nobody"); got != 0 {
		t.Errorf("BalanceOf(nobody) = %d, want 0", got)
	}
	if got := r.BalanceOf(model.NullIdentity); got != 0 {
		t.Errorf("BalanceOf(null) = %d, want 0", got)
	}
}

func TestRegistry_TransferRoundTrip(t *testing.T) {
	r := New("nft", nil)
	id := mustMint(t, r, alice, "uri")

	if err := r.Transfer(alice, alice, bob, id); err != nil {
		t.Fatalf("Transfer() failed: %v", err)
	}

	owner, _ := r.OwnerOf(id)
	if owner != bob {
		t.Errorf("OwnerOf() = %q, want %q", owner, bob)
	}
	if r.BalanceOf(alice) != 0 {
		t.Errorf("BalanceOf(alice) = %d, want 0", r.BalanceOf(alice))
	}
	if r.BalanceOf(bob) != 1 {
		t.Errorf("BalanceOf(bob) = %d, want 1", r.BalanceOf(bob))
	}
}

func TestRegistry_TransferErrors(t *testing.T) {
	tests := []struct {
		name    string
		caller  model.Identity
		from    model.Identity
		to      model.Identity
		id      model.AssetID
		wantErr *model.Error
	}{
		{name: "unknown asset", caller: alice, from: alice, to: bob, id: 42, wantErr: model.ErrUnknownAsset},
		{name: "stranger", caller: carol, from: alice, to: bob, id: 0, wantErr: model.ErrNotOwnerOrAuthorized},
		{name: "wrong from", caller: bob, from: bob, to: carol, id: 0, wantErr: model.ErrNotOwnerOrAuthorized},
		{name: "null caller", caller: model.NullIdentity, from: alice, to: bob, id: 0, wantErr: model.ErrNotOwnerOrAuthorized},
		{name: "null recipient", caller: alice, from: alice, to: model.NullIdentity, id: 0, wantErr: model.ErrInvalidRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("nft", nil)
			mustMint(t, r, alice, "uri")

			err := r.Transfer(tt.caller, tt.from, tt.to, tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Transfer() error = %v, want %v", err, tt.wantErr.Code)
			}

			owner, _ := r.OwnerOf(0)
			if owner != alice {
				t.Errorf("owner changed to %q after failed transfer", owner)
			}
			if r.BalanceOf(alice) != 1 {
				t.Errorf("BalanceOf(alice) = %d, want 1", r.BalanceOf(alice))
			}
		})
	}
}

func TestRegistry_TransferByApprovedOperator(t *testing.T) {
	r := New("nft", nil)
	id := mustMint(t, r, alice, "uri")

	if err := r.Approve(alice, market, id); err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if !r.IsAuthorized(market, id) {
		t.Fatal("IsAuthorized(market) = false after Approve")
	}

	if err := r.Transfer(market, alice, bob, id); err != nil {
		t.Fatalf("Transfer() by operator failed: %v", err)
	}

	if r.IsAuthorized(market, id) {
		t.Error("approval survived an ownership change")
	}
	if a, _ := r.Asset(id); a.Approved != model.NullIdentity {
		t.Errorf("Asset().Approved = %q, want empty", a.Approved)
	}

	// The old approval must not let the operator move bob's asset.
	err := r.Transfer(market, bob, carol, id)
	if !errors.Is(err, model.ErrNotOwnerOrAuthorized) {
		t.Errorf("Transfer() with cleared approval error = %v, want NotOwnerOrAuthorized", err)
	}
}

func TestRegistry_OwnerTransferClearsApproval(t *testing.T) {
	r := New("nft", nil)
	id := mustMint(t, r, alice, "uri")
	r.Approve(alice, market, id)

	if err := r.Transfer(alice, alice, bob, id); err != nil {
		t.Fatalf("Transfer() failed: %v", err)
	}
	if r.IsAuthorized(market, id) {
		t.Error("IsAuthorized(market) = true after owner transfer")
	}
}

func TestRegistry_Approve(t *testing.T) {
	r := New("nft", nil)
	id := mustMint(t, r, alice, "uri")

	t.Run("unknown asset", func(t *testing.T) {
		err := r.Approve(alice, market, 7)
		if !errors.Is(err, model.ErrUnknownAsset) {
			t.Errorf("Approve() error = %v, want UnknownAsset", err)
		}
	})

	t.Run("not owner", func(t *testing.T) {
		err := r.Approve(bob, market, id)
		if !errors.Is(err, model.ErrNotOwner) {
			t.Errorf("Approve() error = %v, want NotOwner", err)
		}
		if r.IsAuthorized(market, id) {
			t.Error("failed Approve() left an approval behind")
		}
	})

	t.Run("replaces previous operator", func(t *testing.T) {
		if err := r.Approve(alice, market, id); err != nil {
			t.Fatalf("Approve(market) failed: %v", err)
		}
		if err := r.Approve(alice, carol, id); err != nil {
			t.Fatalf("Approve(carol) failed: %v", err)
		}
		if r.IsAuthorized(market, id) {
			t.Error("previous operator still authorized")
		}
		if !r.IsAuthorized(carol, id) {
			t.Error("new operator not authorized")
		}
	})

	t.Run("null operator revokes", func(t *testing.T) {
		if err := r.Approve(alice, model.NullIdentity, id); err != nil {
			t.Fatalf("Approve(null) failed: %v", err)
		}
		if r.IsAuthorized(carol, id) {
			t.Error("operator still authorized after revoke")
		}
		if r.IsAuthorized(model.NullIdentity, id) {
			t.Error("null identity reported as authorized")
		}
	})
}

func TestRegistry_TokensAndURIsOf(t *testing.T) {
	r := New("nft", nil)
	mustMint(t, r, alice, "uri0")
	mustMint(t, r, bob, "uri1")
	mustMint(t, r, alice, "uri2")

	ids, uris, err := r.TokensAndURIsOf(alice)
	if err != nil {
		t.Fatalf("TokensAndURIsOf() failed: %v", err)
	}
	if !slices.Equal(ids, []model.AssetID{0, 2}) {
		t.Errorf("ids = %v, want [0 2]", ids)
	}
	if !slices.Equal(uris, []string{"uri0", "uri2"}) {
		t.Errorf("uris = %v, want [uri0 uri2]", uris)
	}
}

func TestRegistry_TokensAndURIsOf_InsertionOrder(t *testing.T) {
	r := New("nft", nil)
	mustMint(t, r, alice, "uri0") // 0
	mustMint(t, r, bob, "uri1")   // 1
	mustMint(t, r, bob, "uri2")   // 2

	// bob receives asset 0 after holding 1 and 2.
	if err := r.Transfer(alice, alice, bob, 0); err != nil {
		t.Fatalf("Transfer() failed: %v", err)
	}

	ids, uris, err := r.TokensAndURIsOf(bob)
	if err != nil {
		t.Fatalf("TokensAndURIsOf() failed: %v", err)
	}
	if !slices.Equal(ids, []model.AssetID{1, 2, 0}) {
		t.Errorf("ids = %v, want [1 2 0]", ids)
	}
	if !slices.Equal(uris, []string{"uri1", "uri2", "uri0"}) {
		t.Errorf("uris = %v, want [uri1 uri2 uri0]", uris)
	}
}

func TestRegistry_TokensAndURIsOf_NoAssets(t *testing.T) {
	r := New("nft", nil)

	_, _, err := r.TokensAndURIsOf(alice)
	if !errors.Is(err, model.ErrNoAssetsForOwner) {
		t.Errorf("never-held owner error = %v, want NoAssetsForOwner", err)
	}

	id := mustMint(t, r, alice, "uri")
	r.Transfer(alice, alice, bob, id)

	ids, uris, err := r.TokensAndURIsOf(alice)
	if !errors.Is(err, model.ErrNoAssetsForOwner) {
		t.Errorf("emptied owner error = %v, want NoAssetsForOwner", err)
	}
	if ids != nil || uris != nil {
		t.Errorf("got ids=%v uris=%v, want nil on error", ids, uris)
	}
}

func TestRegistry_SwapRemoveKeepsIndexConsistent(t *testing.T) {
	r := New("nft", nil)
	for i := 0; i < 4; i++ {
		mustMint(t, r, alice, fmt.Sprintf("uri%d", i))
	}

	// Removing the first element moves the last one (3) into slot 0.
	if err := r.Transfer(alice, alice, bob, 0); err != nil {
		t.Fatalf("Transfer(0) failed: %v", err)
	}
	ids, _, _ := r.TokensAndURIsOf(alice)
	if !slices.Equal(ids, []model.AssetID{3, 1, 2}) {
		t.Errorf("ids after swap-remove = %v, want [3 1 2]", ids)
	}

	// The displaced element must be removable from its new slot.
	if err := r.Transfer(alice, alice, bob, 3); err != nil {
		t.Fatalf("Transfer(3) failed: %v", err)
	}
	ids, uris, _ := r.TokensAndURIsOf(alice)
	if !slices.Equal(ids, []model.AssetID{2, 1}) {
		t.Errorf("ids = %v, want [2 1]", ids)
	}
	if !slices.Equal(uris, []string{"uri2", "uri1"}) {
		t.Errorf("uris = %v, want [uri2 uri1]", uris)
	}

	if problems := r.CheckIndex(); len(problems) != 0 {
		t.Errorf("CheckIndex() = %v, want none", problems)
	}
}

func TestRegistry_RandomTransfersPreserveBalances(t *testing.T) {
	r := New("nft", nil)
	owners := []model.Identity{alice, bob, carol, "dave"}
	rng := rand.New(rand.NewPCG(1, 2))

	const mints = 50
	for i := 0; i < mints; i++ {
		mustMint(t, r, owners[rng.IntN(len(owners))], fmt.Sprintf("uri%d", i))
	}

	for i := 0; i < 500; i++ {
		id := model.AssetID(rng.IntN(mints))
		from, _ := r.OwnerOf(id)
		to := owners[rng.IntN(len(owners))]
		if err := r.Transfer(from, from, to, id); err != nil {
			t.Fatalf("Transfer(%d) failed: %v", id, err)
		}
	}

	total := 0
	for _, owner := range owners {
		balance := r.BalanceOf(owner)
		total += balance

		owned := 0
		for id := model.AssetID(0); id < mints; id++ {
			if o, _ := r.OwnerOf(id); o == owner {
				owned++
			}
		}
		if balance != owned {
			t.Errorf("BalanceOf(%s) = %d, owns %d", owner, balance, owned)
		}

		if balance == 0 {
			continue
		}
		ids, uris, err := r.TokensAndURIsOf(owner)
		if err != nil {
			t.Fatalf("TokensAndURIsOf(%s) failed: %v", owner, err)
		}
		if len(ids) != balance || len(uris) != balance {
			t.Errorf("TokensAndURIsOf(%s) lengths = %d/%d, want %d", owner, len(ids), len(uris), balance)
		}
		for i, id := range ids {
			if uris[i] != fmt.Sprintf("uri%d", id) {
				t.Errorf("uri for asset %d = %q", id, uris[i])
			}
		}
	}

	if total != mints {
		t.Errorf("sum of balances = %d, want %d", total, mints)
	}
	if problems := r.CheckIndex(); len(problems) != 0 {
		t.Errorf("CheckIndex() = %v, want none", problems)
	}
}

func TestRegistry_Asset(t *testing.T) {
	r := New("nft", nil)
	id := mustMint(t, r, alice, "ipfs://meta")
	r.Approve(alice, market, id)

	a, err := r.Asset(id)
	if err != nil {
		t.Fatalf("Asset() failed: %v", err)
	}
	if a.Collection != "nft" || a.Owner != alice || a.MetadataURI != "ipfs://meta" || a.Approved != market {
		t.Errorf("Asset() = %+v", a)
	}
}

func TestRegistry_ConcurrentMints(t *testing.T) {
	r := New("nft", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Mint(alice, "uri")
			}
		}()
	}
	wg.Wait()

	if r.TotalSupply() != 1000 {
		t.Errorf("TotalSupply() = %d, want 1000", r.TotalSupply())
	}
	if r.BalanceOf(alice) != 1000 {
		t.Errorf("BalanceOf(alice) = %d, want 1000", r.BalanceOf(alice))
	}
}
