package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rickgao/asset-market/internal/api"
	"github.com/rickgao/asset-market/internal/model"
	"github.com/rickgao/asset-market/internal/version"
)

type queryFunc func(r *http.Request) (any, error)

type mutateFunc func(r *http.Request, caller model.Identity) (status int, body any, err error)

// query serves an anonymous read.
func (s *Server) query(fn queryFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := fn(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// snapshot serves a read that must observe a single committed state, never
// one taken halfway through a sale.
func (s *Server) snapshot(fn queryFunc) http.HandlerFunc {
	return s.query(func(r *http.Request) (any, error) {
		var body any
		err := s.ex.View(func() error {
			var err error
			body, err = fn(r)
			return err
		})
		return body, err
	})
}

// mutate authenticates the caller before running fn.
func (s *Server) mutate(fn mutateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.authn.Authenticate(r)
		if err != nil {
			s.logger.Warn("authentication failed", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Code: CodeUnauthenticated, Message: err.Error()})
			return
		}

		status, body, err := fn(r, caller)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, status, body)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.checkTimeout)
	defer cancel()

	health := api.HealthResponse{
		Status:      "healthy",
		Instance:    s.instance,
		Version:     version.Version,
		LastSeq:     s.ex.LastSeq(),
		Collections: len(s.ex.Collections()),
	}

	if len(s.checks) > 0 {
		health.Components = make(map[string]string, len(s.checks))
	}
	for _, name := range s.checkNames() {
		if err := s.checks[name](ctx); err != nil {
			health.Status = "unhealthy"
			health.Components[name] = err.Error()
		} else {
			health.Components[name] = "ok"
		}
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

func (s *Server) collections(r *http.Request) (any, error) {
	resp := api.CollectionsResponse{
		Marketplace: s.ex.MarketplaceIdentity(),
		Currency:    s.currency,
		Decimals:    s.decimals,
	}
	for _, name := range s.ex.Collections() {
		reg, err := s.ex.Collection(name)
		if err != nil {
			return nil, err
		}
		resp.Collections = append(resp.Collections, api.CollectionInfo{Name: name, TotalSupply: reg.TotalSupply()})
	}
	return resp, nil
}

func (s *Server) mint(r *http.Request, caller model.Identity) (int, any, error) {
	var req api.MintRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	id, err := s.ex.Mint(caller, r.PathValue("collection"), req.To, req.URI)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, api.MintResponse{AssetID: id}, nil
}

func (s *Server) asset(r *http.Request) (any, error) {
	id, err := assetID(r)
	if err != nil {
		return nil, err
	}
	reg, err := s.ex.Collection(r.PathValue("collection"))
	if err != nil {
		return nil, err
	}
	return reg.Asset(id)
}

func (s *Server) transfer(r *http.Request, caller model.Identity) (int, any, error) {
	id, err := assetID(r)
	if err != nil {
		return 0, nil, err
	}
	var req api.TransferRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}

	collection := r.PathValue("collection")
	if err := s.ex.Transfer(caller, collection, req.From, req.To, id); err != nil {
		return 0, nil, err
	}
	return s.assetAfter(collection, id)
}

func (s *Server) approve(r *http.Request, caller model.Identity) (int, any, error) {
	id, err := assetID(r)
	if err != nil {
		return 0, nil, err
	}
	var req api.ApproveRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}

	collection := r.PathValue("collection")
	if err := s.ex.Approve(caller, collection, req.Operator, id); err != nil {
		return 0, nil, err
	}
	return s.assetAfter(collection, id)
}

// assetAfter reads the asset back after a committed mutation. A later
// operation may already have changed it.
func (s *Server) assetAfter(collection string, id model.AssetID) (int, any, error) {
	reg, err := s.ex.Collection(collection)
	if err != nil {
		return 0, nil, err
	}
	var a model.Asset
	err = s.ex.View(func() error {
		a, err = reg.Asset(id)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, a, nil
}

func (s *Server) owned(r *http.Request) (any, error) {
	reg, err := s.ex.Collection(r.PathValue("collection"))
	if err != nil {
		return nil, err
	}
	owner := model.Identity(r.PathValue("owner"))
	ids, uris, err := reg.TokensAndURIsOf(owner)
	if err != nil {
		return nil, err
	}
	return api.OwnedResponse{Owner: owner, AssetIDs: ids, URIs: uris, Balance: len(ids)}, nil
}

// -----------------------------------------------------------------------------
// Marketplace
// -----------------------------------------------------------------------------

func (s *Server) list(r *http.Request, caller model.Identity) (int, any, error) {
	var req api.ListRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	id, err := s.ex.List(caller, req.Collection, req.AssetID, req.Price)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, api.ListResponse{ListingID: id}, nil
}

func (s *Server) activeListings(r *http.Request) (any, error) {
	collection := r.URL.Query().Get("collection")
	seller := model.Identity(r.URL.Query().Get("seller"))

	listings := []model.Listing{}
	for _, l := range s.ex.Marketplace().ActiveListings() {
		if collection != "" && l.Collection != collection {
			continue
		}
		if !seller.IsNull() && l.Seller != seller {
			continue
		}
		listings = append(listings, l)
	}
	return api.ListingsResponse{Listings: listings}, nil
}

func (s *Server) listing(r *http.Request) (any, error) {
	id, err := listingID(r)
	if err != nil {
		return nil, err
	}
	return s.ex.Marketplace().GetListing(id)
}

func (s *Server) buy(r *http.Request, caller model.Identity) (int, any, error) {
	id, err := listingID(r)
	if err != nil {
		return 0, nil, err
	}
	var req api.BuyRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	l, err := s.ex.Buy(caller, id, req.Payment)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, l, nil
}

func (s *Server) cancel(r *http.Request, caller model.Identity) (int, any, error) {
	id, err := listingID(r)
	if err != nil {
		return 0, nil, err
	}
	l, err := s.ex.Cancel(caller, id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, l, nil
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

func (s *Server) deposit(r *http.Request, caller model.Identity) (int, any, error) {
	var req api.AmountRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	account := model.Identity(r.PathValue("id"))
	if err := s.ex.Deposit(caller, account, req.Amount); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, s.accountOf(account), nil
}

func (s *Server) withdraw(r *http.Request, caller model.Identity) (int, any, error) {
	var req api.AmountRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	account := model.Identity(r.PathValue("id"))
	if account != caller {
		return 0, nil, model.Errorf(model.ErrNotOwner, "%s cannot withdraw from %s", caller, account)
	}
	if err := s.ex.Withdraw(caller, req.Amount); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, s.accountOf(account), nil
}

func (s *Server) account(r *http.Request) (any, error) {
	return s.accountOf(model.Identity(r.PathValue("id"))), nil
}

func (s *Server) accountOf(account model.Identity) api.AccountResponse {
	l := s.ex.Ledger()
	resp := api.AccountResponse{Account: account}
	s.ex.View(func() error {
		resp.Available = l.BalanceOf(account)
		resp.Held = l.Held(account)
		return nil
	})
	return resp
}

// -----------------------------------------------------------------------------
// Journal
// -----------------------------------------------------------------------------

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

func (s *Server) listEvents(r *http.Request) (any, error) {
	q := r.URL.Query()

	var since int64
	if raw := q.Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, badRequest("since %q is not an integer", raw)
		}
		if v < 0 {
			return nil, badRequest("since %d is negative", v)
		}
		since = v
	}

	limit := defaultEventLimit
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return nil, badRequest("limit %q is not a positive integer", raw)
		}
		limit = min(v, maxEventLimit)
	}

	events, err := s.events.ListEvents(r.Context(), since, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return api.EventsResponse{Events: events}, nil
}
