package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/asset-market/internal/api"
	"github.com/rickgao/asset-market/internal/feed"
	"github.com/rickgao/asset-market/internal/model"
)

func (c *cli) status(ctx context.Context, args []string) error {
	if err := c.flags("status").Parse(args); err != nil {
		return err
	}

	health, err := c.client.Health(ctx)
	if err != nil {
		return err
	}
	info, err := c.currency(ctx)
	if err != nil {
		return err
	}

	out := struct {
		Health      *api.HealthResponse      `json:"health"`
		Collections *api.CollectionsResponse `json:"collections"`
	}{health, info}
	return c.print(out, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s (version %s, last seq %d)\n", health.Instance, health.Status, health.Version, health.LastSeq)
		for name, status := range health.Components {
			fmt.Fprintf(w, "  %s: %s\n", name, status)
		}
		fmt.Fprintf(w, "marketplace %s settles in %s (%d decimals)\n", info.Marketplace, info.Currency, info.Decimals)
		for _, col := range info.Collections {
			fmt.Fprintf(w, "  %s: %d assets\n", col.Name, col.TotalSupply)
		}
	})
}

func (c *cli) mint(ctx context.Context, args []string) error {
	fs := c.flags("mint")
	collection := fs.String("collection", "nft", "collection name")
	to := fs.String("to", string(c.identity), "recipient (default: caller)")
	uri := fs.String("uri", "", "metadata URI")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := c.client.Mint(ctx, *collection, model.Identity(*to), *uri)
	if err != nil {
		return err
	}
	return c.print(api.MintResponse{AssetID: id}, func(w io.Writer) {
		fmt.Fprintf(w, "minted %s/%d to %s\n", *collection, id, *to)
	})
}

func (c *cli) approve(ctx context.Context, args []string) error {
	fs := c.flags("approve")
	collection := fs.String("collection", "nft", "collection name")
	id := fs.Uint64("id", 0, "asset id")
	operator := fs.String("operator", "", "operator to approve (default: the marketplace)")
	revoke := fs.Bool("revoke", false, "clear the approval instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	op := model.Identity(*operator)
	switch {
	case *revoke:
		op = model.NullIdentity
	case op.IsNull():
		info, err := c.currency(ctx)
		if err != nil {
			return err
		}
		op = info.Marketplace
	}

	asset, err := c.client.Approve(ctx, *collection, op, model.AssetID(*id))
	if err != nil {
		return err
	}
	return c.print(asset, func(w io.Writer) {
		if asset.Approved.IsNull() {
			fmt.Fprintf(w, "cleared approval on %s/%d\n", *collection, asset.ID)
			return
		}
		fmt.Fprintf(w, "approved %s for %s/%d\n", asset.Approved, *collection, asset.ID)
	})
}

func (c *cli) transfer(ctx context.Context, args []string) error {
	fs := c.flags("transfer")
	collection := fs.String("collection", "nft", "collection name")
	id := fs.Uint64("id", 0, "asset id")
	from := fs.String("from", string(c.identity), "current owner (default: caller)")
	to := fs.String("to", "", "recipient")
	if err := fs.Parse(args); err != nil {
		return err
	}

	asset, err := c.client.Transfer(ctx, *collection, model.Identity(*from), model.Identity(*to), model.AssetID(*id))
	if err != nil {
		return err
	}
	return c.print(asset, func(w io.Writer) {
		fmt.Fprintf(w, "transferred %s/%d from %s to %s\n", *collection, asset.ID, *from, asset.Owner)
	})
}

func (c *cli) asset(ctx context.Context, args []string) error {
	fs := c.flags("asset")
	collection := fs.String("collection", "nft", "collection name")
	id := fs.Uint64("id", 0, "asset id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	asset, err := c.client.Asset(ctx, *collection, model.AssetID(*id))
	if err != nil {
		return err
	}
	return c.print(asset, func(w io.Writer) {
		fmt.Fprintf(w, "%s/%d owner=%s uri=%q", asset.Collection, asset.ID, asset.Owner, asset.MetadataURI)
		if !asset.Approved.IsNull() {
			fmt.Fprintf(w, " approved=%s", asset.Approved)
		}
		fmt.Fprintln(w)
	})
}

func (c *cli) owned(ctx context.Context, args []string) error {
	fs := c.flags("owned")
	collection := fs.String("collection", "nft", "collection name")
	owner := fs.String("owner", string(c.identity), "holder (default: caller)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.client.Owned(ctx, *collection, model.Identity(*owner))
	if errors.Is(err, model.ErrNoAssetsForOwner) && !c.jsonOut {
		fmt.Fprintf(c.out, "%s holds no %s assets\n", *owner, *collection)
		return nil
	}
	if err != nil {
		return err
	}
	return c.print(resp, func(w io.Writer) {
		fmt.Fprintf(w, "%s holds %d %s assets\n", resp.Owner, resp.Balance, *collection)
		for i, id := range resp.AssetIDs {
			fmt.Fprintf(w, "  %d\t%s\n", id, resp.URIs[i])
		}
	})
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := c.flags("list")
	collection := fs.String("collection", "nft", "collection name")
	id := fs.Uint64("id", 0, "asset id")
	price := fs.String("price", "", "asking price, e.g. 1.5")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *price == "" {
		return errors.New("-price is required")
	}

	units, err := c.parseAmount(ctx, *price)
	if err != nil {
		return err
	}
	listingID, err := c.client.List(ctx, *collection, model.AssetID(*id), units)
	if err != nil {
		return err
	}
	return c.print(api.ListResponse{ListingID: listingID}, func(w io.Writer) {
		fmt.Fprintf(w, "listing %d: %s/%d for %s\n", listingID, *collection, *id, c.formatAmount(ctx, units))
	})
}

func (c *cli) buy(ctx context.Context, args []string) error {
	fs := c.flags("buy")
	id := fs.Uint64("listing", 0, "listing id")
	payment := fs.String("payment", "", "payment (default: the listing price)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var units int64
	if *payment == "" {
		l, err := c.client.Listing(ctx, model.ListingID(*id))
		if err != nil {
			return err
		}
		units = l.Price
	} else {
		var err error
		if units, err = c.parseAmount(ctx, *payment); err != nil {
			return err
		}
	}

	l, err := c.client.Buy(ctx, model.ListingID(*id), units)
	if err != nil {
		return err
	}
	return c.print(l, func(w io.Writer) {
		fmt.Fprintf(w, "bought %s/%d from %s for %s\n", l.Collection, l.AssetID, l.Seller, c.formatAmount(ctx, l.Price))
	})
}

func (c *cli) cancel(ctx context.Context, args []string) error {
	fs := c.flags("cancel")
	id := fs.Uint64("listing", 0, "listing id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	l, err := c.client.Cancel(ctx, model.ListingID(*id))
	if err != nil {
		return err
	}
	return c.print(l, func(w io.Writer) {
		fmt.Fprintf(w, "cancelled listing %d\n", l.ID)
	})
}

func (c *cli) listing(ctx context.Context, args []string) error {
	fs := c.flags("listing")
	id := fs.Uint64("listing", 0, "listing id (default: show all active listings)")
	collection := fs.String("collection", "", "only active listings in collection")
	seller := fs.String("seller", "", "only active listings by seller")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id != 0 {
		l, err := c.client.Listing(ctx, model.ListingID(*id))
		if err != nil {
			return err
		}
		return c.print(l, func(w io.Writer) { c.writeListing(ctx, w, *l) })
	}

	listings, err := c.client.ActiveListings(ctx, api.ListingsParams{Collection: *collection, Seller: model.Identity(*seller)})
	if err != nil {
		return err
	}
	return c.print(api.ListingsResponse{Listings: listings}, func(w io.Writer) {
		if len(listings) == 0 {
			fmt.Fprintln(w, "no active listings")
		}
		for _, l := range listings {
			c.writeListing(ctx, w, l)
		}
	})
}

func (c *cli) writeListing(ctx context.Context, w io.Writer, l model.Listing) {
	fmt.Fprintf(w, "%d\t%s\t%s/%d\tseller=%s\tprice=%s", l.ID, l.Status, l.Collection, l.AssetID, l.Seller, c.formatAmount(ctx, l.Price))
	if !l.Buyer.IsNull() {
		fmt.Fprintf(w, "\tbuyer=%s", l.Buyer)
	}
	fmt.Fprintln(w)
}

func (c *cli) deposit(ctx context.Context, args []string) error {
	fs := c.flags("deposit")
	to := fs.String("to", string(c.identity), "account to credit (default: caller)")
	amount := fs.String("amount", "", "amount, e.g. 10")
	if err := fs.Parse(args); err != nil {
		return err
	}

	units, err := c.parseAmount(ctx, *amount)
	if err != nil {
		return err
	}
	acct, err := c.client.Deposit(ctx, model.Identity(*to), units)
	if err != nil {
		return err
	}
	return c.print(acct, func(w io.Writer) { c.writeAccount(ctx, w, acct) })
}

func (c *cli) withdraw(ctx context.Context, args []string) error {
	fs := c.flags("withdraw")
	amount := fs.String("amount", "", "amount, e.g. 10")
	if err := fs.Parse(args); err != nil {
		return err
	}
	self, err := c.self()
	if err != nil {
		return err
	}

	units, err := c.parseAmount(ctx, *amount)
	if err != nil {
		return err
	}
	acct, err := c.client.Withdraw(ctx, self, units)
	if err != nil {
		return err
	}
	return c.print(acct, func(w io.Writer) { c.writeAccount(ctx, w, acct) })
}

func (c *cli) balance(ctx context.Context, args []string) error {
	fs := c.flags("balance")
	account := fs.String("account", string(c.identity), "account (default: caller)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	acct, err := c.client.Account(ctx, model.Identity(*account))
	if err != nil {
		return err
	}
	return c.print(acct, func(w io.Writer) { c.writeAccount(ctx, w, acct) })
}

func (c *cli) writeAccount(ctx context.Context, w io.Writer, acct *api.AccountResponse) {
	fmt.Fprintf(w, "%s available=%s held=%s\n", acct.Account, c.formatAmount(ctx, acct.Available), c.formatAmount(ctx, acct.Held))
}

func (c *cli) events(ctx context.Context, args []string) error {
	fs := c.flags("events")
	since := fs.Duration("since", time.Hour, "how far back to read")
	limit := fs.Int("limit", 100, "maximum events")
	if err := fs.Parse(args); err != nil {
		return err
	}

	events, err := c.client.Events(ctx, time.Now().Add(-*since).UnixMicro(), *limit)
	if err != nil {
		return err
	}
	return c.print(api.EventsResponse{Events: events}, func(w io.Writer) {
		for _, ev := range events {
			writeEvent(w, ev)
		}
	})
}

func (c *cli) watch(ctx context.Context, args []string) error {
	fs := c.flags("watch")
	path := fs.String("path", "/ws/events", "feed path on the server")
	collection := fs.String("collection", "", "only events for collection")
	types := fs.String("type", "", "comma-separated event types, e.g. sale,cancel")
	count := fs.Int("count", 0, "exit after this many events (0: run until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	feedURL, err := feedURL(c.server, *path, *collection, *types)
	if err != nil {
		return err
	}

	client := feed.NewClient(feed.ClientConfig{URL: feedURL}, c.logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to feed: %w", err)
	}
	defer client.Close()

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-client.Errors():
			return fmt.Errorf("feed: %w", err)
		case ev := <-client.Events():
			if c.jsonOut {
				if err := c.print(ev, nil); err != nil {
					return err
				}
			} else {
				writeEvent(c.out, ev)
			}
			seen++
			if *count > 0 && seen >= *count {
				return nil
			}
		}
	}
}

// feedURL turns the daemon base URL into the websocket feed URL.
func feedURL(server, path, collection, types string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url scheme %q is not http or https", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path

	q := url.Values{}
	if collection != "" {
		q.Set("collection", collection)
	}
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			q.Add("type", t)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func writeEvent(w io.Writer, ev model.Event) {
	ts := time.UnixMicro(ev.OccurredAt).UTC().Format(time.RFC3339)
	fmt.Fprintf(w, "%d\t%s\t%s", ev.Seq, ts, ev.Type)
	if ev.Collection != "" {
		fmt.Fprintf(w, "\t%s/%d", ev.Collection, ev.AssetID)
	}
	if ev.ListingID != model.NoListing {
		fmt.Fprintf(w, "\tlisting=%d", ev.ListingID)
	}
	if !ev.From.IsNull() {
		fmt.Fprintf(w, "\tfrom=%s", ev.From)
	}
	if !ev.To.IsNull() {
		fmt.Fprintf(w, "\tto=%s", ev.To)
	}
	if ev.Amount != 0 {
		fmt.Fprintf(w, "\tamount=%d", ev.Amount)
	}
	fmt.Fprintln(w)
}
