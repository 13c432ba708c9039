package ledger

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/asset-market/internal/model"
)

// hold is funds taken out of payer's available balance pending settlement.
type hold struct {
	payer  model.Identity
	amount int64
}

// Ledger tracks available balances and outstanding holds. Safe for concurrent use.
type Ledger struct {
	logger *slog.Logger

	mu       sync.Mutex
	balances map[model.Identity]int64
	holds    map[uuid.UUID]hold
	supply   int64 // deposits minus withdrawals
}

// New creates an empty ledger.
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		logger:   logger,
		balances: make(map[model.Identity]int64),
		holds:    make(map[uuid.UUID]hold),
	}
}

// Deposit credits amount to account.
func (l *Ledger) Deposit(account model.Identity, amount int64) error {
	if account.IsNull() {
		return model.Errorf(model.ErrInvalidRecipient, "cannot deposit to the null identity")
	}
	if amount <= 0 {
		return model.Errorf(model.ErrInvalidAmount, "deposit of %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[account] += amount
	l.supply += amount
	return nil
}

// Withdraw debits amount from account's available balance.
func (l *Ledger) Withdraw(account model.Identity, amount int64) error {
	if amount <= 0 {
		return model.Errorf(model.ErrInvalidAmount, "withdrawal of %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debitLocked(account, amount); err != nil {
		return err
	}
	l.supply -= amount
	return nil
}

// BalanceOf returns account's available balance (excluding held funds).
func (l *Ledger) BalanceOf(account model.Identity) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[account]
}

// Held returns the total of account's outstanding holds.
func (l *Ledger) Held(account model.Identity) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, h := range l.holds {
		if h.payer == account {
			total += h.amount
		}
	}
	return total
}

// CheckSupply verifies that balances plus holds equal deposits minus
// withdrawals. Holds and settlements only move funds, so any difference
// means money was created or lost.
func (l *Ledger) CheckSupply() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for account, b := range l.balances {
		if b < 0 {
			return []string{fmt.Sprintf("account %s has negative balance %d", account, b)}
		}
		total += b
	}
	for _, h := range l.holds {
		total += h.amount
	}
	if total != l.supply {
		return []string{fmt.Sprintf("balances and holds total %d, deposits net of withdrawals %d", total, l.supply)}
	}
	return nil
}

// Hold reserves amount of payer's funds and returns a handle to settle or
// release it.
func (l *Ledger) Hold(payer model.Identity, amount int64) (uuid.UUID, error) {
	if amount <= 0 {
		return uuid.Nil, model.Errorf(model.ErrInvalidAmount, "hold of %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debitLocked(payer, amount); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	l.holds[id] = hold{payer: payer, amount: amount}

	l.logger.Debug("funds held", "hold_id", id, "payer", payer, "amount", amount)
	return id, nil
}

// Settle pays a held amount to the recipient.
func (l *Ledger) Settle(id uuid.UUID, to model.Identity) error {
	if to.IsNull() {
		return model.Errorf(model.ErrInvalidRecipient, "cannot settle hold %s to the null identity", id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.holds[id]
	if !ok {
		return fmt.Errorf("settle hold %s: unknown hold", id)
	}
	delete(l.holds, id)
	l.balances[to] += h.amount

	l.logger.Debug("hold settled", "hold_id", id, "payer", h.payer, "payee", to, "amount", h.amount)
	return nil
}

// Release returns a held amount to its payer.
func (l *Ledger) Release(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.holds[id]
	if !ok {
		return fmt.Errorf("release hold %s: unknown hold", id)
	}
	delete(l.holds, id)
	l.balances[h.payer] += h.amount

	l.logger.Debug("hold released", "hold_id", id, "payer", h.payer, "amount", h.amount)
	return nil
}

// debitLocked removes amount from account (caller must hold the lock).
func (l *Ledger) debitLocked(account model.Identity, amount int64) error {
	available := l.balances[account]
	if available < amount {
		return model.Errorf(model.ErrInsufficientFunds, "%s has %d, needs %d", account, available, amount)
	}

	if available == amount {
		delete(l.balances, account)
	} else {
		l.balances[account] = available - amount
	}
	return nil
}
