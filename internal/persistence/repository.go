package persistence

import (
	"github.com/dgraph-io/badger/v3"

	"glue-economy-go/internal/models"
)

// Store defines the interface for economy state persistence.
// It abstracts the underlying storage mechanism from the rest of the
// application, while still exposing the transaction handle so that
// higher components (ledger, treasury, exchange) can compose several
// mutations into one all-or-nothing commit.
type Store interface {
	// Update runs fn inside a read-write transaction. Conflicting
	// transactions are retried a bounded number of times, which gives
	// the compare-and-swap serialization the season record requires.
	Update(fn func(txn *badger.Txn) error) error

	// View runs fn inside a read-only transaction.
	View(fn func(txn *badger.Txn) error) error

	// Season loads the season snapshot. Returns (nil, nil) when the
	// season was never bootstrapped.
	Season(txn *badger.Txn, seasonID int64) (*models.SeasonState, error)
	SaveSeason(txn *badger.Txn, state *models.SeasonState) error

	// Wallet loads a wallet by account ID. Returns (nil, nil) when the
	// account has no wallet yet.
	Wallet(txn *badger.Txn, accountID string) (*models.Wallet, error)
	SaveWallet(txn *badger.Txn, wallet *models.Wallet) error
	ForEachWallet(txn *badger.Txn, fn func(wallet *models.Wallet) error) error

	Bond(txn *badger.Txn, bondID string) (*models.LockedBond, error)
	SaveBond(txn *badger.Txn, bond *models.LockedBond) error
	ForEachBond(txn *badger.Txn, fn func(bond *models.LockedBond) error) error

	// AppendTrade persists an immutable trade record. Trades are never
	// updated or deleted; key order is chronological.
	AppendTrade(txn *badger.Txn, trade *models.Trade) error
	ForEachTrade(txn *badger.Txn, fn func(trade *models.Trade) error) error

	// Close gracefully closes the connection to the database.
	Close() error
}
