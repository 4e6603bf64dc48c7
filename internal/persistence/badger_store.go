package persistence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"glue-economy-go/internal/models"
)

// Key layout. Trade keys embed a zero-padded nanosecond timestamp so a
// plain prefix scan yields chronological order.
const (
	seasonKeyPrefix = "season:"
	walletKeyPrefix = "wallet:"
	bondKeyPrefix   = "bond:"
	tradeKeyPrefix  = "trade:"
)

// maxTxnRetries bounds the optimistic-concurrency retry loop. Badger
// detects write conflicts at commit time; retrying the whole closure is
// what serializes concurrent writers of the season record.
const maxTxnRetries = 16

// badgerStore is the BadgerDB implementation of the Store.
type badgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates and returns a new store instance connected to a
// BadgerDB database.
func NewBadgerStore(dbPath string) (Store, error) {
	opts := badger.DefaultOptions(dbPath)
	// For this use case, we can disable Badger's own logging to keep our app's logs clean.
	// Errors will still be returned from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerStore{db: db}, nil
}

// Update runs fn in a read-write transaction, retrying on commit
// conflicts. Every multi-step economic mutation in the system goes
// through here, so a half-applied day or trade can never be observed.
func (s *badgerStore) Update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction conflict persisted after %d attempts: %w", maxTxnRetries, err)
}

// View runs fn in a read-only transaction.
func (s *badgerStore) View(fn func(txn *badger.Txn) error) error {
	return s.db.View(fn)
}

func seasonKey(seasonID int64) []byte {
	return []byte(fmt.Sprintf("%s%d", seasonKeyPrefix, seasonID))
}

func walletKey(accountID string) []byte {
	return []byte(walletKeyPrefix + accountID)
}

func bondKey(bondID string) []byte {
	return []byte(bondKeyPrefix + bondID)
}

func tradeKey(trade *models.Trade) []byte {
	return []byte(fmt.Sprintf("%s%020d", tradeKeyPrefix, trade.Timestamp.UnixNano()))
}

// getJSON loads and unmarshals a single value. The boolean reports
// whether the key exists.
func getJSON(txn *badger.Txn, key []byte, out interface{}) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		if len(val) == 0 {
			return errors.New("empty value in database")
		}
		return json.Unmarshal(val, out)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// forEachJSON iterates all values under prefix in key order.
func forEachJSON(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			return fn(val)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *badgerStore) Season(txn *badger.Txn, seasonID int64) (*models.SeasonState, error) {
	var state models.SeasonState
	found, err := getJSON(txn, seasonKey(seasonID), &state)
	if err != nil {
		return nil, fmt.Errorf("load season %d: %w", seasonID, err)
	}
	if !found {
		return nil, nil
	}
	return &state, nil
}

func (s *badgerStore) SaveSeason(txn *badger.Txn, state *models.SeasonState) error {
	return setJSON(txn, seasonKey(state.SeasonID), state)
}

func (s *badgerStore) Wallet(txn *badger.Txn, accountID string) (*models.Wallet, error) {
	var wallet models.Wallet
	found, err := getJSON(txn, walletKey(accountID), &wallet)
	if err != nil {
		return nil, fmt.Errorf("load wallet %s: %w", accountID, err)
	}
	if !found {
		return nil, nil
	}
	return &wallet, nil
}

func (s *badgerStore) SaveWallet(txn *badger.Txn, wallet *models.Wallet) error {
	return setJSON(txn, walletKey(wallet.AccountID), wallet)
}

func (s *badgerStore) ForEachWallet(txn *badger.Txn, fn func(wallet *models.Wallet) error) error {
	return forEachJSON(txn, []byte(walletKeyPrefix), func(val []byte) error {
		var wallet models.Wallet
		if err := json.Unmarshal(val, &wallet); err != nil {
			return err
		}
		return fn(&wallet)
	})
}

func (s *badgerStore) Bond(txn *badger.Txn, bondID string) (*models.LockedBond, error) {
	var bond models.LockedBond
	found, err := getJSON(txn, bondKey(bondID), &bond)
	if err != nil {
		return nil, fmt.Errorf("load bond %s: %w", bondID, err)
	}
	if !found {
		return nil, nil
	}
	return &bond, nil
}

func (s *badgerStore) SaveBond(txn *badger.Txn, bond *models.LockedBond) error {
	return setJSON(txn, bondKey(bond.ID), bond)
}

func (s *badgerStore) ForEachBond(txn *badger.Txn, fn func(bond *models.LockedBond) error) error {
	return forEachJSON(txn, []byte(bondKeyPrefix), func(val []byte) error {
		var bond models.LockedBond
		if err := json.Unmarshal(val, &bond); err != nil {
			return err
		}
		return fn(&bond)
	})
}

func (s *badgerStore) AppendTrade(txn *badger.Txn, trade *models.Trade) error {
	key := tradeKey(trade)
	// Trades are immutable once written; refuse to overwrite a record.
	if _, err := txn.Get(key); err == nil {
		return fmt.Errorf("trade key %s already exists", key)
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return setJSON(txn, key, trade)
}

func (s *badgerStore) ForEachTrade(txn *badger.Txn, fn func(trade *models.Trade) error) error {
	return forEachJSON(txn, []byte(tradeKeyPrefix), func(val []byte) error {
		var trade models.Trade
		if err := json.Unmarshal(val, &trade); err != nil {
			return err
		}
		return fn(&trade)
	})
}

// Close gracefully closes the connection to the database.
func (s *badgerStore) Close() error {
	return s.db.Close()
}
