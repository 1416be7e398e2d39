package badger

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerDB manages the Badger database behind the artifact index
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	path   string
}

// NewBadgerDB opens (or creates) an on-disk index at path
func NewBadgerDB(logger arbor.ILogger, path string) (*BadgerDB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Opening artifact index")

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Badger's own logger is too chatty next to arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerDB{
		store:  store,
		logger: logger,
		path:   path,
	}, nil
}

// NewInMemoryBadgerDB opens an index that lives only as long as the process
func NewInMemoryBadgerDB(logger arbor.ILogger) (*BadgerDB, error) {
	options := badgerhold.DefaultOptions
	options.InMemory = true
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger database: %w", err)
	}
	return &BadgerDB{store: store, logger: logger}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
