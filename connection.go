package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// MongoDatabase adapts a MongoDB database to DocumentDatabase. It owns a
// single connection, opened on first use and released by Disconnect.
type MongoDatabase struct {
	config Config
	logger zerolog.Logger
	now    func() time.Time

	connectGroup singleflight.Group

	mu              sync.RWMutex
	client          Client
	db              Database
	connected       bool
	generation      uint64
	collectionNames []string
}

func NewMongoDatabase(config Config, options ...DatabaseOption) *MongoDatabase {
	opt := &databaseOption{
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, op := range options {
		op(opt)
	}

	return &MongoDatabase{
		config: config,
		logger: opt.logger.With().Str("db", config.DB).Logger(),
		now:    opt.now,
	}
}

// Connect opens the connection and loads the collection names. It does
// nothing when already connected, and concurrent callers share one attempt.
func (m *MongoDatabase) Connect(ctx context.Context) error {
	_, err, _ := m.connectGroup.Do("connect", func() (any, error) {
		if m.isConnected() {
			return nil, nil
		}

		return nil, m.connect(ctx)
	})

	return err
}

func (m *MongoDatabase) connect(ctx context.Context) error {
	m.mu.RLock()
	generation := m.generation
	m.mu.RUnlock()

	client, err := m.config.clientFactory()(m.config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	cctx, cancel := context.WithTimeout(ctx, m.config.connectTimeout())
	defer cancel()

	if err := client.Connect(cctx); err != nil {
		m.logger.Debug().Err(err).Msg("connect failed")
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	db := client.Database(m.config.DB)

	m.mu.Lock()
	if m.generation != generation {
		// Disconnect ran while this attempt was in flight.
		m.mu.Unlock()
		_ = client.Disconnect(ctx)
		return fmt.Errorf("%w: disconnected while connecting", ErrConnection)
	}

	m.client = client
	m.db = db
	m.connected = true
	m.mu.Unlock()

	m.logger.Debug().Msg("connected")

	return m.refreshCollections(ctx, db)
}

func (m *MongoDatabase) ensureConnection(ctx context.Context) error {
	if m.isConnected() {
		return nil
	}

	return m.Connect(ctx)
}

func (m *MongoDatabase) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// database returns the selected database, connecting first when needed.
func (m *MongoDatabase) database(ctx context.Context) (Database, error) {
	if err := m.ensureConnection(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected || m.db == nil {
		return nil, fmt.Errorf("%w: disconnected", ErrConnection)
	}

	return m.db, nil
}

func (m *MongoDatabase) collection(ctx context.Context, name string) (Collection, error) {
	db, err := m.database(ctx)
	if err != nil {
		return nil, err
	}

	return db.Collection(name), nil
}

// Disconnect releases the client. The adapter is disconnected afterwards even
// when closing fails.
func (m *MongoDatabase) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.db = nil
	m.connected = false
	m.generation++
	m.mu.Unlock()

	if client == nil {
		return nil
	}

	if err := client.Disconnect(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to close client")
		return err
	}

	m.logger.Debug().Msg("disconnected")
	return nil
}

func (m *MongoDatabase) GetCollections(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	db, err := m.database(ctx)
	if err != nil {
		return err
	}

	return m.refreshCollections(ctx, db)
}

func (m *MongoDatabase) refreshCollections(ctx context.Context, db Database) error {
	names, err := db.ListCollectionNames(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.collectionNames = names
	m.mu.Unlock()

	return nil
}

// CollectionNames returns the names seen by the last refresh.
func (m *MongoDatabase) CollectionNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.collectionNames))
	copy(names, m.collectionNames)
	return names
}

// CreateCollection does not refresh the collection names.
func (m *MongoDatabase) CreateCollection(ctx context.Context, name string) error {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	db, err := m.database(ctx)
	if err != nil {
		return err
	}

	if err := db.CreateCollection(ctx, name); err != nil {
		return err
	}

	m.logger.Debug().Str("collection", name).Msg("collection created")
	return nil
}

// HasCollection always reloads the collection names before answering.
func (m *MongoDatabase) HasCollection(ctx context.Context, name string) (bool, error) {
	if err := m.GetCollections(ctx); err != nil {
		return false, err
	}

	return sliceContains(m.CollectionNames(), name), nil
}

// Begin starts a transaction. Run operations with tx.Context() to make them
// part of it.
func (m *MongoDatabase) Begin(ctx context.Context) (Transaction, error) {
	if err := m.ensureConnection(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return nil, fmt.Errorf("%w: disconnected", ErrConnection)
	}

	return client.StartTransaction(ctx)
}
