package tabletalk

import (
	"context"
	"fmt"

	"github.com/dkoval/tabletalk/config"
	"github.com/dkoval/tabletalk/crud"
	"github.com/dkoval/tabletalk/engine"
	"github.com/dkoval/tabletalk/log"
	"github.com/dkoval/tabletalk/store"
)

const version = "0.3.0"

// Version returns the library version.
func Version() string {
	return version
}

// TableTalk is the top-level handle: a storage backend, the CRUD engine over
// it and the conversation engine driving the LLM loop.
type TableTalk struct {
	cfg    *config.Config
	store  store.Store
	engine *engine.Engine
}

// New builds a TableTalk instance from the config, opening the storage
// backend it names. Call UseLLMConfig before processing messages.
func New(cfg *config.Config) (*TableTalk, error) {
	st, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	log.Log.Infof("[TableTalk] ✅ Storage ready | Backend: %s", cfg.Storage.Backend)

	return &TableTalk{
		cfg:    cfg,
		store:  st,
		engine: engine.NewEngine(st),
	}, nil
}

// NewWithStore builds a TableTalk instance over a caller-supplied store.
// Used by tests and embedders that manage storage themselves.
func NewWithStore(cfg *config.Config, st store.Store) *TableTalk {
	return &TableTalk{
		cfg:    cfg,
		store:  st,
		engine: engine.NewEngine(st),
	}
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return store.NewSQLiteStore(cfg.SQLitePath)
	case "mongodb":
		return store.NewMongoStore(store.MongoStoreConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
	case "memory":
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
}

// UseLLMConfig configures the LLM client.
func (tt *TableTalk) UseLLMConfig(cfg engine.LLMConfig) {
	tt.engine.UseLLMConfig(cfg)
}

// Engine returns the conversation engine.
func (tt *TableTalk) Engine() *engine.Engine {
	return tt.engine
}

// CRUD returns the ownership-checked CRUD engine for direct use.
func (tt *TableTalk) CRUD() *crud.Engine {
	return tt.engine.CRUD()
}

// ProcessMessage runs one conversational turn for a user.
func (tt *TableTalk) ProcessMessage(ctx context.Context, userID int64, message string) (string, error) {
	return tt.engine.ProcessMessage(ctx, userID, message)
}

// Register creates a user with a unique username.
func (tt *TableTalk) Register(userID int64, username string) error {
	return tt.engine.CRUD().CreateUser(userID, username)
}

// ClearContext drops a user's conversation history.
func (tt *TableTalk) ClearContext(userID int64) error {
	return tt.engine.ClearContext(userID)
}

// Close releases the storage backend.
func (tt *TableTalk) Close() error {
	return tt.store.Close()
}
