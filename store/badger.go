package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/zero-day-ai/kgraph"
)

// BadgerOptions configures the embedded Badger database.
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string `yaml:"path"`

	// InMemory keeps the database in memory only. Useful for tests.
	InMemory bool `yaml:"in_memory"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `yaml:"sync_writes"`

	// Logger receives Badger's internal log output. When nil, Badger's
	// logging is disabled.
	Logger *slog.Logger `yaml:"-"`
}

// BadgerStore keeps the artifact under a single key of an embedded Badger
// database.
type BadgerStore struct {
	db   *badger.DB
	key  []byte
	path string
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NewBadgerStore opens (creating if needed) the database described by opts.
func NewBadgerStore(opts BadgerOptions, key string) (*BadgerStore, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, kgraph.NewConfigurationError("BadgerStore.Open", errors.New("path is required for persistent database"))
	}
	if key == "" {
		key = DefaultKey
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, kgraph.NewStorageError("BadgerStore.Open", fmt.Errorf("create database directory %s: %w", opts.Path, err))
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites).WithNumVersionsToKeep(1)

	if opts.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{logger: opts.Logger.With("component", "badger")})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, kgraph.NewStorageError("BadgerStore.Open", fmt.Errorf("open badger database: %w", err))
	}

	path := opts.Path
	if opts.InMemory {
		path = ":memory:"
	}
	return &BadgerStore{db: db, key: []byte(key), path: path}, nil
}

// Location implements ArtifactStore.
func (s *BadgerStore) Location() string {
	return fmt.Sprintf("badger://%s#%s", s.path, s.key)
}

// Save implements ArtifactStore.
func (s *BadgerStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
	if err != nil {
		return kgraph.NewStorageError("BadgerStore.Save", fmt.Errorf("failed to set %s: %w", s.key, err))
	}
	return nil
}

// Load implements ArtifactStore.
func (s *BadgerStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, kgraph.NewNotFoundError("BadgerStore.Load", kgraph.ErrArtifactNotFound).
				WithContext(map[string]any{"key": string(s.key)})
		}
		return nil, kgraph.NewStorageError("BadgerStore.Load", fmt.Errorf("failed to get %s: %w", s.key, err))
	}
	return data, nil
}

// Close implements ArtifactStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
