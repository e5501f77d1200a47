package db

import (
	"context"
	"fmt"

	"simpledb/buffer"
	"simpledb/config"
	"simpledb/disk"
	"simpledb/disk/wal"
	"simpledb/logger"
	"simpledb/telemetry"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DB wires a file manager, a log manager and a buffer manager over one directory.
type DB struct {
	Fm  *disk.FileManager
	Lm  *wal.LogManager
	Bm  *buffer.Manager
	Tel *telemetry.Telemetry

	cfg      config.Config
	logger   *zap.Logger
	shutdown telemetry.ShutdownFunc
}

type Option func(*openOptions)

type openOptions struct {
	fs     disk.FS
	logger *zap.Logger
}

// WithFS replaces the file system chosen by the configuration.
func WithFS(fs disk.FS) Option {
	return func(o *openOptions) { o.fs = fs }
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *zap.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

func Open(cfg config.Config, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := openOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	l := o.logger
	if l == nil {
		var err error
		if l, err = logger.New(cfg.Logger); err != nil {
			return nil, err
		}
	}

	tel, shutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	fsys := o.fs
	if fsys == nil {
		fsys = disk.OSFS()
		if cfg.InMemory {
			fsys = disk.NewMemFS()
		}
	}

	fm, err := disk.NewFileManager(cfg.Dir, cfg.PageSize, disk.Options{
		FS:         fsys,
		SyncWrites: cfg.FSync,
		Logger:     l.Named("disk"),
		Meter:      tel.Meter,
	})
	if err != nil {
		return nil, err
	}

	lm, err := wal.NewLogManager(fm, cfg.LogFile, wal.Options{Logger: l.Named("wal"), Meter: tel.Meter})
	if err != nil {
		return nil, multierr.Append(err, fm.Close())
	}

	replacer, err := buffer.NewReplacer(cfg.Replacer, cfg.PoolSize)
	if err != nil {
		return nil, multierr.Append(err, fm.Close())
	}

	bm, err := buffer.NewManager(fm, lm, cfg.PoolSize, buffer.Options{
		MaxPinWait: cfg.MaxPinWait,
		Replacer:   replacer,
		Logger:     l.Named("buffer"),
		Meter:      tel.Meter,
	})
	if err != nil {
		return nil, multierr.Append(err, fm.Close())
	}

	l.Info("database is opened", zap.String("dir", cfg.Dir), zap.Bool("new", fm.IsNew()), zap.Bool("inMemory", cfg.InMemory))
	return &DB{Fm: fm, Lm: lm, Bm: bm, Tel: tel, cfg: cfg, logger: l, shutdown: shutdown}, nil
}

func (db *DB) IsNew() bool {
	return db.Fm.IsNew()
}

func (db *DB) Config() config.Config {
	return db.cfg
}

// Close makes the log durable and closes every file. Modified buffers are not written, they belong to
// transactions that have to call FlushAll themselves.
func (db *DB) Close() error {
	err := db.Lm.Flush(db.Lm.LatestLSN())
	err = multierr.Append(err, db.Fm.Close())
	err = multierr.Append(err, db.shutdown(context.Background()))

	if err != nil {
		db.logger.Error("failed to close database", zap.Error(err))
	} else {
		db.logger.Info("database is closed")
	}
	_ = db.logger.Sync()
	return err
}
