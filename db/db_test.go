package db

import (
	"context"
	"path/filepath"
	"simpledb/config"
	"simpledb/disk"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Dir = filepath.Join(t.TempDir(), uuid.New().String())
	cfg.PageSize = 400
	cfg.PoolSize = 3
	return cfg
}

func TestOpen_Should_Create_And_Reopen_Database(t *testing.T) {
	cfg := testConfig(t)

	db, err := Open(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	assert.True(t, db.IsNew())
	assert.Equal(t, 3, db.Bm.Available())

	blk, err := db.Fm.Append("table")
	require.NoError(t, err)
	h, err := db.Bm.Pin(context.Background(), blk)
	require.NoError(t, err)

	lsn, err := db.Lm.Append([]byte("set table block 0"))
	require.NoError(t, err)
	require.NoError(t, h.Page().SetString(0, "hello"))
	require.NoError(t, db.Bm.SetModified(h, 1, lsn))
	require.NoError(t, db.Bm.Unpin(h))
	require.NoError(t, db.Bm.FlushAll(1))
	require.NoError(t, db.Close())

	db, err = Open(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer db.Close()
	assert.False(t, db.IsNew())

	h, err = db.Bm.Pin(context.Background(), disk.NewBlock("table", 0))
	require.NoError(t, err)
	s, err := h.Page().GetString(0)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	it, err := db.Lm.Iterator()
	require.NoError(t, err)
	rec, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, "set table block 0", string(rec))
}

func TestOpen_In_Memory_Should_Not_Touch_Disk(t *testing.T) {
	cfg := testConfig(t)
	cfg.InMemory = true
	cfg.Telemetry.Enabled = true
	cfg.Replacer = "lru"

	db, err := Open(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer db.Close()

	_, err = disk.OSFS().Stat(cfg.Dir)
	assert.Error(t, err)

	blk, err := db.Fm.Append("t")
	require.NoError(t, err)
	h, err := db.Bm.Pin(context.Background(), blk)
	require.NoError(t, err)
	require.NoError(t, db.Bm.Unpin(h))

	assert.True(t, db.Tel.Enabled())
}

func TestOpen_Should_Reject_Invalid_Config(t *testing.T) {
	cfg := testConfig(t)
	cfg.PoolSize = 0

	_, err := Open(cfg, WithFS(disk.NewMemFS()), WithLogger(zap.NewNop()))
	assert.Error(t, err)
}
