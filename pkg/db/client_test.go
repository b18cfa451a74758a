package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

type txProbe struct {
	ID    uint
	Label string
}

func openSQLite(t *testing.T) *Client {
	t.Helper()
	client, err := Open(sqlite.Open("file:" + t.Name() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	require.NoError(t, client.DB().AutoMigrate(&txProbe{}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func probeCount(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&txProbe{}).Count(&n).Error)
	return n
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&txProbe{Label: "kept"}).Error
	}))
	assert.EqualValues(t, 1, probeCount(t, client))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&txProbe{Label: "discarded"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, probeCount(t, client), "failed callback must roll back")
}

func TestPingAndClose(t *testing.T) {
	client := openSQLite(t)
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
	assert.Error(t, client.Ping(context.Background()), "ping after close should fail")
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	assert.Error(t, err)
}
