package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareIncidentStoreClosesOnSchemaFailure(t *testing.T) {
	// sql.Open does not dial, so the failure surfaces in EnsureSchema.
	raw, err := sql.Open("postgres", "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable connect_timeout=1")
	require.NoError(t, err)
	db := &Database{db: raw}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := PrepareIncidentStore(ctx, db)
	require.Error(t, err)
	assert.Nil(t, store)
	assert.ErrorContains(t, raw.PingContext(ctx), "database is closed")
}

func TestPrepareIncidentStore(t *testing.T) {
	db := openTestDB(t)
	store, err := PrepareIncidentStore(context.Background(), db)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Same(t, db, store.DB)
}
