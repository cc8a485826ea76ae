package cards

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromSQLite(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "cards.db")

	db, err := Open(ctx, dsn)
	require.NoError(t, err)

	for _, p := range append(phrases(25), " card 07 ", "") {
		_, err := db.ExecContext(ctx, `INSERT INTO cards (text) VALUES (?)`, p)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	c, err := FromDSN(ctx, dsn)
	require.NoError(t, err)
	assert.Equal(t, phrases(25), c.Phrases())
}

func TestLoadFromEmptyTable(t *testing.T) {
	ctx := context.Background()

	_, err := FromDSN(ctx, filepath.Join(t.TempDir(), "empty.db"))
	assert.ErrorIs(t, err, ErrTooFewPhrases)
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
