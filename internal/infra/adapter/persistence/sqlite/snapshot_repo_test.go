package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/infra/adapter/persistence"
	"shein-verse-bot/internal/infra/adapter/persistence/sqlite"
	"shein-verse-bot/internal/infra/db"
	"shein-verse-bot/internal/resilience/retry"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DialectSQLite, db.SQLiteDSN(filepath.Join(t.TempDir(), "snapshot.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.MigrateUp(ctx, conn, db.DialectSQLite))
	return conn
}

func entries() []entity.SnapshotEntry {
	first := time.Date(2026, 3, 1, 9, 30, 0, 123000000, time.UTC)
	return []entity.SnapshotEntry{
		{
			Product: entity.Product{
				ID:               "10234",
				Name:             "Men Graphic Tee",
				Price:            entity.Money{Amount: decimal.RequireFromString("499.00"), Currency: "INR"},
				HasPrice:         true,
				ImageURL:         "https://img.example.com/10234.jpg",
				BuyURL:           "https://www.example.in/men-graphic-tee-p-10234.html",
				Available:        true,
				Variants:         []string{"L", "M"},
				VariantSignature: entity.VariantSignatureOf([]string{"L", "M"}),
				Category:         entity.CategoryMen,
			},
			FirstSeen:     first,
			LastSeen:      first.Add(time.Hour),
			LastSeenCycle: 120,
			Notified:      entity.NotifiedNew,
		},
		{
			Product: entity.Product{
				ID:        "10235",
				Name:      "Cargo Pants",
				Price:     entity.Money{Currency: ""},
				Available: false,
			},
			FirstSeen:     first,
			LastSeen:      first,
			LastSeenCycle: 118,
			Notified:      entity.NotifiedOutOfStock,
		},
	}
}

var entryCmp = []cmp.Option{cmpopts.EquateEmpty()}

func TestSnapshotRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewSnapshotRepo(openTestDB(t))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	want := entries()
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, entryCmp...); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotRepo_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewSnapshotRepo(openTestDB(t))

	require.NoError(t, repo.Save(ctx, entries()))
	require.NoError(t, repo.Save(ctx, entries()[:1]))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "10234", got[0].Product.ID)

	require.NoError(t, repo.Save(ctx, nil))
	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotRepo_SaveRollsBackOnInsertError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM snapshot_entries`).WillReturnResult(sqlmock.NewResult(0, 2))
	prep := mock.ExpectPrepare(`INSERT INTO snapshot_entries`)
	prep.ExpectExec().WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	guard := persistence.NewGuard().WithRetry(retry.Config{MaxAttempts: 1})
	repo := sqlite.NewSnapshotRepoWithGuard(conn, guard)

	err = repo.Save(context.Background(), entries())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert 10234")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepo_LoadCorruptVariants(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	mock.ExpectQuery(`FROM snapshot_entries`).WillReturnRows(sqlmock.NewRows([]string{
		"product_id", "name", "price_amount", "currency", "image_url", "buy_url",
		"available", "variants", "variant_signature", "category",
		"first_seen", "last_seen", "last_seen_cycle", "notified",
	}).AddRow(
		"1", "Tee", "499", "INR", "", "", int64(1), "{not json", "", "",
		"2026-03-01T09:30:00Z", "2026-03-01T09:30:00Z", int64(3), "NONE",
	))

	guard := persistence.NewGuard().WithRetry(retry.Config{MaxAttempts: 1})
	repo := sqlite.NewSnapshotRepoWithGuard(conn, guard)

	_, err = repo.Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode variants")
}
