package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/infra/adapter/persistence"
	"shein-verse-bot/internal/repository"
)

type SnapshotRepo struct {
	db    *sql.DB
	guard *persistence.Guard
}

func NewSnapshotRepo(db *sql.DB) repository.SnapshotRepository {
	return NewSnapshotRepoWithGuard(db, persistence.NewGuard())
}

func NewSnapshotRepoWithGuard(db *sql.DB, guard *persistence.Guard) repository.SnapshotRepository {
	return &SnapshotRepo{db: db, guard: guard}
}

const selectSnapshot = `
SELECT
    product_id, name, price_amount, currency, image_url, buy_url,
    available, variants, variant_signature, category,
    first_seen, last_seen, last_seen_cycle, notified
FROM snapshot_entries
ORDER BY product_id ASC`

const insertSnapshot = `
INSERT INTO snapshot_entries (
    product_id, name, price_amount, currency, image_url, buy_url,
    available, variants, variant_signature, category,
    first_seen, last_seen, last_seen_cycle, notified
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (repo *SnapshotRepo) Load(ctx context.Context) ([]entity.SnapshotEntry, error) {
	var entries []entity.SnapshotEntry
	err := repo.guard.Do(ctx, "snapshot_load", func() error {
		var err error
		entries, err = repo.load(ctx)
		return err
	})
	return entries, err
}

func (repo *SnapshotRepo) load(ctx context.Context) ([]entity.SnapshotEntry, error) {
	rows, err := repo.db.QueryContext(ctx, selectSnapshot)
	if err != nil {
		return nil, fmt.Errorf("Load: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]entity.SnapshotEntry, 0, 64)
	for rows.Next() {
		var (
			e                   entity.SnapshotEntry
			price               decimal.NullDecimal
			variants            string
			firstSeen, lastSeen string
			notified            string
		)
		if err := rows.Scan(
			&e.Product.ID, &e.Product.Name, &price, &e.Product.Price.Currency,
			&e.Product.ImageURL, &e.Product.BuyURL, &e.Product.Available,
			&variants, &e.Product.VariantSignature, &e.Product.Category,
			&firstSeen, &lastSeen, &e.LastSeenCycle, &notified,
		); err != nil {
			return nil, fmt.Errorf("Load: Scan: %w", err)
		}

		if price.Valid {
			e.Product.Price.Amount = price.Decimal
			e.Product.HasPrice = true
		}
		if e.Product.Variants, err = persistence.DecodeVariants([]byte(variants)); err != nil {
			return nil, fmt.Errorf("Load: %s: %w", e.Product.ID, err)
		}
		if e.FirstSeen, err = time.Parse(time.RFC3339Nano, firstSeen); err != nil {
			return nil, fmt.Errorf("Load: %s: first_seen: %w", e.Product.ID, err)
		}
		if e.LastSeen, err = time.Parse(time.RFC3339Nano, lastSeen); err != nil {
			return nil, fmt.Errorf("Load: %s: last_seen: %w", e.Product.ID, err)
		}
		e.Notified = entity.ParseNotifiedState(notified)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Load: rows.Err: %w", err)
	}
	return entries, nil
}

// Save replaces the stored snapshot with entries in one transaction.
func (repo *SnapshotRepo) Save(ctx context.Context, entries []entity.SnapshotEntry) error {
	return repo.guard.Do(ctx, "snapshot_save", func() error {
		return repo.save(ctx, entries)
	})
}

func (repo *SnapshotRepo) save(ctx context.Context, entries []entity.SnapshotEntry) (err error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Save: BeginTx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM snapshot_entries`); err != nil {
		return fmt.Errorf("Save: delete: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSnapshot)
	if err != nil {
		return fmt.Errorf("Save: PrepareContext: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		variants, encErr := persistence.EncodeVariants(e.Product.Variants)
		if encErr != nil {
			return fmt.Errorf("Save: %s: %w", e.Product.ID, encErr)
		}
		price := decimal.NullDecimal{Decimal: e.Product.Price.Amount, Valid: e.Product.HasPrice}

		if _, err = stmt.ExecContext(ctx,
			e.Product.ID, e.Product.Name, price, e.Product.Price.Currency,
			e.Product.ImageURL, e.Product.BuyURL, e.Product.Available,
			variants, e.Product.VariantSignature, e.Product.Category,
			e.FirstSeen.UTC().Format(time.RFC3339Nano), e.LastSeen.UTC().Format(time.RFC3339Nano),
			e.LastSeenCycle, e.Notified.String(),
		); err != nil {
			return fmt.Errorf("Save: insert %s: %w", e.Product.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Save: Commit: %w", err)
	}
	return nil
}
