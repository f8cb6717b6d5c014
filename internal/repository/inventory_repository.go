package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enfermeria-api/internal/models"
)

const inventoryColumns = "id, name, category, unit, quantity, min_stock, active, created_at, updated_at"

// InventoryRepository manages infirmary supplies and their stock movements.
type InventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository constructs an InventoryRepository.
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// List returns active items ordered by name.
func (r *InventoryRepository) List(ctx context.Context) ([]models.InventoryItem, error) {
	items := make([]models.InventoryItem, 0)
	query := "SELECT " + inventoryColumns + " FROM inventory_items WHERE active = TRUE ORDER BY name ASC"
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// SnapshotAsOf reconstructs stock levels at asOf by reverting later movements.
func (r *InventoryRepository) SnapshotAsOf(ctx context.Context, asOf time.Time) ([]models.InventoryItem, error) {
	const query = `SELECT i.id, i.name, i.category, i.unit, i.quantity - COALESCE(SUM(m.delta), 0) AS quantity,
        i.min_stock, i.active, i.created_at, i.updated_at
        FROM inventory_items i
        LEFT JOIN inventory_movements m ON m.item_id = i.id AND m.created_at >= $1
        WHERE i.created_at < $1 AND (i.active = TRUE OR i.updated_at >= $1)
        GROUP BY i.id ORDER BY i.name ASC`
	items := make([]models.InventoryItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, asOf); err != nil {
		return nil, fmt.Errorf("inventory snapshot: %w", err)
	}
	return items, nil
}

// FindByID fetches an item by ID.
func (r *InventoryRepository) FindByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.GetContext(ctx, &item, "SELECT "+inventoryColumns+" FROM inventory_items WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create inserts an item and records its opening stock as a movement.
func (r *InventoryRepository) Create(ctx context.Context, item *models.InventoryItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	item.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin inventory tx: %w", err)
	}
	const query = `INSERT INTO inventory_items (id, name, category, unit, quantity, min_stock, active, created_at, updated_at)
        VALUES (:id, :name, :category, :unit, :quantity, :min_stock, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create inventory item: %w", err)
	}
	if err := insertMovement(ctx, tx, item.ID, item.Quantity, "alta", now); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit inventory tx: %w", err)
	}
	return nil
}

// Update persists item fields and records a movement when stock changed by delta.
func (r *InventoryRepository) Update(ctx context.Context, item *models.InventoryItem, delta int, reason string) error {
	now := time.Now().UTC()
	item.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin inventory tx: %w", err)
	}
	const query = `UPDATE inventory_items SET name = :name, category = :category, unit = :unit, quantity = :quantity,
        min_stock = :min_stock, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update inventory item: %w", err)
	}
	if err := insertMovement(ctx, tx, item.ID, delta, reason, now); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit inventory tx: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an item. It reports false when nothing was updated.
func (r *InventoryRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE inventory_items SET active = FALSE, updated_at = $2 WHERE id = $1 AND active = TRUE`, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("deactivate inventory item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate inventory item: %w", err)
	}
	return n > 0, nil
}

func insertMovement(ctx context.Context, tx *sqlx.Tx, itemID string, delta int, reason string, at time.Time) error {
	if delta == 0 {
		return nil
	}
	const query = `INSERT INTO inventory_movements (id, item_id, delta, reason, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), itemID, delta, reason, at); err != nil {
		return fmt.Errorf("record inventory movement: %w", err)
	}
	return nil
}
