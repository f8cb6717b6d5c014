package models

import "time"

// InventoryItem is a stocked infirmary supply.
type InventoryItem struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"nombre"`
	Category  string    `db:"category" json:"categoria"`
	Unit      string    `db:"unit" json:"unidad"`
	Quantity  int       `db:"quantity" json:"cantidad"`
	MinStock  int       `db:"min_stock" json:"stock_minimo"`
	Active    bool      `db:"active" json:"activo"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the item is at or under its minimum.
func (i InventoryItem) LowStock() bool {
	return i.Quantity <= i.MinStock
}

// InventoryMovement records a stock change for an item.
type InventoryMovement struct {
	ID        string    `db:"id" json:"id"`
	ItemID    string    `db:"item_id" json:"insumo_id"`
	Delta     int       `db:"delta" json:"cantidad"`
	Reason    string    `db:"reason" json:"motivo"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateInventoryItemRequest adds a supply with its opening stock.
type CreateInventoryItemRequest struct {
	Name     string `json:"nombre" validate:"required,max=120"`
	Category string `json:"categoria" validate:"max=60"`
	Unit     string `json:"unidad" validate:"max=30"`
	Quantity int    `json:"cantidad" validate:"gte=0"`
	MinStock int    `json:"stock_minimo" validate:"gte=0"`
}

// UpdateInventoryItemRequest patches an item. A quantity change is stored as a movement.
type UpdateInventoryItemRequest struct {
	Name     *string `json:"nombre" validate:"omitempty,max=120"`
	Category *string `json:"categoria" validate:"omitempty,max=60"`
	Unit     *string `json:"unidad" validate:"omitempty,max=30"`
	Quantity *int    `json:"cantidad" validate:"omitempty,gte=0"`
	MinStock *int    `json:"stock_minimo" validate:"omitempty,gte=0"`
	Reason   string  `json:"motivo" validate:"max=200"`
}
