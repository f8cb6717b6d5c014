package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/realtime"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type inventoryRepository interface {
	List(ctx context.Context) ([]models.InventoryItem, error)
	FindByID(ctx context.Context, id string) (*models.InventoryItem, error)
	Create(ctx context.Context, item *models.InventoryItem) error
	Update(ctx context.Context, item *models.InventoryItem, delta int, reason string) error
	Deactivate(ctx context.Context, id string) (bool, error)
}

// InventoryService manages infirmary supplies.
type InventoryService struct {
	repo      inventoryRepository
	audit     auditLogRepository
	events    EventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInventoryService constructs the service.
func NewInventoryService(repo inventoryRepository, audit auditLogRepository, events EventPublisher, validate *validator.Validate, logger *zap.Logger) *InventoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{repo: repo, audit: audit, events: events, validator: validate, logger: logger}
}

// List returns active items.
func (s *InventoryService) List(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inventory")
	}
	if items == nil {
		items = []models.InventoryItem{}
	}
	return items, nil
}

// Get returns one item.
func (s *InventoryService) Get(ctx context.Context, id string) (*models.InventoryItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inventory item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inventory item")
	}
	return item, nil
}

// Create adds a supply; its opening stock is stored as a movement.
func (s *InventoryService) Create(ctx context.Context, req models.CreateInventoryItemRequest, meta AuditMeta) (*models.InventoryItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inventory payload")
	}
	item := &models.InventoryItem{
		Name:     strings.TrimSpace(req.Name),
		Category: req.Category,
		Unit:     req.Unit,
		Quantity: req.Quantity,
		MinStock: req.MinStock,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create inventory item")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionInventoryAdjust, "inventory_item", item.ID, item)
	publishEvent(ctx, s.events, s.logger, realtime.EventInsert, realtime.TopicInventory, item.ID, item)
	return item, nil
}

// Update patches an item. Quantity changes are recorded as a movement.
func (s *InventoryService) Update(ctx context.Context, id string, req models.UpdateInventoryItemRequest, meta AuditMeta) (*models.InventoryItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inventory payload")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "inventory item not found")
	}
	delta := 0
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.Unit != nil {
		item.Unit = *req.Unit
	}
	if req.MinStock != nil {
		item.MinStock = *req.MinStock
	}
	if req.Quantity != nil {
		delta = *req.Quantity - item.Quantity
		item.Quantity = *req.Quantity
	}
	reason := req.Reason
	if reason == "" {
		reason = "ajuste"
	}
	if err := s.repo.Update(ctx, item, delta, reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update inventory item")
	}
	if delta != 0 {
		recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionInventoryAdjust, "inventory_item", item.ID, map[string]int{"delta": delta})
	}
	publishEvent(ctx, s.events, s.logger, realtime.EventUpdate, realtime.TopicInventory, item.ID, item)
	return item, nil
}

// Delete deactivates an item, keeping its movements for historical snapshots.
func (s *InventoryService) Delete(ctx context.Context, id string, meta AuditMeta) error {
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete inventory item")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "inventory item not found")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionInventoryAdjust, "inventory_item", id, map[string]bool{"activo": false})
	publishEvent(ctx, s.events, s.logger, realtime.EventDelete, realtime.TopicInventory, id, nil)
	return nil
}
