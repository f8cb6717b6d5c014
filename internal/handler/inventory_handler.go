package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	"github.com/noah-isme/enfermeria-api/pkg/response"
)

type inventoryService interface {
	List(ctx context.Context) ([]models.InventoryItem, error)
	Get(ctx context.Context, id string) (*models.InventoryItem, error)
	Create(ctx context.Context, req models.CreateInventoryItemRequest, meta service.AuditMeta) (*models.InventoryItem, error)
	Update(ctx context.Context, id string, req models.UpdateInventoryItemRequest, meta service.AuditMeta) (*models.InventoryItem, error)
	Delete(ctx context.Context, id string, meta service.AuditMeta) error
}

// InventoryHandler serves infirmary supplies.
type InventoryHandler struct {
	service inventoryService
}

// NewInventoryHandler builds the handler.
func NewInventoryHandler(svc inventoryService) *InventoryHandler {
	return &InventoryHandler{service: svc}
}

// List godoc
// @Summary List supplies
// @Tags Inventory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /inventario [get]
func (h *InventoryHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	low := 0
	for _, item := range items {
		if item.LowStock() {
			low++
		}
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"total": len(items), "bajo_stock": low})
}

// Get godoc
// @Summary Supply detail
// @Tags Inventory
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /inventario/{id} [get]
func (h *InventoryHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Add supply
// @Tags Inventory
// @Accept json
// @Produce json
// @Param payload body models.CreateInventoryItemRequest true "Supply"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /inventario [post]
func (h *InventoryHandler) Create(c *gin.Context) {
	var req models.CreateInventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update supply
// @Description A quantity change is recorded as an inventory movement
// @Tags Inventory
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body models.UpdateInventoryItemRequest true "Patch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /inventario/{id} [put]
func (h *InventoryHandler) Update(c *gin.Context) {
	var req models.UpdateInventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Remove supply
// @Tags Inventory
// @Param id path string true "Item ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /inventario/{id} [delete]
func (h *InventoryHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), auditMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
