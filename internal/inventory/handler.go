package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerhouse/ledgerhouse/internal/platform/httpx"
	"github.com/ledgerhouse/ledgerhouse/internal/rbac"
	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	keys      shared.KeyRegistrar
	validator *validator.Validate
}

// NewHandler constructs the inventory handler. keys may be nil, in which
// case Idempotency-Key headers are not enforced.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, keys shared.KeyRegistrar) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, keys: keys, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInventoryView, rbac.PermInventoryAdjust))
		r.Get("/items", h.listItems)
		r.Get("/items/{id}", h.getItem)
		r.Get("/items/{id}/stock", h.getStock)
		r.Get("/items/{id}/movements", h.listMovements)
		r.Get("/low-stock", h.listLowStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInventoryAdjust))
		r.Post("/items", h.createItem)
		r.Patch("/items/{id}", h.updateItem)
		r.Post("/items/{id}/adjustments", h.postAdjustment)
	})
}

type itemRequest struct {
	Name          string  `json:"name" validate:"required,max=200"`
	Unit          string  `json:"unit" validate:"required,max=20"`
	PurchasePrice float64 `json:"purchase_price" validate:"gte=0"`
	SalePrice     float64 `json:"sale_price" validate:"gte=0"`
	InitialStock  float64 `json:"initial_stock" validate:"gte=0"`
	ReorderPoint  float64 `json:"reorder_point" validate:"gte=0"`
}

type adjustmentRequest struct {
	Mode      string  `json:"mode" validate:"required,oneof=increase decrease set"`
	Quantity  float64 `json:"quantity"`
	Target    float64 `json:"target"`
	Reason    string  `json:"reason" validate:"required"`
	Reference string  `json:"reference,omitempty"`
}

type adjustmentResponse struct {
	NewStock   float64     `json:"new_stock"`
	MovementID int64       `json:"movement_id"`
	Clamped    bool        `json:"clamped"`
	Status     StockStatus `json:"status"`
}

type itemResponse struct {
	Item
	Status StockStatus `json:"status"`
}

type stockResponse struct {
	CurrentStock float64     `json:"current_stock"`
	ReorderPoint float64     `json:"reorder_point"`
	Unit         string      `json:"unit"`
	Status       StockStatus `json:"status"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := ListFilter{Search: q.Get("search"), Page: page, PerPage: perPage}

	items, total, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		h.logger.Error("list items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemResponse{Item: item, Status: StatusOf(item)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      out,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemResponse{Item: item, Status: StatusOf(item)})
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{
		CurrentStock: item.CurrentStock,
		ReorderPoint: item.ReorderPoint,
		Unit:         item.Unit,
		Status:       StatusOf(item),
	})
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid item", validationFields(err))
		return
	}
	item, err := h.service.RegisterItem(r.Context(), ItemInput{
		Name:          req.Name,
		Unit:          req.Unit,
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		InitialStock:  req.InitialStock,
		ReorderPoint:  req.ReorderPoint,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, itemResponse{Item: item, Status: StatusOf(item)})
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid item", validationFields(err))
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, ItemInput{
		Name:          req.Name,
		Unit:          req.Unit,
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		ReorderPoint:  req.ReorderPoint,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemResponse{Item: item, Status: StatusOf(item)})
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid adjustment", validationFields(err))
		return
	}

	key := r.Header.Get(shared.IdempotencyKeyHeader)
	if key != "" && h.keys != nil {
		if err := h.keys.Register(r.Context(), key, "inventory"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "adjustment with this idempotency key was already processed")
				return
			}
			h.logger.Error("register idempotency key", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not register idempotency key")
			return
		}
	}

	result, err := h.service.AdjustStock(r.Context(), id, AdjustmentInput{
		Mode:      AdjustMode(req.Mode),
		Quantity:  req.Quantity,
		Target:    req.Target,
		Reason:    req.Reason,
		Reference: req.Reference,
		ActorID:   currentUserID(r),
	})
	if err != nil {
		if key != "" && h.keys != nil {
			if rerr := h.keys.Release(r.Context(), key); rerr != nil {
				h.logger.Error("release idempotency key", slog.Any("error", rerr))
			}
		}
		h.logger.Error("post adjustment", slog.Int64("item_id", id), slog.Any("error", err))
		h.respondServiceError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, adjustmentResponse{
		NewStock:   result.Item.CurrentStock,
		MovementID: result.Movement.ID,
		Clamped:    result.Clamped,
		Status:     StatusOf(result.Item),
	})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	movements, err := h.service.Movements(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListBelowReorder(r.Context())
	if err != nil {
		h.logger.Error("list low stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemResponse{Item: item, Status: StatusOf(item)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrZeroAdjustment),
		errors.Is(err, ErrInvalidMode),
		errors.Is(err, ErrNegativeTarget):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func validationFields(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
	}
	return fields
}

func currentUserID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}
