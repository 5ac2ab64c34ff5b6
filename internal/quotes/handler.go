package quotes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerhouse/ledgerhouse/internal/platform/httpx"
	"github.com/ledgerhouse/ledgerhouse/internal/rbac"
	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

// PDFRenderer produces a printable document for a quote.
type PDFRenderer interface {
	RenderQuote(ctx context.Context, quote *Quote) ([]byte, error)
}

// Handler wires HTTP endpoints for the quotes module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	pdf       PDFRenderer
	validator *validator.Validate
}

// NewHandler constructs the quotes handler. pdf may be nil when no
// rendering backend is configured.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, pdf PDFRenderer) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, pdf: pdf, validator: validator.New()}
}

// MountRoutes registers quote routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermQuotesView, rbac.PermQuotesEdit, rbac.PermQuotesApprove))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/pdf", h.getPDF)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotesEdit))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/{id}/send", h.send)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotesApprove))
		r.Post("/{id}/accept", h.accept)
		r.Post("/{id}/reject", h.reject)
		r.Post("/{id}/convert", h.convert)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAdmin))
		r.Post("/expiry-sweep", h.sweepExpired)
	})
}

type quoteItemRequest struct {
	ProductID   int64   `json:"product_id"`
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type quoteRequest struct {
	CustomerName    string             `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string             `json:"customer_email" validate:"omitempty,email"`
	CustomerAddress string             `json:"customer_address" validate:"max=500"`
	QuoteDate       time.Time          `json:"quote_date" validate:"required"`
	ValidUntil      time.Time          `json:"valid_until" validate:"required"`
	TaxRate         float64            `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountAmount  float64            `json:"discount_amount" validate:"gte=0"`
	Notes           string             `json:"notes"`
	Terms           string             `json:"terms"`
	Send            bool               `json:"send"`
	Items           []quoteItemRequest `json:"items" validate:"required,min=1,dive"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type quoteResponse struct {
	Quote
	Expiry *ExpiryStatus `json:"expiry,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	req := ListRequest{
		Status:  Status(q.Get("status")),
		Search:  q.Get("search"),
		Page:    page,
		PerPage: perPage,
	}
	if req.Status != "" && !req.Status.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown quote status")
		return
	}

	quotes, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list quotes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	now := h.service.Now()
	out := make([]quoteResponse, 0, len(quotes))
	for _, quote := range quotes {
		out = append(out, withExpiry(quote, now))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"quotes":     out,
		"pagination": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	quote, expiry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	resp := quoteResponse{Quote: *quote}
	if !quote.Status.Terminal() && quote.Status != StatusExpired {
		resp.Expiry = &expiry
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "document rendering is not configured")
		return
	}
	quote, _, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	pdf, err := h.pdf.RenderQuote(r.Context(), quote)
	if err != nil {
		h.logger.Error("render quote pdf", slog.Int64("quote_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "document rendering failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+quote.Number+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	quote, err := h.service.Create(r.Context(), input, currentQuoteUserID(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, withExpiry(*quote, h.service.Now()))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	quote, err := h.service.Update(r.Context(), id, input, currentQuoteUserID(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, withExpiry(*quote, h.service.Now()))
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, func(id, actorID int64) (*Quote, error) {
		return h.service.Send(r.Context(), id, actorID)
	})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, func(id, actorID int64) (*Quote, error) {
		return h.service.Accept(r.Context(), id, actorID)
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid rejection", quoteValidationFields(err))
		return
	}
	quote, err := h.service.Reject(r.Context(), id, currentQuoteUserID(r), req.Reason)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quoteResponse{Quote: *quote})
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, func(id, actorID int64) (*Quote, error) {
		return h.service.Convert(r.Context(), id, actorID)
	})
}

func (h *Handler) sweepExpired(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.MarkExpired(r.Context())
	if err != nil {
		h.logger.Error("expiry sweep", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"expired": count})
}

func (h *Handler) doTransition(w http.ResponseWriter, r *http.Request, fn func(id, actorID int64) (*Quote, error)) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	quote, err := fn(id, currentQuoteUserID(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, withExpiry(*quote, h.service.Now()))
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (QuoteInput, bool) {
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return QuoteInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid quote", quoteValidationFields(err))
		return QuoteInput{}, false
	}
	items := make([]ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ItemInput{
			ProductID:   item.ProductID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return QuoteInput{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerAddress: req.CustomerAddress,
		QuoteDate:       req.QuoteDate,
		ValidUntil:      req.ValidUntil,
		TaxRate:         req.TaxRate,
		DiscountAmount:  req.DiscountAmount,
		Notes:           req.Notes,
		Terms:           req.Terms,
		Send:            req.Send,
		Items:           items,
	}, true
}

func (h *Handler) quoteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrQuoteNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrQuoteExpired):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func withExpiry(quote Quote, now time.Time) quoteResponse {
	resp := quoteResponse{Quote: quote}
	if !quote.Status.Terminal() && quote.Status != StatusExpired {
		status := ExpiryStatusOf(quote.ValidUntil, now)
		resp.Expiry = &status
	}
	return resp
}

func quoteValidationFields(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
	}
	return fields
}

func currentQuoteUserID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}
