package invoices

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

// PDFRenderer produces a printable document for an invoice.
type PDFRenderer interface {
	RenderInvoice(ctx context.Context, invoice *Invoice) ([]byte, error)
}

// Handler wires HTTP endpoints for the invoices module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	pdf       PDFRenderer
	keys      shared.KeyRegistrar
	validator *validator.Validate
}

// NewHandler constructs the invoices handler. pdf may be nil when no
// rendering backend is configured; keys may be nil, in which case
// Idempotency-Key headers are not enforced.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, pdf PDFRenderer, keys shared.KeyRegistrar) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, pdf: pdf, keys: keys, validator: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInvoicesView, rbac.PermInvoicesEdit))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/payments", h.listPayments)
		r.Get("/{id}/pdf", h.getPDF)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInvoicesEdit))
		r.Post("/", h.create)
		r.Post("/{id}/send", h.send)
		r.Post("/{id}/void", h.void)
		r.Post("/{id}/payments", h.recordPayment)
	})
}

type invoiceItemRequest struct {
	ProductID   int64   `json:"product_id"`
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type invoiceRequest struct {
	CustomerName    string               `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string               `json:"customer_email" validate:"omitempty,email"`
	CustomerAddress string               `json:"customer_address" validate:"max=500"`
	IssueDate       time.Time            `json:"issue_date" validate:"required"`
	DueDate         time.Time            `json:"due_date"`
	TaxRate         float64              `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountAmount  float64              `json:"discount_amount" validate:"gte=0"`
	Notes           string               `json:"notes"`
	Items           []invoiceItemRequest `json:"items" validate:"required,min=1,dive"`
}

type paymentRequest struct {
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	Method    string    `json:"method" validate:"required,oneof=cash transfer card other"`
	Reference string    `json:"reference" validate:"max=100"`
	PaidAt    time.Time `json:"paid_at"`
}

type invoiceResponse struct {
	Invoice
	Outstanding float64 `json:"outstanding"`
	Overdue     bool    `json:"overdue"`
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
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown invoice status")
		return
	}

	invoices, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	now := h.service.now()
	out := make([]invoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		out = append(out, invoiceResponse{Invoice: invoice, Outstanding: invoice.Outstanding(), Overdue: invoice.Overdue(now)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   out,
		"pagination": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoiceResponse{Invoice: *invoice, Outstanding: invoice.Outstanding(), Overdue: invoice.Overdue(h.service.now())})
}

func (h *Handler) getPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "document rendering is not configured")
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	pdf, err := h.pdf.RenderInvoice(r.Context(), invoice)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "document rendering failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+invoice.Number+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid invoice", invoiceValidationFields(err))
		return
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
	invoice, err := h.service.Create(r.Context(), InvoiceInput{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerAddress: req.CustomerAddress,
		IssueDate:       req.IssueDate,
		DueDate:         req.DueDate,
		TaxRate:         req.TaxRate,
		DiscountAmount:  req.DiscountAmount,
		Notes:           req.Notes,
		Items:           items,
	}, currentInvoiceUserID(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoiceResponse{Invoice: *invoice, Outstanding: invoice.Outstanding()})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.Send(r.Context(), id, currentInvoiceUserID(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoiceResponse{Invoice: *invoice, Outstanding: invoice.Outstanding()})
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.Void(r.Context(), id, currentInvoiceUserID(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoiceResponse{Invoice: *invoice, Outstanding: invoice.Outstanding()})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid payment", invoiceValidationFields(err))
		return
	}

	key := r.Header.Get(shared.IdempotencyKeyHeader)
	if key != "" && h.keys != nil {
		if err := h.keys.Register(r.Context(), key, "invoices"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "payment with this idempotency key was already processed")
				return
			}
			h.logger.Error("register idempotency key", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not register idempotency key")
			return
		}
	}

	invoice, payment, err := h.service.RecordPayment(r.Context(), id, PaymentInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		PaidAt:    req.PaidAt,
		ActorID:   currentInvoiceUserID(r),
	})
	if err != nil {
		if key != "" && h.keys != nil {
			if rerr := h.keys.Release(r.Context(), key); rerr != nil {
				h.logger.Error("release idempotency key", slog.Any("error", rerr))
			}
		}
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"payment": payment,
		"invoice": invoiceResponse{Invoice: *invoice, Outstanding: invoice.Outstanding()},
	})
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.Payments(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvoiceClosed), errors.Is(err, ErrOverpayment):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidPayment), errors.Is(err, ErrNoItems), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func invoiceValidationFields(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
	}
	return fields
}

func currentInvoiceUserID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}
