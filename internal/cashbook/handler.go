package cashbook

import (
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

// Handler wires HTTP endpoints for the cashbook module. Expenses and
// incomes mount as two routes over one service.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs the cashbook handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountExpenseRoutes registers expense routes.
func (h *Handler) MountExpenseRoutes(r chi.Router) {
	h.mountKind(r, KindExpense)
}

// MountIncomeRoutes registers income routes.
func (h *Handler) MountIncomeRoutes(r chi.Router) {
	h.mountKind(r, KindIncome)
}

func (h *Handler) mountKind(r chi.Router, kind Kind) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermFinanceView))
		r.Get("/", h.list(kind))
		r.Get("/{id}", h.get(kind))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermFinanceView))
		r.Post("/", h.record(kind))
	})
}

type entryRequest struct {
	EntryDate   time.Time `json:"entry_date"`
	Category    string    `json:"category" validate:"required,max=100"`
	Description string    `json:"description" validate:"max=500"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) record(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req entryRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.FieldProblem(w, "invalid entry", entryValidationFields(err))
			return
		}

		entry, err := h.service.Record(r.Context(), kind, EntryInput{
			EntryDate:   req.EntryDate,
			Category:    req.Category,
			Description: req.Description,
			Amount:      req.Amount,
			ActorID:     currentCashbookUserID(r),
		})
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, entry)
	}
}

func (h *Handler) get(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
			return
		}
		entry, err := h.service.Get(r.Context(), kind, id)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, entry)
	}
}

func (h *Handler) list(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		perPage, _ := strconv.Atoi(q.Get("per_page"))
		req := ListRequest{Page: page, PerPage: perPage}
		if from := q.Get("from"); from != "" {
			if t, err := time.Parse(time.DateOnly, from); err == nil {
				req.From = t
			}
		}
		if to := q.Get("to"); to != "" {
			if t, err := time.Parse(time.DateOnly, to); err == nil {
				req.To = t
			}
		}

		entries, total, err := h.service.List(r.Context(), kind, req)
		if err != nil {
			h.logger.Error("list cashbook entries", slog.String("kind", string(kind)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"entries":    entries,
			"pagination": shared.NewPagination(req.Page, req.PerPage, total),
		})
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func entryValidationFields(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
	}
	return fields
}

func currentCashbookUserID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}
