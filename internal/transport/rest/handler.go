// Package rest provides HTTP handlers for option-related operations.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	optionerrors "github.com/abgdnv/gocommerce/option_service/internal/errors"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/web"
	"github.com/abgdnv/gocommerce/option_service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  service.OptionService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new instance of Handler with the provided service.
func NewHandler(service service.OptionService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the option service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/items/{itemId}/options", func(r chi.Router) {
			r.Get("/", h.ListByItem)
			r.Post("/", h.AddVariant)
		})
		r.Route("/options/{id}", func(r chi.Router) {
			r.Get("/", h.GetOption)
			r.Put("/variants/{value}", h.UpdateVariant)
		})
	})

	r.Get("/healthz", h.HealthCheck)
}

// AddVariant attaches a variant to an item, creating the option on first use.
func (h *Handler) AddVariant(w http.ResponseWriter, r *http.Request) {
	itemID, ok := web.ParseID(w, r, h.logger, "itemId")
	if !ok {
		return
	}
	var dto service.VariantCreateDto
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to add variant", "item_id", itemID, "name", dto.Name, "value", dto.Value)

	option, err := h.service.AddVariant(r.Context(), itemID, dto)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to add variant")
		return
	}
	h.logger.InfoContext(r.Context(), "Variant added", "option_id", option.ID, "item_id", itemID, "value", dto.Value)
	web.RespondJSON(w, h.logger, http.StatusCreated, option)
}

// ListByItem returns all options of an item.
func (h *Handler) ListByItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := web.ParseID(w, r, h.logger, "itemId")
	if !ok {
		return
	}
	list, err := h.service.ListOptionsByParent(r.Context(), itemID)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to fetch options of item %s", itemID))
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved options", "item_id", itemID, "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// GetOption returns a single option.
func (h *Handler) GetOption(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger, "id")
	if !ok {
		return
	}
	option, err := h.service.GetOption(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to retrieve option with ID %s", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, option)
}

// UpdateVariant renames the option and updates the variant currently holding {value}.
func (h *Handler) UpdateVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger, "id")
	if !ok {
		return
	}
	currentValue, ok := pathValue(r, "value")
	if !ok {
		web.RespondError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Invalid value: %s", r.PathValue("value")))
		return
	}
	var dto service.VariantUpdateDto
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to update variant", "option_id", id, "value", currentValue)

	option, err := h.service.UpdateVariant(r.Context(), id, currentValue, dto)
	if err != nil {
		h.respondServiceError(w, r, err, "Error when update option")
		return
	}
	h.logger.InfoContext(r.Context(), "Variant updated", "option_id", id, "previous_value", currentValue, "value", dto.Value)
	web.RespondJSON(w, h.logger, http.StatusOK, option)
}

// HealthCheck is a simple liveness endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// pathValue returns the decoded path parameter. chi matches on the escaped path when the URL has one.
func pathValue(r *http.Request, key string) (string, bool) {
	v := r.PathValue(key)
	if r.URL.RawPath != "" {
		var err error
		if v, err = url.PathUnescape(v); err != nil {
			return "", false
		}
	}
	return v, v != ""
}

// decodeAndValidate reads a JSON body into dst and validates it, writing a 400 on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondValidationError(w, h.logger, errorResponse)
			return false
		}
		h.logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondServiceError maps service errors to HTTP statuses. fallback is the message for unexpected errors.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, optionerrors.ErrVariantConflict):
		h.logger.InfoContext(r.Context(), "Variant conflict", "error", err)
		web.RespondError(w, h.logger, http.StatusConflict, err.Error())
	case errors.Is(err, optionerrors.ErrItemNotFound):
		h.logger.WarnContext(r.Context(), "Item not found", "error", err)
		web.RespondError(w, h.logger, http.StatusNotFound, optionerrors.ErrItemNotFound.Error())
	case errors.Is(err, optionerrors.ErrOptionNotFound):
		h.logger.WarnContext(r.Context(), "Option not found", "error", err)
		web.RespondError(w, h.logger, http.StatusNotFound, optionerrors.ErrOptionNotFound.Error())
	case errors.Is(err, optionerrors.ErrInvalidStock):
		h.logger.WarnContext(r.Context(), "Invalid stock", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, optionerrors.ErrInvalidStock.Error())
	case errors.Is(err, optionerrors.ErrOptimisticLock):
		h.logger.WarnContext(r.Context(), "Optimistic lock conflict", "error", err)
		web.RespondError(w, h.logger, http.StatusConflict, "Option has been modified by another user. Please reload and try again.")
	case errors.Is(err, optionerrors.ErrUpdateFailed):
		h.logger.ErrorContext(r.Context(), "Option update failed", "error", err)
		web.RespondError(w, h.logger, http.StatusExpectationFailed, fallback)
	case errors.Is(err, optionerrors.ErrCatalogUnavailable):
		h.logger.ErrorContext(r.Context(), "Catalog unavailable", "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Item catalog is temporarily unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "Unexpected error", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, fallback)
	}
}
