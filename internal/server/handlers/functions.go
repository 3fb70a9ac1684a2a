package handlers

import (
	"errors"
	"net/http"

	"github.com/Praises003/aether/internal/registry"
	"github.com/Praises003/aether/internal/requestctx"
)

// ListFunctions handles GET /api/functions.
func (h *Handlers) ListFunctions(w http.ResponseWriter, r *http.Request) {
	descs, err := h.functions.List(r.Context())
	if err != nil {
		requestctx.Logger(r.Context()).Error().Err(err).Msg("Failed to list functions")
		InternalError(w, "Failed to list functions")
		return
	}
	if descs == nil {
		descs = []*registry.Descriptor{}
	}
	JSON(w, http.StatusOK, descs)
}

// GetFunction handles GET /api/functions/{id}.
func (h *Handlers) GetFunction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	desc, err := h.functions.Get(r.Context(), id)
	if errors.Is(err, registry.ErrNotFound) {
		Error(w, http.StatusNotFound, "FUNCTION_NOT_FOUND", "Function not found: "+registry.NormalizeID(id))
		return
	}
	if err != nil {
		requestctx.Logger(r.Context()).Error().Err(err).Str("function", id).Msg("Failed to get function")
		InternalError(w, "Failed to get function")
		return
	}

	JSON(w, http.StatusOK, desc)
}

// UpsertFunction handles POST /api/functions.
func (h *Handlers) UpsertFunction(w http.ResponseWriter, r *http.Request) {
	desc := registry.NewDescriptor()
	if err := decodeJSON(r, desc); err != nil {
		BadRequest(w, err.Error())
		return
	}

	err := h.functions.Upsert(r.Context(), desc)
	if errors.Is(err, registry.ErrInvalidDescriptor) {
		Error(w, http.StatusBadRequest, "INVALID_FUNCTION", err.Error())
		return
	}
	if err != nil {
		requestctx.Logger(r.Context()).Error().Err(err).Str("function", desc.Identifier).Msg("Failed to save function")
		InternalError(w, "Failed to save function")
		return
	}

	saved, err := h.functions.Get(r.Context(), desc.Identifier)
	if err != nil {
		saved = desc
	}

	requestctx.Logger(r.Context()).Info().Str("function", saved.Identifier).Msg("Function saved")
	JSON(w, http.StatusCreated, saved)
}
