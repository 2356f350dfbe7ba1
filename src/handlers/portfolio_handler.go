// src/handlers/portfolio_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/folioimport/src/config"
	"github.com/username/folioimport/src/logger"
	"github.com/username/folioimport/src/storage"
	"github.com/username/folioimport/src/utils"
)

type PortfolioHandler struct {
	store storage.HoldingsStore
}

func NewPortfolioHandler(store storage.HoldingsStore) *PortfolioHandler {
	return &PortfolioHandler{store: store}
}

// HandleGetHoldings returns the committed position set with ETag support.
func (h *PortfolioHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.ListHoldings(r.Context())
	if err != nil {
		logger.L.Error("Error retrieving holdings from store", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving holdings: %v", err), http.StatusInternalServerError)
		return
	}

	currentETag, etagErr := utils.GenerateETag(positions)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for holdings", "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				logger.L.Debug("ETag match for holdings", "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	utils.SendJSON(w, positions, http.StatusOK)
}

// HandleClearHoldings wipes every stored position. This is the degenerate
// "replace with empty set" and is gated by a typed confirmation phrase.
func (h *PortfolioHandler) HandleClearHoldings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confirmation string `json:"confirmation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Confirmation != config.Cfg.ClearConfirmationPhrase {
		logger.L.Warn("Clear-all rejected: confirmation phrase mismatch")
		utils.SendJSONError(w, fmt.Sprintf("type %q to confirm deleting all holdings", config.Cfg.ClearConfirmationPhrase), http.StatusBadRequest)
		return
	}

	removed, err := h.store.ClearAll(r.Context())
	if err != nil {
		logger.L.Error("Error clearing holdings", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error clearing holdings: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]int{"removed": removed}, http.StatusOK)
}
