// src/handlers/symbol_handler.go
package handlers

import (
	"net/http"

	"github.com/username/folioimport/src/services"
	"github.com/username/folioimport/src/utils"
)

// Autocomplete results stay small: this is a correction aid, not a screener.
const maxSymbolMatches = 8

type SymbolHandler struct {
	symbols services.SymbolSearcher
}

func NewSymbolHandler(symbols services.SymbolSearcher) *SymbolHandler {
	return &SymbolHandler{symbols: symbols}
}

func (h *SymbolHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		utils.SendJSONError(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}
	matches := h.symbols.Search(query, maxSymbolMatches)
	utils.SendJSON(w, matches, http.StatusOK)
}
