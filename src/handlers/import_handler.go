// src/handlers/import_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/username/folioimport/src/config"
	"github.com/username/folioimport/src/importer"
	"github.com/username/folioimport/src/logger"
	"github.com/username/folioimport/src/models"
	"github.com/username/folioimport/src/security/validation"
	"github.com/username/folioimport/src/services"
	"github.com/username/folioimport/src/utils"
)

type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{importService: service}
}

// HandleUploadCSV starts an import session from a CSV brokerage export.
func (h *ImportHandler) HandleUploadCSV(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.extractUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	clientContentType := header.Header.Get("Content-Type")
	if err := validation.ValidateCSVContentType(clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := validation.ValidateCSVContentByMagicBytes(file); err != nil {
		logger.L.Warn("Server-side file content validation failed", "filename", header.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.L.Info("Processing CSV import upload", "filename", header.Filename)
	view, err := h.importService.CreateFromCSV(r.Context(), file)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, view, http.StatusCreated)
}

// HandleUploadImage starts an import session from a holdings screenshot via
// the OCR collaborator.
func (h *ImportHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.extractUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	clientContentType := header.Header.Get("Content-Type")
	if err := validation.ValidateImageContentType(clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	detectedType, err := validation.ValidateImageContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side image content validation failed", "filename", header.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.L.Info("Processing screenshot import upload", "filename", header.Filename, "detectedType", detectedType)
	view, err := h.importService.CreateFromImage(r.Context(), file, detectedType)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, view, http.StatusCreated)
}

// HandleGetSession returns the current session snapshot.
func (h *ImportHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.importService.GetSession(r.PathValue("id"))
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, view, http.StatusOK)
}

// HandleWizardSelect assigns (or toggles off) a header for a field.
func (h *ImportHandler) HandleWizardSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Field  models.Field `json:"field"`
		Header string       `json:"header"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	view, err := h.importService.SelectColumn(r.PathValue("id"), body.Field, body.Header)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, view, http.StatusOK)
}

func (h *ImportHandler) HandleWizardAdvance(w http.ResponseWriter, r *http.Request) {
	view, err := h.importService.Advance(r.PathValue("id"))
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, view, http.StatusOK)
}

func (h *ImportHandler) HandleWizardRetreat(w http.ResponseWriter, r *http.Request) {
	view, err := h.importService.Retreat(r.PathValue("id"))
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, view, http.StatusOK)
}

func (h *ImportHandler) HandleWizardFinish(w http.ResponseWriter, r *http.Request) {
	view, err := h.importService.Finish(r.PathValue("id"))
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, view, http.StatusOK)
}

// HandleExclusions toggles one row's exclusion flag ({"rowIndex": n}) or the
// whole selection ({"selected": bool}). Either way the positions are refolded
// from scratch.
func (h *ImportHandler) HandleExclusions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RowIndex *int  `json:"rowIndex"`
		Selected *bool `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var view *services.SessionView
	var err error
	switch {
	case body.RowIndex != nil:
		view, err = h.importService.ToggleRow(r.PathValue("id"), *body.RowIndex)
	case body.Selected != nil:
		view, err = h.importService.ToggleAll(r.PathValue("id"), *body.Selected)
	default:
		utils.SendJSONError(w, "provide either rowIndex or selected", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, view, http.StatusOK)
}

// HandleEditPosition hand-corrects one derived position at the review step.
func (h *ImportHandler) HandleEditPosition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Shares      decimal.Decimal `json:"shares"`
		AverageCost decimal.Decimal `json:"averageCost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	view, err := h.importService.EditPosition(r.PathValue("id"), r.PathValue("ticker"), body.Shares, body.AverageCost)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, view, http.StatusOK)
}

// HandleCommit applies the session's positions to the store.
func (h *ImportHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode models.CommitMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Mode != models.CommitReplace && body.Mode != models.CommitMerge {
		utils.SendJSONError(w, fmt.Sprintf("mode must be %q or %q", models.CommitReplace, models.CommitMerge), http.StatusBadRequest)
		return
	}

	summary, err := h.importService.Commit(r.Context(), r.PathValue("id"), body.Mode)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

// HandleCancel discards the session.
func (h *ImportHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.importService.Cancel(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImportHandler) extractUpload(w http.ResponseWriter, r *http.Request) (file multipart.File, header *multipart.FileHeader, ok bool) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return nil, nil, false
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return nil, nil, false
	}
	if fh.Size > config.Cfg.MaxUploadSizeBytes {
		f.Close()
		logger.L.Warn("Uploaded file header reports size too large", "fileSize", fh.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return nil, nil, false
	}
	return f, fh, true
}

// respondPipelineError maps pipeline errors onto HTTP statuses.
func (h *ImportHandler) respondPipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, importer.ErrSessionBusy), errors.Is(err, importer.ErrWrongPhase):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrOCRUnavailable):
		utils.SendJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, services.ErrCommitFailed):
		logger.L.Error("Commit failed", "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, importer.ErrParsingFailed),
		errors.Is(err, importer.ErrTooManyRows),
		errors.Is(err, importer.ErrMappingIncomplete),
		errors.Is(err, importer.ErrHeaderTaken),
		errors.Is(err, importer.ErrUnknownHeader),
		errors.Is(err, importer.ErrTickerRequired),
		errors.Is(err, importer.ErrWizardClosed),
		errors.Is(err, importer.ErrUnknownRow),
		errors.Is(err, importer.ErrUnknownTicker):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.L.Error("Internal error in import pipeline", "error", err)
		utils.SendJSONError(w, "An internal error occurred while processing the import.", http.StatusInternalServerError)
	}
}
