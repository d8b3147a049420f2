package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/tradelens/backend/src/config"
	"github.com/username/tradelens/backend/src/logger"
	"github.com/username/tradelens/backend/src/security/validation"
	"github.com/username/tradelens/backend/src/services"
	"github.com/username/tradelens/backend/src/utils"
)

type ExtractHandler struct {
	extractionService services.ExtractionService
}

func NewExtractHandler(service services.ExtractionService) *ExtractHandler {
	return &ExtractHandler{extractionService: service}
}

// HandleExtractUpload accepts a multipart screenshot upload and runs the
// full extraction pipeline over it.
func (h *ExtractHandler) HandleExtractUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("upload failed: could not parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "upload failed: ensure the 'file' field is used", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("upload failed: file too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("upload failed: %v", err), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateImageContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Image content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("upload failed: %v", err), http.StatusBadRequest)
		return
	}
	logger.L.Info("Image validated, processing upload", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	result, err := h.extractionService.ProcessUpload(r.Context(), file, fileHeader.Filename)
	if err != nil {
		h.writeExtractionError(w, fileHeader.Filename, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// HandleExtractPath runs the pipeline over an image already on disk.
func (h *ExtractHandler) HandleExtractPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImagePath string `json:"image_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ImagePath == "" {
		utils.SendJSONError(w, "image_path is required", http.StatusBadRequest)
		return
	}

	result, err := h.extractionService.ProcessPath(r.Context(), req.ImagePath)
	if err != nil {
		h.writeExtractionError(w, req.ImagePath, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// HandleExtractBatch runs the pipeline over every image in a directory.
func (h *ExtractHandler) HandleExtractBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Directory string `json:"directory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Directory == "" {
		utils.SendJSONError(w, "directory is required", http.StatusBadRequest)
		return
	}

	result, err := h.extractionService.ProcessDirectory(r.Context(), req.Directory)
	if err != nil {
		h.writeExtractionError(w, req.Directory, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// writeExtractionError maps pipeline errors onto status codes and names the
// failed stage in the response.
func (h *ExtractHandler) writeExtractionError(w http.ResponseWriter, source string, err error) {
	switch {
	case errors.Is(err, services.ErrImageUnreadable):
		logger.L.Warn("Extraction failed: unreadable image", "source", source, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("upload failed: %v", err), http.StatusBadRequest)
	case errors.Is(err, services.ErrOcrFailed):
		logger.L.Warn("Extraction failed during OCR", "source", source, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("extraction failed: %v", err), http.StatusUnprocessableEntity)
	case errors.Is(err, services.ErrStoreFailed):
		logger.L.Error("Extraction failed during storage", "source", source, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("storage failed: %v", err), http.StatusInternalServerError)
	default:
		logger.L.Error("Internal error processing extraction", "source", source, "error", err)
		utils.SendJSONError(w, "an internal error occurred while processing the image", http.StatusInternalServerError)
	}
}
