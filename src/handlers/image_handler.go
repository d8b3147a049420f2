package handlers

import (
	"fmt"
	"net/http"

	"github.com/username/tradelens/backend/src/logger"
	"github.com/username/tradelens/backend/src/services"
	"github.com/username/tradelens/backend/src/storage"
	"github.com/username/tradelens/backend/src/utils"
)

type ImageHandler struct {
	extractionService services.ExtractionService
	files             *storage.FileStore
}

func NewImageHandler(service services.ExtractionService, files *storage.FileStore) *ImageHandler {
	return &ImageHandler{extractionService: service, files: files}
}

// HandleListImages returns every stored screenshot, uploads and processed.
func (h *ImageHandler) HandleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.extractionService.ListImages()
	if err != nil {
		logger.L.Error("Error listing stored images", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("error listing images: %v", err), http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"count":  len(images),
		"images": images,
	})
}

// HandleServeUpload serves a raw upload by filename.
func (h *ImageHandler) HandleServeUpload(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	absPath, err := h.files.ResolveUpload(filename)
	if err != nil {
		logger.L.Warn("Rejected upload image request", "filename", filename, "error", err)
		utils.SendJSONError(w, "image not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, absPath)
}

// HandleServeProcessed serves a processed screenshot from its dated folder.
func (h *ImageHandler) HandleServeProcessed(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	filename := r.PathValue("filename")
	absPath, err := h.files.ResolveProcessed(date, filename)
	if err != nil {
		logger.L.Warn("Rejected processed image request", "date", date, "filename", filename, "error", err)
		utils.SendJSONError(w, "image not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, absPath)
}
