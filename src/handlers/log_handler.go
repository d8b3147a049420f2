package handlers

import (
	"fmt"
	"net/http"

	"github.com/username/tradelens/backend/src/logger"
	"github.com/username/tradelens/backend/src/services"
	"github.com/username/tradelens/backend/src/utils"
)

type LogHandler struct {
	extractionService services.ExtractionService
}

func NewLogHandler(service services.ExtractionService) *LogHandler {
	return &LogHandler{extractionService: service}
}

// HandleTradeLog serves the raw append-only log, one JSON object per line.
func (h *LogHandler) HandleTradeLog(w http.ResponseWriter, r *http.Request) {
	content, err := h.extractionService.RawLog()
	if err != nil {
		logger.L.Error("Error reading trade log", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("error reading trade log: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, content)
}
