package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/tradelens/backend/src/logger"
	"github.com/username/tradelens/backend/src/models"
	"github.com/username/tradelens/backend/src/services"
	"github.com/username/tradelens/backend/src/utils"
)

type StatsHandler struct {
	extractionService services.ExtractionService
}

func NewStatsHandler(service services.ExtractionService) *StatsHandler {
	return &StatsHandler{extractionService: service}
}

// HandleTradingStats serves the derived stats snapshot with ETag support so
// dashboards polling it get 304s while the log is unchanged.
func (h *StatsHandler) HandleTradingStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.extractionService.GetStats()
	if err != nil {
		logger.L.Error("Error computing trading stats", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("error computing trading stats: %v", err), http.StatusInternalServerError)
		return
	}

	currentETag, etagErr := utils.GenerateETag(snapshot)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for stats snapshot", "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				logger.L.Debug("ETag match for stats snapshot", "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	utils.WriteJSON(w, http.StatusOK, snapshot)
}

// HandleSearchTrades filters the trade log by the posted query.
func (h *StatsHandler) HandleSearchTrades(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		utils.SendJSONError(w, "invalid search query body", http.StatusBadRequest)
		return
	}

	trades, err := h.extractionService.SearchTrades(query)
	if err != nil {
		logger.L.Error("Error searching trades", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("error searching trades: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"count":  len(trades),
		"trades": trades,
	})
}
