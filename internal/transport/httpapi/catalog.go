package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/usecase"
)

func (s *Server) syncCatalog(c *gin.Context) {
	if s.sync == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing SAM_API_KEY."})
		return
	}

	var req usecase.SyncRequest
	if raw, err := c.GetRawData(); err == nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			s.logger.Warn("catalog sync body ignored", "error", err)
			req = usecase.SyncRequest{}
		}
	}

	res, err := s.sync.Run(c.Request.Context(), req)
	if err != nil {
		status, body := catalogError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("catalog sync failed", "error", err)
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, res)
}

func catalogError(err error) (int, gin.H) {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusInternalServerError, gin.H{"error": "Missing SAM_API_KEY."}
	case errors.As(err, &upstream):
		return upstream.Status, gin.H{"error": upstream.Error(), "detail": upstream.Body}
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, gin.H{"error": "DB upsert failed", "detail": err.Error()}
	case errors.Is(err, domain.ErrInvalidArguments):
		return http.StatusUnprocessableEntity, gin.H{"error": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"error": "Unhandled error", "detail": err.Error()}
	}
}
