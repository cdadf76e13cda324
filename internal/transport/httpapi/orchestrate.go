package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/usecase"
)

const idempotencyHeader = "x-idempotency-key"

func (s *Server) orchestrate(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.unhandled(c, err)
		return
	}

	var received any = map[string]any{}
	if len(raw) > 0 {
		var decoded any
		if json.Unmarshal(raw, &decoded) == nil && decoded != nil {
			received = decoded
		}
	}
	body, _ := received.(map[string]any)
	message, ok := body["message"].(string)
	if !ok || strings.TrimSpace(message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"version":  Version,
			"error":    "Body must be { message: string }",
			"received": received,
		})
		return
	}

	key, _ := body["idempotencyKey"].(string)
	if key == "" {
		key = c.GetHeader(idempotencyHeader)
	}

	resp, err := s.orchestrator.Handle(c.Request.Context(), usecase.Request{Message: message, IdempotencyKey: key})
	if failed, ok := usecase.IsToolFailure(err); ok {
		out := gin.H{
			"version":  Version,
			"ok":       false,
			"toolCall": failed.Call,
			"error":    failed.Err.Error(),
		}
		if details := domain.DetailsOf(failed.Err); details != nil {
			out["details"] = details
		}
		c.JSON(domain.StatusOf(failed.Err), out)
		return
	}
	if err != nil {
		s.unhandled(c, err)
		return
	}

	out := gin.H{"version": Version, "text": resp.Text}
	if key != "" {
		out["idempotencyKey"] = key
	}
	if resp.ToolCall != nil {
		out["toolCall"] = resp.ToolCall
		out["toolResult"] = resp.ToolResult
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) unhandled(c *gin.Context, err error) {
	s.logger.Error("orchestration failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"version": Version,
		"ok":      false,
		"error":   err.Error(),
		"stack":   errorChain(err),
	})
}

// errorChain renders err and every error it wraps, outermost first.
func errorChain(err error) string {
	var lines []string
	var walk func(error, string)
	walk = func(e error, indent string) {
		for e != nil {
			lines = append(lines, indent+e.Error())
			switch u := e.(type) {
			case interface{ Unwrap() []error }:
				for _, inner := range u.Unwrap() {
					walk(inner, indent+"  ")
				}
				return
			default:
				e = errors.Unwrap(e)
			}
		}
	}
	walk(err, "")
	return strings.Join(lines, "\n")
}
