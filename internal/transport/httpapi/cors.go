package httpapi

import "github.com/gin-gonic/gin"

const (
	orchestratorHeaders = "authorization, apikey, x-client-request-id, content-type, x-idempotency-key"
	orchestratorMethods = "POST, OPTIONS"

	catalogHeaders = "authorization, x-client-info, apikey, content-type"
	catalogMethods = "GET, POST, OPTIONS"
)

func cors(headers, methods string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", headers)
		h.Set("Access-Control-Allow-Methods", methods)
		c.Next()
	}
}
