package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	tests := []struct {
		name     string
		inbound  string
		wantSame bool
	}{
		{name: "generated when absent", inbound: "", wantSame: false},
		{name: "inbound reused", inbound: "req-123_abc.1", wantSame: true},
		{name: "inbound with spaces replaced", inbound: "bad id\nforged=1", wantSame: false},
		{name: "oversized inbound replaced", inbound: strings.Repeat("a", 200), wantSame: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.inbound != "" {
				req.Header.Set("X-Request-Id", tt.inbound)
			}
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)

			got := resp.Header().Get("X-Request-Id")
			if got == "" || got != resp.Body.String() {
				t.Fatalf("header %q and context %q should match", got, resp.Body.String())
			}
			if (got == tt.inbound) != tt.wantSame {
				t.Fatalf("got id %q for inbound %q", got, tt.inbound)
			}
		})
	}
}
