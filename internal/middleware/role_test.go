package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func roleRouter(role string, middlewares ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if role != "" {
		r.Use(func(c *gin.Context) { c.Set(ContextUserRole, role) })
	}
	r.Use(middlewares...)
	r.GET("/guarded", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name       string
		role       string
		allowed    []string
		wantStatus int
	}{
		{"staff allowed on staff surface", "staff", []string{"staff", "admin"}, http.StatusOK},
		{"admin allowed on staff surface", "admin", []string{"staff", "admin"}, http.StatusOK},
		{"participant forbidden on staff surface", "participant", []string{"staff", "admin"}, http.StatusForbidden},
		{"staff forbidden on admin surface", "staff", []string{"admin"}, http.StatusForbidden},
		{"no user context is unauthorized", "", []string{"staff", "admin"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := roleRouter(tc.role, RequireRole(tc.allowed...))
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			r.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}
