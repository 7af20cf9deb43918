package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		origin         string
		allowedOrigins []string
		want           bool
	}{
		{
			name:           "exact match",
			origin:         "http://localhost:3000",
			allowedOrigins: []string{"http://localhost:3000"},
			want:           true,
		},
		{
			name:           "wildcard match",
			origin:         "http://localhost:5173",
			allowedOrigins: []string{"http://localhost:*"},
			want:           true,
		},
		{
			name:           "multiple allowed origins - matches second",
			origin:         "https://shelfprice.example.com",
			allowedOrigins: []string{"http://localhost:*", "https://shelfprice.example.com"},
			want:           true,
		},
		{
			name:           "no match",
			origin:         "http://evil.com",
			allowedOrigins: []string{"http://localhost:*"},
			want:           false,
		},
		{
			name:           "empty origin",
			origin:         "",
			allowedOrigins: []string{"*"},
			want:           false,
		},
		{
			name:           "empty allowed list",
			origin:         "http://localhost:3000",
			allowedOrigins: []string{},
			want:           false,
		},
		{
			name:           "bare wildcard",
			origin:         "http://anything.test",
			allowedOrigins: []string{"*"},
			want:           true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isAllowedOrigin(tt.origin, tt.allowedOrigins)
			if got != tt.want {
				t.Errorf("isAllowedOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		method     string
		wantStatus int
		wantCORS   bool
	}{
		{name: "allowed origin - GET request", origin: "http://localhost:3000", method: http.MethodGet, wantStatus: http.StatusOK, wantCORS: true},
		{name: "allowed origin - OPTIONS request", origin: "http://localhost:3000", method: http.MethodOptions, wantStatus: http.StatusNoContent, wantCORS: true},
		{name: "disallowed origin", origin: "http://evil.com", method: http.MethodGet, wantStatus: http.StatusOK, wantCORS: false},
		{name: "no origin header", origin: "", method: http.MethodGet, wantStatus: http.StatusOK, wantCORS: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware([]string{"http://localhost:*"}))
			router.GET("/test", func(c *gin.Context) {
				c.String(http.StatusOK, "OK")
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}

			corsHeader := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantCORS {
				if corsHeader != tt.origin {
					t.Errorf("Access-Control-Allow-Origin = %s, want %s", corsHeader, tt.origin)
				}
				if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
					t.Errorf("Access-Control-Allow-Credentials not set to true")
				}
			} else if corsHeader != "" {
				t.Errorf("Access-Control-Allow-Origin should not be set, got %s", corsHeader)
			}
		})
	}
}

func TestCORSMiddleware_PreflightRequest(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware([]string{"http://localhost:*"}))
	router.POST("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	for _, header := range []string{"Access-Control-Allow-Methods", "Access-Control-Allow-Headers", "Access-Control-Max-Age"} {
		if w.Header().Get(header) == "" {
			t.Errorf("%s not set", header)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		id := w.Header().Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("%s = %q, want a uuid", RequestIDHeader, id)
		}
		if w.Body.String() != id {
			t.Errorf("context id = %q, header id = %q", w.Body.String(), id)
		}
	})

	t.Run("keeps the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("%s = %q, want abc-123", RequestIDHeader, got)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware(), RecoveryMiddleware(), LoggerMiddleware())
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
