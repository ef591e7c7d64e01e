package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newRouter(perm string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	g := r.Group("/", JWTAuth(testSecret))
	g.GET("/ping", RequirePermission(perm), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserID))
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	r := newRouter("mes:employee:create")
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer abc", "", http.StatusUnauthorized},
		{"no uid", "Bearer " + signToken(t, jwt.MapClaims{"exp": exp, "perms": []string{"*"}}), "", http.StatusUnauthorized},
		{"wildcard", "Bearer " + signToken(t, jwt.MapClaims{"uid": "u1", "exp": exp, "perms": []string{"*"}}), "", http.StatusOK},
		{"exact", "Bearer " + signToken(t, jwt.MapClaims{"uid": "u1", "exp": exp, "perms": []string{"mes:employee:create"}}), "", http.StatusOK},
		{"query token", "", signToken(t, jwt.MapClaims{"uid": "u1", "exp": exp, "perms": []string{"*"}}), http.StatusOK},
		{"no perms", "Bearer " + signToken(t, jwt.MapClaims{"uid": "u1", "exp": exp}), "", http.StatusForbidden},
		{"other perm", "Bearer " + signToken(t, jwt.MapClaims{"uid": "u1", "exp": exp, "perms": []string{"mes:workorder:read"}}), "", http.StatusForbidden},
		{"expired", "Bearer " + signToken(t, jwt.MapClaims{"uid": "u1", "exp": time.Now().Add(-time.Hour).Unix()}), "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/ping"
			if tt.query != "" {
				path += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Fatal("X-Request-ID header missing")
			}
		})
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	r := newRouter("x")
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestJWTAuthEmptySecretRejectsEverything(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", JWTAuth(""))
	g.GET("/ping", RequirePermission("mes:employee:create"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserID))
	})

	// 用空密钥签出的 token 同样不能通过
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":   "attacker",
		"perms": []string{"*"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(""))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 (%s)", w.Code, w.Body.String())
	}
	if w.Body.String() == "attacker" {
		t.Fatal("forged token reached the handler")
	}
}

func TestLoggerRedactsQueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/sse", func(c *gin.Context) { c.Status(http.StatusOK) })

	token := signToken(t, jwt.MapClaims{"uid": "emp-1"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse?token="+token+"&topic=workorder", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	query, _ := entries[0].ContextMap()["query"].(string)
	if strings.Contains(query, token) {
		t.Fatalf("token leaked into log: %q", query)
	}
	if query != "token=REDACTED&topic=workorder" {
		t.Fatalf("query = %q", query)
	}
}

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"scope=all&q=cut", "scope=all&q=cut"},
		{"token=abc", "token=REDACTED"},
		{"access_token_hint=1", "access_token_hint=1"},
		{"token=%zz", "[unparsable query]"},
	}
	for _, tt := range tests {
		if got := redactQuery(tt.raw); got != tt.want {
			t.Errorf("redactQuery(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
