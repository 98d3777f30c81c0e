package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"triage_service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type fakeAuth struct {
	sessions map[string]*domain.Session
}

func (f *fakeAuth) Register(context.Context, domain.RegisterCredentials) (*domain.Session, error) {
	return nil, nil
}

func (f *fakeAuth) Login(context.Context, domain.LoginCredentials) (*domain.Session, error) {
	return nil, nil
}

func (f *fakeAuth) Logout(context.Context, string) error { return nil }

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*domain.Session, error) {
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return nil, domain.ErrUnauthenticated
}

func (f *fakeAuth) IsAuthenticated(ctx context.Context, token string) bool {
	_, err := f.Authenticate(ctx, token)
	return err == nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newRouter(auth domain.AuthUseCase, log *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/me", AuthMiddleware(auth, log), func(c *gin.Context) {
		c.String(http.StatusOK, SessionFromContext(c).UserID())
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	auth := &fakeAuth{sessions: map[string]*domain.Session{
		"good": {Token: "good", User: domain.User{ID: "u1"}},
	}}
	r := newRouter(auth, quietLogger())

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer good", http.StatusOK, "u1"},
		{"lowercase scheme", "bearer good", http.StatusOK, "u1"},
		{"missing", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "Invalid Authorization header format"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "Invalid or expired session"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}

func TestRequestLogger_LogsUserAndStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	auth := &fakeAuth{sessions: map[string]*domain.Session{"t": {User: domain.User{ID: "u7"}}}}
	r := newRouter(auth, log)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer t")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"user_id":"u7"`)
	assert.Contains(t, buf.String(), `"status_code":200`)
}
