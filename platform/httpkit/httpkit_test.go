package httpkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwtSecret string

func (s jwtSecret) GetJWTAccessSecret() string { return string(s) }

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthRouter(secret string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AuthRequired(jwtSecret(secret)))
	r.GET("/me", func(c *gin.Context) {
		actor, err := ActorFromContext(c.Request.Context())
		if HandleError(c, err) {
			return
		}
		OK(c, gin.H{"id": actor, "admin": GetIdentity(c).HasRole("admin")})
	})
	return r
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, "s3cret", jwt.MapClaims{
		"sub":   userID.String(),
		"type":  "access",
		"roles": []string{"admin"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newAuthRouter("s3cret").ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ID    uuid.UUID `json:"id"`
		Admin bool      `json:"admin"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, userID, body.ID)
	assert.True(t, body.Admin)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestAuthRequiredRejects(t *testing.T) {
	userID := uuid.New().String()
	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": userID, "type": "access"})},
		{"refresh token", "Bearer " + signToken(t, "s3cret", jwt.MapClaims{"sub": userID, "type": "refresh"})},
		{"bad subject", "Bearer " + signToken(t, "s3cret", jwt.MapClaims{"sub": "nope", "type": "access"})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			newAuthRouter("s3cret").ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestHandleErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.NotFound("lead not found"), http.StatusNotFound, "lead not found"},
		{fmt.Errorf("wrapped: %w", apperr.Conflict("busy")), http.StatusConflict, "busy"},
		{apperr.InvalidArgument("bad"), http.StatusBadRequest, "bad"},
		{fmt.Errorf("dial tcp: connection refused"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		require.True(t, HandleError(c, tc.err))
		assert.Equal(t, tc.status, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.msg, body.Error)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.False(t, HandleError(c, nil))
}

func TestRequestIDHonoursIncomingHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
}
