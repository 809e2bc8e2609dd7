package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, sub string, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuth_ValidTokenReachesHandler(t *testing.T) {
	req := require.New(t)
	userID := uuid.New()

	var got uuid.UUID
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUserID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/messages/users", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, userID.String(), testSecret))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	req.Equal(http.StatusOK, w.Code)
	req.Equal(userID, got)
}

func TestAuth_RejectsBadRequests(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not a bearer token", header: "Basic abc"},
		{name: "wrong secret", header: "Bearer " + signedToken(t, uuid.NewString(), "other-secret")},
		{name: "subject not a uuid", header: "Bearer " + signedToken(t, "not-a-uuid", testSecret)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			}))

			r := httptest.NewRequest(http.MethodGet, "/api/messages/users", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			req.Equal(http.StatusUnauthorized, w.Code)

			// Same error envelope shape as the handlers.
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
			req.Equal("UNAUTHORIZED", body.Error.Code)
		})
	}
}
