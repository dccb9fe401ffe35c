package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoforge/internal/logging"
)

func TestUserID(t *testing.T) {
	id := UserID("Alice")
	assert.Len(t, id, 32)
	assert.Equal(t, id, UserID("  alice "))
	assert.NotEqual(t, id, UserID("bob"))
}

func TestVerifier_Tokens(t *testing.T) {
	v := NewVerifier(map[string]string{"tok-a": "alice", "tok-b": "bob", "": "ignored"})
	require.True(t, v.Enabled())
	ctx := context.Background()

	id, err := v.Verify(ctx, "tok-a")
	require.NoError(t, err)
	assert.Equal(t, UserID("alice"), id)

	_, err = v.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = v.Verify(ctx, "tok-c")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifier_SingleUser(t *testing.T) {
	v := NewVerifier(nil)
	assert.False(t, v.Enabled())

	id, err := v.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, UserID(LocalSubject()), id)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	tl := logging.NewTestLogger()
	v := NewVerifier(map[string]string{"secret-token": "alice"})

	var seenUser, seenCtxUser string
	e.GET("/me", func(c echo.Context) error {
		seenUser = FromContext(c)
		seenCtxUser = logging.UserIDFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	}, Middleware(v, tl.Logger, nil))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer secret-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, UserID("alice"), seenUser)
	assert.Equal(t, seenUser, seenCtxUser)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer wrong")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	tl.AssertNoSubstring(t, "wrong")
}

func TestMiddleware_CustomErrorHandler(t *testing.T) {
	e := echo.New()
	v := NewVerifier(map[string]string{"t": "alice"})
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		Middleware(v, nil, func(c echo.Context, err error) error {
			return c.String(http.StatusTeapot, err.Error())
		}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "unauthorized", rec.Body.String())
}
