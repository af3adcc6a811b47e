package gate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	g, err := New(Config{PassphraseHash: string(h), TokenSecret: "test-secret", TokenTTL: time.Minute})
	require.NoError(t, err)
	return g
}

func TestCheck(t *testing.T) {
	g := newTestGate(t)
	assert.NoError(t, g.Check("open sesame"))
	assert.ErrorIs(t, g.Check("open"), ErrUnauthorized)
	assert.ErrorIs(t, g.Check(""), ErrUnauthorized)
}

func TestUnconfiguredGateFailsClosed(t *testing.T) {
	g, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, g.Configured())
	assert.ErrorIs(t, g.Check(""), ErrNotConfigured)
	assert.ErrorIs(t, g.Check("anything"), ErrNotConfigured)
	_, _, err = g.IssueToken()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPlainPassphraseIsHashed(t *testing.T) {
	g, err := New(Config{Passphrase: "letmein"})
	require.NoError(t, err)
	assert.NotContains(t, string(g.hash), "letmein")
	assert.NoError(t, g.Check("letmein"))
}

func TestInvalidHashRejected(t *testing.T) {
	_, err := New(Config{PassphraseHash: "not-a-hash"})
	assert.Error(t, err)
}

func TestTokenLifecycle(t *testing.T) {
	g := newTestGate(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	token, exp, err := g.IssueToken()
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), exp)
	assert.NoError(t, g.VerifyToken(token))

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, g.VerifyToken(token), ErrUnauthorized)

	assert.ErrorIs(t, g.VerifyToken("garbage"), ErrUnauthorized)

	other, err := New(Config{PassphraseHash: string(g.hash), TokenSecret: "other-secret"})
	require.NoError(t, err)
	now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	other.now = g.now
	assert.ErrorIs(t, other.VerifyToken(token), ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	g := newTestGate(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := g.Middleware(zap.NewNop())(ok)

	serve := func(set func(*http.Request)) int {
		req := httptest.NewRequest(http.MethodDelete, "/api/scanned-items", nil)
		set(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(func(*http.Request) {}))
	assert.Equal(t, http.StatusUnauthorized, serve(func(r *http.Request) { r.Header.Set(PassphraseHeader, "wrong") }))
	assert.Equal(t, http.StatusNoContent, serve(func(r *http.Request) { r.Header.Set(PassphraseHeader, "open sesame") }))

	token, _, err := g.IssueToken()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, serve(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }))
	assert.Equal(t, http.StatusUnauthorized, serve(func(r *http.Request) { r.Header.Set("Authorization", "Bearer x.y.z") }))
}

func TestUnlockHandler(t *testing.T) {
	g := newTestGate(t)
	h := UnlockHandler(g, zap.NewNop())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/unlock", strings.NewReader(`{"passphrase":"open sesame"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/unlock", strings.NewReader(`{"passphrase":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHashPassphrase(t *testing.T) {
	h, err := HashPassphrase("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")))
	_, err = HashPassphrase("")
	assert.Error(t, err)
}
