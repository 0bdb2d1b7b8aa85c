// FILE: src/internal/auth/credentials_test.go
package auth

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempCredentials(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	t.Setenv("LOGPULSE_CREDENTIALS_FILE", path)
	return path
}

func TestLoadWithoutFile(t *testing.T) {
	useTempCredentials(t)
	_, err := Load()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAddKeyRoundTrip(t *testing.T) {
	path := useTempCredentials(t)

	creds, err := AddKey("secret-key", "web-01", "https://ingest.example.com")
	require.NoError(t, err)
	assert.Equal(t, "web-01", creds.ServerID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "credentials are owner-only")

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret-key", loaded.ConnectionKey)
	assert.Equal(t, "web-01", loaded.ServerID)
	assert.Equal(t, "https://ingest.example.com", loaded.EndpointURL)
}

func TestAddKeyDefaults(t *testing.T) {
	useTempCredentials(t)

	creds, err := AddKey("secret-key", "", "")
	require.NoError(t, err)

	hostname, herr := os.Hostname()
	require.NoError(t, herr)
	assert.Equal(t, hostname, creds.ServerID, "server id defaults to hostname")
	assert.Equal(t, DefaultEndpointURL, creds.EndpointURL)
}

func TestAddKeyRejectsEmpty(t *testing.T) {
	useTempCredentials(t)
	_, err := AddKey("", "id", "")
	require.Error(t, err)
}

func TestLoadCorruptFile(t *testing.T) {
	path := useTempCredentials(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAuthenticated, "corruption is not the same as absence")
}

func TestClearIsIdempotent(t *testing.T) {
	useTempCredentials(t)

	_, err := AddKey("k", "id", "")
	require.NoError(t, err)
	require.NoError(t, Clear())
	require.NoError(t, Clear(), "clearing twice is fine")

	_, err = Load()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestInspectKeyOpaque(t *testing.T) {
	claims, err := InspectKey("just-an-opaque-token")
	require.NoError(t, err)
	assert.Nil(t, claims)
}

func TestInspectKeyJWT(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "agent-web-01",
		"role": "ingest",
		"exp":  exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	claims, err := InspectKey(signed)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "agent-web-01", claims.Subject)
	assert.Equal(t, "ingest", claims.Role)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.ExpiresAt.Equal(exp))
}

func TestInspectKeyUnverified(t *testing.T) {
	// A garbage signature still decodes: verification is the server's
	// job, inspection is purely informational.
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{"sub": "tampered"})
	require.NoError(t, err)
	body := base64.RawURLEncoding.EncodeToString(payload)
	token := header + "." + body + ".invalid-signature"

	claims, err := InspectKey(token)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "tampered", claims.Subject)
}
