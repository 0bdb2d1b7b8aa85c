// FILE: src/internal/auth/credentials.go
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotAuthenticated indicates no connection key has been stored yet.
var ErrNotAuthenticated = errors.New("not authenticated: no connection key configured")

// Credentials is the connection context read once at startup. It is
// owned by the operator (written by `logpulse auth add-key`), never by
// the pipeline.
type Credentials struct {
	ConnectionKey string     `json:"connection_key"`
	ServerID      string     `json:"server_id"`
	EndpointURL   string     `json:"endpoint_url"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
}

// DefaultEndpointURL is used when no endpoint is configured explicitly.
const DefaultEndpointURL = "https://ingest.logpulse.dev"

// FilePath resolves the credentials file location.
func FilePath() string {
	if p := os.Getenv("LOGPULSE_CREDENTIALS_FILE"); p != "" {
		return p
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".logpulse", "credentials.json")
	}
	return "credentials.json"
}

// Load reads the credentials file. A missing file yields
// ErrNotAuthenticated rather than an I/O error.
func Load() (*Credentials, error) {
	data, err := os.ReadFile(FilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	creds := &Credentials{}
	if err := json.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("corrupt credentials file %s: %w", FilePath(), err)
	}
	if creds.ConnectionKey == "" {
		return nil, ErrNotAuthenticated
	}
	if creds.EndpointURL == "" {
		creds.EndpointURL = DefaultEndpointURL
	}
	return creds, nil
}

// Save writes the credentials file with owner-only permissions.
func (c *Credentials) Save() error {
	path := FilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Clear removes the stored credentials (logout).
func Clear() error {
	err := os.Remove(FilePath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// AddKey stores a new connection key. The server identity defaults to
// the hostname when not supplied by the operator.
func AddKey(key, serverID, endpointURL string) (*Credentials, error) {
	if key == "" {
		return nil, fmt.Errorf("connection key cannot be empty")
	}
	if serverID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("no server id given and hostname unavailable: %w", err)
		}
		serverID = hostname
	}
	if endpointURL == "" {
		endpointURL = DefaultEndpointURL
	}

	creds := &Credentials{
		ConnectionKey: key,
		ServerID:      serverID,
		EndpointURL:   endpointURL,
	}
	if err := creds.Save(); err != nil {
		return nil, err
	}
	return creds, nil
}

// KeyClaims holds the subset of JWT claims surfaced by `auth status`
// when the connection key is a JWT. The signature is NOT verified;
// verification belongs to the remote endpoint.
type KeyClaims struct {
	Subject   string
	Role      string
	ExpiresAt *time.Time
}

// InspectKey decodes the connection key's claims when it is a JWT.
// Returns (nil, nil) for opaque keys.
func InspectKey(key string) (*KeyClaims, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(key, claims); err != nil {
		// Not a JWT; opaque keys are legal.
		return nil, nil
	}

	kc := &KeyClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		kc.Subject = sub
	}
	if role, ok := claims["role"].(string); ok {
		kc.Role = role
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		kc.ExpiresAt = &t
	}
	return kc, nil
}
