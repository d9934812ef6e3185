// Package store defines the remote content store contract and an HTTP client
// for the Cloudinary upload API.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ResourceKind tells the store how to process an asset.
type ResourceKind string

const (
	KindImage ResourceKind = "image"
	KindRaw   ResourceKind = "raw"
)

// Options accompany one upload.
type Options struct {
	PublicID     string
	Overwrite    bool
	ResourceKind ResourceKind
}

// Result is the store's response to a successful upload.
type Result struct {
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Version   int64  `json:"version"`
}

// Store uploads one local file and returns its delivery URL.
type Store interface {
	Upload(ctx context.Context, path string, opts Options) (Result, error)
}

// Credentials are passed to the store unmodified.
type Credentials struct {
	CloudName string `mapstructure:"cloudName"`
	APIKey    string `mapstructure:"apiKey"`
	APISecret string `mapstructure:"apiSecret"`
}

// Validate reports missing credential fields.
func (c Credentials) Validate() error {
	var missing []string
	if c.CloudName == "" {
		missing = append(missing, "cloudName")
	}
	if c.APIKey == "" {
		missing = append(missing, "apiKey")
	}
	if c.APISecret == "" {
		missing = append(missing, "apiSecret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %v", missing)
	}
	return nil
}

// ErrResourceNotFound means the local file to upload does not exist.
var ErrResourceNotFound = errors.New("resource not found")

// APIError is a non-success response from the store.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("store returned status %d: %s", e.StatusCode, e.Message)
}

// IsAPIError checks if an error is a store API error
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
