package store

import (
	"bytes"
	"context"
	"crypto/sha1" // #nosec G505 -- the upload API mandates SHA-1 request signatures
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the public Cloudinary API host.
const DefaultEndpoint = "https://api.cloudinary.com"

// HTTPDoer abstracts HTTP calls for testability
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cloudinary uploads files with signed multipart requests.
type Cloudinary struct {
	creds    Credentials
	endpoint string
	doer     HTTPDoer
	now      func() time.Time
}

var _ Store = (*Cloudinary)(nil)

// NewCloudinary creates a client with a TLS 1.2+ HTTP client for production use.
func NewCloudinary(creds Credentials, endpoint string, timeout time.Duration) *Cloudinary {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
	return NewCloudinaryWithDoer(creds, endpoint, client)
}

// NewCloudinaryWithDoer creates a client with injectable HTTP for testing.
func NewCloudinaryWithDoer(creds Credentials, endpoint string, doer HTTPDoer) *Cloudinary {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Cloudinary{
		creds:    creds,
		endpoint: strings.TrimRight(endpoint, "/"),
		doer:     doer,
		now:      time.Now,
	}
}

type uploadResponse struct {
	Result
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Upload sends path to {endpoint}/v1_1/{cloud}/{kind}/upload.
func (c *Cloudinary) Upload(ctx context.Context, path string, opts Options) (Result, error) {
	f, err := os.Open(path) // #nosec G304 -- path is a resolved reference identity
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	kind := opts.ResourceKind
	if kind == "" {
		kind = KindRaw
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if opts.PublicID != "" {
		params["public_id"] = opts.PublicID
	}
	if opts.Overwrite {
		params["overwrite"] = "true"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range params {
		if err := mw.WriteField(k, v); err != nil {
			return Result{}, err
		}
	}
	if err := mw.WriteField("api_key", c.creds.APIKey); err != nil {
		return Result{}, err
	}
	if err := mw.WriteField("signature", Sign(params, c.creds.APISecret)); err != nil {
		return Result{}, err
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("%s/v1_1/%s/%s/upload", c.endpoint, c.creds.CloudName, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.doer.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("upload %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded uploadResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil && decoded.Error != nil {
			apiErr.Message = decoded.Error.Message
		}
		return Result{}, apiErr
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("decode upload response: %w", decodeErr)
	}
	if decoded.Error != nil {
		return Result{}, &APIError{StatusCode: resp.StatusCode, Message: decoded.Error.Message}
	}
	if decoded.URL == "" && decoded.SecureURL == "" {
		return Result{}, fmt.Errorf("upload response for %s carried no url", path)
	}
	if decoded.URL == "" {
		decoded.URL = decoded.SecureURL
	}
	return decoded.Result, nil
}

// Sign computes the request signature: parameters sorted by key, joined as
// k=v pairs with '&', secret appended, SHA-1 hex encoded.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret)) // #nosec G401 -- protocol requirement
	return hex.EncodeToString(sum[:])
}
