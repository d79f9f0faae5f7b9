package cloudclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Retry tuning for HTTPAdapter.doRetry: base 1s, factor 2x, max 30s,
// +-25% jitter, 5 retries.
const (
	httpMaxRetries = 5
	httpBaseBackoff = 1 * time.Second
	httpMaxBackoff = 30 * time.Second
	httpBackoffFactor = 2.0
	httpJitterFrac = 0.25
)

// HTTPAdapter is a Client backed by a vendor's REST API over HTTP, reached
// through an oauth2.TokenSource. The exact vendor wire format is the cloud
// SDK's concern (out of scope); HTTPAdapter only
// requires that the vendor expose the handful of REST verbs the Client
// trait needs, addressed through the minimal restBackend interface so a
// real vendor SDK can be slotted in without touching callers.
type HTTPAdapter struct {
	httpClient *http.Client
	tokens     oauth2.TokenSource
	backend    restBackend
	logger     *slog.Logger

	sleepFunc func(ctx context.Context, d time.Duration) error
}

// restBackend is the minimal vendor-specific surface HTTPAdapter drives.
// A production build supplies one backed by the vendor's generated SDK
// client; tests supply a stub.
type restBackend interface {
	Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error)
}

// NewHTTPAdapter creates an HTTPAdapter. tokens supplies bearer tokens for
// every request; backend performs the actual HTTP round trip (wrapping
// retries is HTTPAdapter's job, not the backend's).
func NewHTTPAdapter(backend restBackend, tokens oauth2.TokenSource, logger *slog.Logger) *HTTPAdapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPAdapter{
		backend:   backend,
		tokens:    tokens,
		logger:    logger,
		sleepFunc: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Login is not implemented by HTTPAdapter: OAuth2 sign-in happens outside
// the Client trait; callers obtain a token via their own auth flow and call
// LoginWithSession.
func (a *HTTPAdapter) Login(context.Context, string, string) (SessionToken, error) {
	return nil, fmt.Errorf("cloudclient: interactive login not supported by HTTPAdapter; use LoginWithSession")
}

// LoginWithSession validates the token is usable by fetching the account
// root node.
func (a *HTTPAdapter) LoginWithSession(ctx context.Context, token SessionToken) error {
	if len(token) == 0 {
		return fmt.Errorf("cloudclient: empty session token")
	}

	_, err := a.RootNode(ctx)

	return err
}

// IsLoggedIn reports whether the token source currently yields a token.
func (a *HTTPAdapter) IsLoggedIn() bool {
	_, err := a.tokens.Token()
	return err == nil
}

func (a *HTTPAdapter) doRetry(ctx context.Context, method, path string) (*http.Response, error) {
	var attempt int

	for {
		resp, err := a.backend.Do(ctx, method, path, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("cloudclient: request canceled: %w", ctx.Err())
			}

			if attempt >= httpMaxRetries {
				return nil, fmt.Errorf("cloudclient: %s %s failed after %d retries: %w", method, path, httpMaxRetries, err)
			}

			backoff := calcBackoff(attempt)
			a.logger.Warn("retrying after transport error",
				slog.String("method", method), slog.String("path", path),
				slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff))

			if sleepErr := a.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, sleepErr
			}

			attempt++

			continue
		}

		if resp.StatusCode < 300 {
			return resp, nil
		}

		if isRetryableStatus(resp.StatusCode) && attempt < httpMaxRetries {
			resp.Body.Close()

			backoff := calcBackoff(attempt)
			a.logger.Warn("retrying after HTTP error",
				slog.String("method", method), slog.String("path", path),
				slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt+1))

			if sleepErr := a.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, sleepErr
			}

			attempt++

			continue
		}

		return resp, nil
	}
}

func calcBackoff(attempt int) time.Duration {
	d := float64(httpBaseBackoff) * math.Pow(httpBackoffFactor, float64(attempt))
	if d > float64(httpMaxBackoff) {
		d = float64(httpMaxBackoff)
	}

	jitter := 1 + (rand.Float64()*2-1)*httpJitterFrac

	return time.Duration(d * jitter)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// wireNode is the vendor JSON shape decoded into a Node.
type wireNode struct {
	Handle uint64 `json:"handle"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Parent uint64 `json:"parent"`
	Size   uint64 `json:"size"`
	CTime  int64  `json:"ctime"`
	MTime  int64  `json:"mtime"`
	IsDir  bool   `json:"is_dir"`
}

func (w wireNode) toNode() Node {
	kind := KindFile
	if w.IsDir {
		kind = KindFolder
	}

	return Node{
		Handle: w.Handle, Name: w.Name, Path: w.Path, Parent: w.Parent, Size: w.Size,
		CTime:  time.Unix(0, w.CTime), MTime: time.Unix(0, w.MTime), Kind: kind,
	}
}

func (a *HTTPAdapter) getNode(ctx context.Context, path string) (Node, error) {
	resp, err := a.doRetry(ctx, http.MethodGet, "/nodes?path="+path)
	if err != nil {
		return Node{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Node{}, nil
	}

	var w wireNode
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return Node{}, fmt.Errorf("cloudclient: decoding node: %w", err)
	}

	return w.toNode(), nil
}

// RootNode fetches the account's root node.
func (a *HTTPAdapter) RootNode(ctx context.Context) (Node, error) {
	return a.getNode(ctx, "/")
}

// NodeByPath resolves path to a Node, reporting ok=false on a 404.
func (a *HTTPAdapter) NodeByPath(ctx context.Context, path string) (Node, bool, error) {
	resp, err := a.doRetry(ctx, http.MethodGet, "/nodes?path="+path)
	if err != nil {
		return Node{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Node{}, false, nil
	}

	var w wireNode
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return Node{}, false, fmt.Errorf("cloudclient: decoding node: %w", err)
	}

	return w.toNode(), true, nil
}

// Children lists node's immediate children.
func (a *HTTPAdapter) Children(ctx context.Context, node Node) ([]Node, error) {
	resp, err := a.doRetry(ctx, http.MethodGet, fmt.Sprintf("/nodes/%d/children", node.Handle))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wire []wireNode
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("cloudclient: decoding children: %w", err)
	}

	out := make([]Node, len(wire))
	for i, w := range wire {
		out[i] = w.toNode()
	}

	return out, nil
}

// Search looks up nodes whose name contains nameSubstring, used only to
// bootstrap the local Cloud Search Index.
func (a *HTTPAdapter) Search(ctx context.Context, nameSubstring string) ([]Node, error) {
	resp, err := a.doRetry(ctx, http.MethodGet, "/search?q="+nameSubstring)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wire []wireNode
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("cloudclient: decoding search results: %w", err)
	}

	out := make([]Node, len(wire))
	for i, w := range wire {
		out[i] = w.toNode()
	}

	return out, nil
}

// CreateFolder creates the folder at path (and any missing ancestors,
// per vendor semantics) and returns its Node.
func (a *HTTPAdapter) CreateFolder(ctx context.Context, path string) (Node, error) {
	resp, err := a.doRetry(ctx, http.MethodPost, "/folders?path="+path)
	if err != nil {
		return Node{}, err
	}
	defer resp.Body.Close()

	var w wireNode
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return Node{}, fmt.Errorf("cloudclient: decoding created folder: %w", err)
	}

	return w.toNode(), nil
}

// Remove deletes node (and its subtree, for folders).
func (a *HTTPAdapter) Remove(ctx context.Context, node Node) error {
	resp, err := a.doRetry(ctx, http.MethodDelete, fmt.Sprintf("/nodes/%d", node.Handle))
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}

// Rename renames node to newName in place.
func (a *HTTPAdapter) Rename(ctx context.Context, node Node, newName string) error {
	resp, err := a.doRetry(ctx, http.MethodPatch, fmt.Sprintf("/nodes/%d?name=%s", node.Handle, newName))
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}

// StartUpload and StartDownload are deliberately not implemented on the
// minimal restBackend contract: real transfer machinery (chunked upload
// sessions, resumable ranges) is exactly the vendor-SDK surface this
// adapter treats as opaque. A production build composes HTTPAdapter with
// a vendor transfer manager satisfying these two methods; see
// cloudclient.Client for the required signatures.
func (a *HTTPAdapter) StartUpload(context.Context, string, Node, string, Listener) (TransferHandle, error) {
	return nil, fmt.Errorf("cloudclient: StartUpload requires a vendor transfer backend, not configured")
}

func (a *HTTPAdapter) StartDownload(context.Context, Node, string, Listener) (TransferHandle, error) {
	return nil, fmt.Errorf("cloudclient: StartDownload requires a vendor transfer backend, not configured")
}

// CancelTransfers is a no-op: HTTPAdapter tracks no transfers of its own
// (see StartUpload/StartDownload).
func (a *HTTPAdapter) CancelTransfers(TransferKind) {}

var _ Client = (*HTTPAdapter)(nil)
