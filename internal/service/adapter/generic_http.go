package adapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"golang.org/x/time/rate"
)

// credentialEnvPattern enforces that auth_credential_env can only ever
// name an operator-provisioned API key/token variable, so approving a
// community submission can never be used to exfiltrate an arbitrary
// environment variable.
var credentialEnvPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*_(API_KEY|API_TOKEN)$`)

var strippedRequestHeaders = map[string]bool{
	"host":               true,
	"authorization":      true,
	"x-api-key":          true,
	"cookie":             true,
	"transfer-encoding":  true,
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// genericRequest is the JSON envelope the Proxy Executor hands to a
// GenericHttp adapter's Quote/Execute.
type genericRequest struct {
	Operation string            `json:"operation"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Headers   map[string]string `json:"headers,omitempty"`
	Query     map[string]string `json:"query,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
}

// GenericHTTPAdapter realizes any community service from
// {base_url, auth_type, auth_credential_env} per spec §4.5.
type GenericHTTPAdapter struct {
	service    *domain.Service
	pricing    ports.PricingService
	credential string
	baseHost   string
	limiter    *rate.Limiter
	client     *http.Client
}

// NewGenericHTTPAdapter validates auth_credential_env at construction and
// resolves the operator-provisioned secret from the environment. It
// refuses to construct for a malformed credential env name.
func NewGenericHTTPAdapter(svc *domain.Service, pricing ports.PricingService, requestsPerSecond float64, burst int, timeout time.Duration) (*GenericHTTPAdapter, error) {
	if !credentialEnvPattern.MatchString(svc.AuthCredentialEnv) {
		return nil, fmt.Errorf("adapter %s: auth_credential_env %q does not match required pattern", svc.Slug, svc.AuthCredentialEnv)
	}

	parsed, err := url.Parse(svc.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: invalid base_url: %w", svc.Slug, err)
	}

	return &GenericHTTPAdapter{
		service:    svc,
		pricing:    pricing,
		credential: os.Getenv(svc.AuthCredentialEnv),
		baseHost:   parsed.Hostname(),
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Quote looks up the precomputed flat price_sats for the requested
// operation; it is synchronous and pure given the currently cached rate.
func (a *GenericHTTPAdapter) Quote(ctx context.Context, body []byte) (*ports.AdapterQuote, error) {
	var req genericRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}

	pricing, err := a.pricing.GetPrice(ctx, a.service.Slug, req.Operation)
	if err != nil {
		return nil, err
	}

	return &ports.AdapterQuote{Operation: req.Operation, QuotedSats: pricing.PriceSats}, nil
}

// Execute performs the upstream HTTP call under the per-service throttle.
// It does not return an error for a non-2xx status; it returns an error
// only for transport-level failures (DNS, TCP, TLS, timeout, context
// cancellation).
func (a *GenericHTTPAdapter) Execute(ctx context.Context, body []byte) (*ports.AdapterResponse, error) {
	var req genericRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}

	method := strings.ToUpper(req.Method)
	if !allowedMethods[method] {
		return nil, fmt.Errorf("method %q not permitted", req.Method)
	}
	if strings.Contains(req.Path, "..") || strings.Contains(req.Path, "://") || strings.HasPrefix(req.Path, "//") {
		return nil, fmt.Errorf("path %q rejected", req.Path)
	}

	target, err := url.Parse(strings.TrimRight(a.service.BaseURL, "/") + req.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve url: %w", err)
	}
	if target.Hostname() != a.baseHost {
		return nil, fmt.Errorf("resolved hostname %q escapes base_url host %q", target.Hostname(), a.baseHost)
	}

	if len(req.Query) > 0 {
		q := target.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		target.RawQuery = q.Encode()
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, v := range req.Headers {
		if strippedRequestHeaders[strings.ToLower(k)] {
			continue
		}
		httpReq.Header.Set(k, v)
	}
	a.injectAuth(httpReq, target)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &ports.AdapterResponse{Status: resp.StatusCode, Data: data, Headers: resp.Header}, nil
}

// Finalize maps upstream usage back to cost. The generic adapter charges
// the flat quoted price in full: final_sats == quoted_sats, which
// satisfies the final_sats <= quoted_sats contract trivially. Adapters
// for services with metered usage telemetry override this behavior.
func (a *GenericHTTPAdapter) Finalize(ctx context.Context, resp *ports.AdapterResponse, quotedSats int64) (int64, error) {
	return quotedSats, nil
}

func (a *GenericHTTPAdapter) injectAuth(req *http.Request, target *url.URL) {
	switch a.service.AuthType {
	case domain.AuthTypeBearer:
		req.Header.Set("Authorization", "Bearer "+a.credential)
	case domain.AuthTypeAPIKeyHeader:
		req.Header.Set("X-Api-Key", a.credential)
	case domain.AuthTypeBasic:
		req.Header.Set("Authorization", "Basic "+basicAuthValue(a.credential))
	case domain.AuthTypeQueryParam:
		q := target.Query()
		q.Set("api_key", a.credential)
		target.RawQuery = q.Encode()
		req.URL.RawQuery = target.RawQuery
	}
}

// basicAuthValue base64-encodes the raw credential for a Basic auth
// header; GenericHttp services authenticate with a single opaque secret,
// not a username:password pair.
func basicAuthValue(credential string) string {
	return base64.StdEncoding.EncodeToString([]byte(credential))
}
