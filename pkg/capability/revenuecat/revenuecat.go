// Package revenuecat implements the commerce capability against the
// RevenueCat REST API. Purchases themselves are store-mediated and cannot be
// completed server-side, so PurchasePackage reports ErrNotSupported; the
// backend covers configuration, entitlement reads, offerings and restores.
package revenuecat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mihaimyh/gomonetize/pkg/capability"
)

const (
	defaultAPIBaseURL  = "https://api.revenuecat.com/v1"
	defaultHTTPTimeout = 10 * time.Second

	packageIDMonthly = "$rc_monthly"
	packageIDAnnual  = "$rc_annual"
)

// Config holds optional backend collaborators.
type Config struct {
	// BaseURL overrides the RevenueCat API endpoint.
	BaseURL string

	// HTTPClient overrides the default client (10s timeout).
	HTTPClient *http.Client
}

// Commerce is a RevenueCat-backed capability.Commerce.
type Commerce struct {
	baseURL    string
	httpClient *http.Client

	mu             sync.Mutex
	apiKey         string
	appUserID      string
	listeners      map[int]func(*capability.CustomerInfo)
	nextListenerID int
}

// NewCommerce creates a RevenueCat commerce backend. The backend is inert
// until Configure supplies an API key and app user id.
func NewCommerce(config Config) *Commerce {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Commerce{
		baseURL:    baseURL,
		httpClient: httpClient,
		listeners:  make(map[int]func(*capability.CustomerInfo)),
	}
}

func (c *Commerce) Available() bool { return true }

// Configure stores the API key and app user id for subsequent calls. The key
// may be provided as a Bearer token; the prefix is stripped.
func (c *Commerce) Configure(_ context.Context, req capability.ConfigureRequest) error {
	apiKey := strings.TrimSpace(req.APIKey)
	if strings.HasPrefix(strings.ToLower(apiKey), "bearer ") {
		apiKey = strings.TrimSpace(apiKey[len("bearer "):])
	}
	if apiKey == "" {
		return fmt.Errorf("revenuecat: %w: empty api key", capability.ErrUnavailable)
	}
	if strings.TrimSpace(req.AppUserID) == "" {
		return fmt.Errorf("revenuecat: %w: empty app user id", capability.ErrUnavailable)
	}

	c.mu.Lock()
	c.apiKey = apiKey
	c.appUserID = strings.TrimSpace(req.AppUserID)
	c.mu.Unlock()
	return nil
}

// subscriberResponse mirrors the RevenueCat GET /subscribers/{id} payload.
type subscriberResponse struct {
	Subscriber subscriber `json:"subscriber"`
}

type subscriber struct {
	OriginalAppUserID string                 `json:"original_app_user_id"`
	Entitlements      map[string]entitlement `json:"entitlements"`
}

type entitlement struct {
	ExpiresDate       *string `json:"expires_date"`
	ProductIdentifier string  `json:"product_identifier"`
	PurchaseDate      *string `json:"purchase_date"`
}

// GetCustomerInfo fetches the subscriber and reduces the entitlement map to
// active flags. An unknown subscriber yields empty customer info, not an
// error: RevenueCat creates subscribers lazily on first purchase.
func (c *Commerce) GetCustomerInfo(ctx context.Context) (*capability.CustomerInfo, error) {
	apiKey, appUserID, err := c.credentials()
	if err != nil {
		return nil, err
	}

	var payload subscriberResponse
	status, err := c.get(ctx, apiKey, "/subscribers/"+appUserID, &payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &capability.CustomerInfo{
			OriginalAppUserID: appUserID,
			Entitlements:      capability.Entitlements{Active: map[string]bool{}},
		}, nil
	}

	now := time.Now()
	active := make(map[string]bool, len(payload.Subscriber.Entitlements))
	for name, ent := range payload.Subscriber.Entitlements {
		active[name] = entitlementActive(ent, now)
	}

	originalID := payload.Subscriber.OriginalAppUserID
	if originalID == "" {
		originalID = appUserID
	}
	return &capability.CustomerInfo{
		OriginalAppUserID: originalID,
		Entitlements:      capability.Entitlements{Active: active},
	}, nil
}

// offeringsResponse mirrors the RevenueCat GET /subscribers/{id}/offerings
// payload.
type offeringsResponse struct {
	CurrentOfferingID string            `json:"current_offering_id"`
	Offerings         []offeringPayload `json:"offerings"`
}

type offeringPayload struct {
	Identifier string           `json:"identifier"`
	Packages   []packagePayload `json:"packages"`
}

type packagePayload struct {
	Identifier                string `json:"identifier"`
	PlatformProductIdentifier string `json:"platform_product_identifier"`
}

// GetOfferings fetches the offering catalog and maps it to the capability
// shape. Monthly/annual direct fields are derived from the well-known
// RevenueCat package identifiers.
func (c *Commerce) GetOfferings(ctx context.Context) (*capability.Offerings, error) {
	apiKey, appUserID, err := c.credentials()
	if err != nil {
		return nil, err
	}

	var payload offeringsResponse
	status, err := c.get(ctx, apiKey, "/subscribers/"+appUserID+"/offerings", &payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &capability.Offerings{All: map[string]*capability.Offering{}}, nil
	}

	out := &capability.Offerings{All: make(map[string]*capability.Offering, len(payload.Offerings))}
	for _, o := range payload.Offerings {
		offering := &capability.Offering{Identifier: o.Identifier}
		for _, p := range o.Packages {
			pkg := &capability.Package{
				Identifier: p.Identifier,
				Type:       packageType(p.Identifier),
				Product:    capability.Product{Identifier: p.PlatformProductIdentifier},
				OfferingID: o.Identifier,
			}
			offering.AvailablePackages = append(offering.AvailablePackages, pkg)
			switch pkg.Type {
			case capability.PackageTypeMonthly:
				offering.Monthly = pkg
			case capability.PackageTypeAnnual:
				offering.Annual = pkg
			}
		}
		out.All[o.Identifier] = offering
		if o.Identifier == payload.CurrentOfferingID {
			out.Current = offering
		}
	}
	return out, nil
}

// PurchasePackage reports ErrNotSupported: RevenueCat purchases complete
// through the platform store SDKs, not the REST API.
func (c *Commerce) PurchasePackage(_ context.Context, _ *capability.Package) (*capability.PurchaseResult, error) {
	return nil, fmt.Errorf("revenuecat: %w: purchases are store-mediated", capability.ErrNotSupported)
}

// RestorePurchases re-reads the subscriber and notifies listeners with the
// fresh customer info.
func (c *Commerce) RestorePurchases(ctx context.Context) (*capability.CustomerInfo, error) {
	info, err := c.GetCustomerInfo(ctx)
	if err != nil {
		return nil, err
	}
	c.notify(info)
	return info, nil
}

func (c *Commerce) AddCustomerInfoUpdateListener(fn func(*capability.CustomerInfo)) (remove func()) {
	c.mu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Commerce) notify(info *capability.CustomerInfo) {
	c.mu.Lock()
	fns := make([]func(*capability.CustomerInfo), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(info)
	}
}

func (c *Commerce) credentials() (apiKey, appUserID string, err error) {
	c.mu.Lock()
	apiKey, appUserID = c.apiKey, c.appUserID
	c.mu.Unlock()
	if apiKey == "" || appUserID == "" {
		return "", "", fmt.Errorf("revenuecat: %w: not configured", capability.ErrUnavailable)
	}
	return apiKey, appUserID, nil
}

// get performs an authenticated GET and decodes 2xx responses into out.
// A 404 status is returned to the caller without decoding; any other non-2xx
// status is an error.
func (c *Commerce) get(ctx context.Context, apiKey, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("revenuecat: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("revenuecat: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, res.Body)
		return res.StatusCode, nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, fmt.Errorf("revenuecat: failed to read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, fmt.Errorf("revenuecat: API error: status %d, body: %s", res.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return res.StatusCode, fmt.Errorf("revenuecat: failed to parse response: %w", err)
	}
	return res.StatusCode, nil
}

func entitlementActive(ent entitlement, now time.Time) bool {
	if ent.ExpiresDate == nil || strings.TrimSpace(*ent.ExpiresDate) == "" {
		// Lifetime entitlements carry no expiration.
		return true
	}
	expires, err := parseTime(*ent.ExpiresDate)
	if err != nil {
		return false
	}
	return expires.After(now)
}

func packageType(identifier string) capability.PackageType {
	switch identifier {
	case packageIDMonthly:
		return capability.PackageTypeMonthly
	case packageIDAnnual:
		return capability.PackageTypeAnnual
	default:
		return capability.PackageTypeUnknown
	}
}

// parseTime parses a RevenueCat timestamp string.
func parseTime(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %s", v)
}
