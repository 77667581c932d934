// Package stripe implements the commerce capability on Stripe subscriptions.
// Entitlements are derived from active subscription price IDs, offerings from
// the recurring price catalog, and purchases complete through a hosted
// checkout session returned as a redirect URL.
package stripe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/gomonetize/pkg/capability"
)

const (
	subscriptionStatusActive = "active"
	defaultOfferingID        = "default"
)

// Config holds the Stripe backend configuration.
type Config struct {
	// EntitlementMapping maps Stripe price IDs to entitlement names
	// (e.g. "price_123" -> "premium"). Prices without a mapping grant no
	// entitlement.
	EntitlementMapping map[string]string

	// SuccessURL and CancelURL terminate the hosted checkout flow.
	SuccessURL string
	CancelURL  string
}

// Commerce is a Stripe-backed capability.Commerce.
type Commerce struct {
	config             Config
	entitlementMapping map[string]string

	mu             sync.Mutex
	client         *stripe.Client
	appUserID      string
	listeners      map[int]func(*capability.CustomerInfo)
	nextListenerID int
}

// NewCommerce creates a Stripe commerce backend. The backend is inert until
// Configure supplies an API key and app user id.
func NewCommerce(config Config) *Commerce {
	mapping := make(map[string]string, len(config.EntitlementMapping))
	for k, v := range config.EntitlementMapping {
		mapping[strings.ToLower(strings.TrimSpace(k))] = v
	}

	return &Commerce{
		config:             config,
		entitlementMapping: mapping,
		listeners:          make(map[int]func(*capability.CustomerInfo)),
	}
}

func (c *Commerce) Available() bool { return true }

// Configure creates the Stripe client for the given secret key and pins the
// app user id used for customer lookups.
func (c *Commerce) Configure(_ context.Context, req capability.ConfigureRequest) error {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return fmt.Errorf("stripe: %w: empty api key", capability.ErrUnavailable)
	}
	if strings.TrimSpace(req.AppUserID) == "" {
		return fmt.Errorf("stripe: %w: empty app user id", capability.ErrUnavailable)
	}

	c.mu.Lock()
	c.client = stripe.NewClient(apiKey)
	c.appUserID = strings.TrimSpace(req.AppUserID)
	c.mu.Unlock()
	return nil
}

// GetCustomerInfo derives entitlements from the user's active subscriptions.
// An unknown customer yields empty customer info, not an error.
func (c *Commerce) GetCustomerInfo(ctx context.Context) (*capability.CustomerInfo, error) {
	client, appUserID, err := c.session()
	if err != nil {
		return nil, err
	}

	info := &capability.CustomerInfo{
		OriginalAppUserID: appUserID,
		Entitlements:      capability.Entitlements{Active: map[string]bool{}},
	}

	customerID, err := c.findCustomer(ctx, client, appUserID)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return info, nil
	}

	params := &stripe.SubscriptionListParams{}
	params.Customer = stripe.String(customerID)
	params.Status = stripe.String(subscriptionStatusActive)

	for sub, err := range client.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return nil, fmt.Errorf("stripe: failed to list subscriptions: %w", err)
		}
		if sub.Status != subscriptionStatusActive {
			continue
		}
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if name := c.entitlementForPrice(item.Price.ID); name != "" {
				info.Entitlements.Active[name] = true
			}
		}
	}
	return info, nil
}

// GetOfferings builds a single offering from the active recurring price
// catalog, bucketed by billing interval.
func (c *Commerce) GetOfferings(ctx context.Context) (*capability.Offerings, error) {
	client, _, err := c.session()
	if err != nil {
		return nil, err
	}

	params := &stripe.PriceListParams{}
	params.Active = stripe.Bool(true)
	params.Type = stripe.String(string(stripe.PriceTypeRecurring))

	offering := &capability.Offering{Identifier: defaultOfferingID}
	for price, err := range client.V1Prices.List(ctx, params) {
		if err != nil {
			return nil, fmt.Errorf("stripe: failed to list prices: %w", err)
		}
		if price.Recurring == nil {
			continue
		}

		pkg := &capability.Package{
			Identifier: price.ID,
			Type:       packageTypeForInterval(price.Recurring.Interval),
			Product: capability.Product{
				Identifier:   price.ID,
				Price:        float64(price.UnitAmount) / 100,
				PriceString:  formatPrice(price.UnitAmount, string(price.Currency)),
				CurrencyCode: strings.ToUpper(string(price.Currency)),
			},
			OfferingID: defaultOfferingID,
		}
		offering.AvailablePackages = append(offering.AvailablePackages, pkg)

		// First price per interval wins the direct slot.
		switch pkg.Type {
		case capability.PackageTypeMonthly:
			if offering.Monthly == nil {
				offering.Monthly = pkg
			}
		case capability.PackageTypeAnnual:
			if offering.Annual == nil {
				offering.Annual = pkg
			}
		}
	}

	return &capability.Offerings{
		Current: offering,
		All:     map[string]*capability.Offering{defaultOfferingID: offering},
	}, nil
}

// PurchasePackage creates a hosted checkout session for the package's price
// and returns its URL. Entitlement lands after checkout completes and is
// picked up by the next refresh or restore.
func (c *Commerce) PurchasePackage(ctx context.Context, pkg *capability.Package) (*capability.PurchaseResult, error) {
	client, appUserID, err := c.session()
	if err != nil {
		return nil, err
	}
	if pkg == nil || pkg.Product.Identifier == "" {
		return nil, fmt.Errorf("stripe: package has no price id")
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(pkg.Product.Identifier),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.config.SuccessURL),
		CancelURL:  stripe.String(c.config.CancelURL),
	}

	// The metadata links the eventual subscription back to the app user.
	params.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{}
	params.SubscriptionData.AddMetadata("user_id", appUserID)

	customerID, err := c.findCustomer(ctx, client, appUserID)
	if err != nil {
		return nil, err
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else {
		params.ClientReferenceID = stripe.String(appUserID)
		params.CustomerCreation = stripe.String("always")
	}

	session, err := client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	return &capability.PurchaseResult{RedirectURL: session.URL}, nil
}

// RestorePurchases re-derives entitlements from the subscription state and
// notifies listeners with the fresh customer info.
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

func (c *Commerce) session() (*stripe.Client, string, error) {
	c.mu.Lock()
	client, appUserID := c.client, c.appUserID
	c.mu.Unlock()
	if client == nil || appUserID == "" {
		return nil, "", fmt.Errorf("stripe: %w: not configured", capability.ErrUnavailable)
	}
	return client, appUserID, nil
}

// findCustomer searches for the customer carrying the app user id in its
// metadata. An empty result means no customer exists yet.
func (c *Commerce) findCustomer(ctx context.Context, client *stripe.Client, appUserID string) (string, error) {
	params := &stripe.CustomerSearchParams{}
	params.Query = fmt.Sprintf("metadata['user_id']:'%s'", appUserID)

	for cust, err := range client.V1Customers.Search(ctx, params) {
		if err != nil {
			return "", fmt.Errorf("stripe: customer search failed: %w", err)
		}
		// The search API can return partial matches.
		if cust.Metadata != nil && cust.Metadata["user_id"] == appUserID {
			return cust.ID, nil
		}
	}
	return "", nil
}

func (c *Commerce) entitlementForPrice(priceID string) string {
	return c.entitlementMapping[strings.ToLower(strings.TrimSpace(priceID))]
}

func packageTypeForInterval(interval stripe.PriceRecurringInterval) capability.PackageType {
	switch interval {
	case stripe.PriceRecurringIntervalMonth:
		return capability.PackageTypeMonthly
	case stripe.PriceRecurringIntervalYear:
		return capability.PackageTypeAnnual
	default:
		return capability.PackageTypeUnknown
	}
}

func formatPrice(unitAmount int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(unitAmount)/100, strings.ToUpper(currency))
}
