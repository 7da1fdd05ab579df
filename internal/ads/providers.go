package ads

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/prime-rewards/internal/logging"
)

// CallbackProvider is the one provider that reports outcomes through a
// server-to-server postback instead of a verify endpoint
const CallbackProvider = "adextra"

// VerifyIntegration is the promise-style adapter: it polls the
// provider's verify endpoint until the view is confirmed. The poll
// naturally spans the real watch time, which is what the anti-skip
// check measures.
type VerifyIntegration struct {
	client   *http.Client
	url      string
	appID    string
	interval time.Duration
}

// NewVerifyIntegration creates a verify-endpoint adapter
func NewVerifyIntegration(client *http.Client, url, appID string) *PromiseIntegration {
	v := &VerifyIntegration{
		client:   client,
		url:      url,
		appID:    appID,
		interval: time.Second,
	}
	return NewPromiseIntegration(v.run)
}

type verifyResponse struct {
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

func (v *VerifyIntegration) run(ctx context.Context) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		resp, err := v.poll(ctx)
		if err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("provider rejected view: %s", resp.Error)
		}
		if resp.Completed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (v *VerifyIntegration) poll(ctx context.Context) (*verifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	if v.appID != "" {
		req.Header.Set("X-App-Id", v.appID)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify endpoint returned %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	return &out, nil
}

// PostbackHub adapts provider postbacks into the callback integration
// style. Only one watch runs at a time, so a single armed callback
// pair is sufficient.
type PostbackHub struct {
	mu        sync.Mutex
	onSuccess func()
	onError   func(error)
}

// NewPostbackHub creates an empty hub
func NewPostbackHub() *PostbackHub {
	return &PostbackHub{}
}

// Integration returns the callback-style integration backed by the hub
func (h *PostbackHub) Integration() Integration {
	return NewCallbackIntegration(h.arm)
}

func (h *PostbackHub) arm(onSuccess func(), onError func(error)) {
	h.mu.Lock()
	h.onSuccess = onSuccess
	h.onError = onError
	h.mu.Unlock()
}

// Deliver routes a postback to the armed watch. Returns false when no
// watch is waiting.
func (h *PostbackHub) Deliver(err error) bool {
	h.mu.Lock()
	onSuccess, onError := h.onSuccess, h.onError
	h.onSuccess, h.onError = nil, nil
	h.mu.Unlock()

	if onSuccess == nil {
		return false
	}

	if err != nil {
		onError(err)
	} else {
		onSuccess()
	}
	return true
}

// SetupRegistry attaches an integration for every provider that has a
// reachable adapter. Providers without a verify endpoint stay
// not-loaded and their slot reports unavailable, the same as a failed
// SDK load.
func SetupRegistry(ctx context.Context, registry *Registry, hub *PostbackHub, configs ConfigSource, client *http.Client, logger *logging.Logger) error {
	cfg, err := configs.Ads(ctx)
	if err != nil {
		return err
	}

	for _, provider := range registry.Providers() {
		slot := cfg.Slot(provider)

		if provider == CallbackProvider {
			if err := registry.Register(provider, hub.Integration()); err != nil {
				return err
			}
			continue
		}

		if slot.VerifyURL == "" {
			logger.WithField("provider", provider).Warn("no verify endpoint configured, slot unavailable")
			continue
		}

		if err := registry.MarkLoading(provider); err != nil {
			return err
		}
		if err := registry.Register(provider, NewVerifyIntegration(client, slot.VerifyURL, slot.AppID)); err != nil {
			return err
		}
	}

	return nil
}
