// Package identity links an external game identity to the wallet.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotAuthenticated is returned by LinkedAccounts when there is no
// primary session yet.
var ErrNotAuthenticated = errors.New("not authenticated")

// Account is one entry of the provider's linked-account list.
type Account struct {
	Type            string   `json:"type"`
	ProviderAppID   string   `json:"provider_app_id,omitempty"`
	Address         string   `json:"address,omitempty"`
	Wallets         []string `json:"wallets,omitempty"`
	EmbeddedWallets []string `json:"embedded_wallets,omitempty"`
}

// CrossApp is the account type for cross-provider logins.
const CrossApp = "cross_app"

// Provider is the minimal identity-provider capability the linker needs.
type Provider interface {
	// LinkedAccounts returns ErrNotAuthenticated without a primary session.
	LinkedAccounts(ctx context.Context) ([]Account, error)
	Login(ctx context.Context) error
	LoginCrossApp(ctx context.Context, appID string) error
}

// HTTPProvider talks to a local auth bridge that owns the provider's
// interactive login flows.
type HTTPProvider struct {
	baseURL string
	appID   string
	client  *http.Client
}

// NewHTTPProvider returns a provider for the bridge at baseURL. appID is
// the application identity registered with the auth provider.
func NewHTTPProvider(baseURL, appID string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPProvider{baseURL: strings.TrimRight(baseURL, "/"), appID: appID, client: client}
}

type bridgeError struct {
	Error string `json:"error"`
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-App-Id", p.appID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthenticated
	}
	if resp.StatusCode >= 300 {
		var be bridgeError
		if err := json.NewDecoder(resp.Body).Decode(&be); err == nil && be.Error != "" {
			return errors.New(be.Error)
		}
		return fmt.Errorf("auth bridge error %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LinkedAccounts implements Provider.
func (p *HTTPProvider) LinkedAccounts(ctx context.Context) ([]Account, error) {
	var out struct {
		LinkedAccounts []Account `json:"linked_accounts"`
	}
	if err := p.do(ctx, http.MethodGet, "/session/linked-accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.LinkedAccounts, nil
}

// Login implements Provider.
func (p *HTTPProvider) Login(ctx context.Context) error {
	return p.do(ctx, http.MethodPost, "/session/login", nil, nil)
}

// LoginCrossApp implements Provider.
func (p *HTTPProvider) LoginCrossApp(ctx context.Context, appID string) error {
	return p.do(ctx, http.MethodPost, "/session/cross-app", map[string]string{"app_id": appID}, nil)
}

// PickAddress selects the external wallet address from accounts: the
// cross-app entry for providerAppID, else any cross-app entry. Within the
// entry the first embedded wallet wins, then the first wallet, then the
// entry's own address.
func PickAddress(accounts []Account, providerAppID string) string {
	var acct *Account
	for i := range accounts {
		if accounts[i].Type == CrossApp && accounts[i].ProviderAppID == providerAppID {
			acct = &accounts[i]
			break
		}
	}
	if acct == nil {
		for i := range accounts {
			if accounts[i].Type == CrossApp {
				acct = &accounts[i]
				break
			}
		}
	}
	if acct == nil {
		return ""
	}
	switch {
	case len(acct.EmbeddedWallets) > 0 && acct.EmbeddedWallets[0] != "":
		return acct.EmbeddedWallets[0]
	case len(acct.Wallets) > 0 && acct.Wallets[0] != "":
		return acct.Wallets[0]
	}
	return acct.Address
}
