package extsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/service-matching/internal/models"
)

// IdentityClient talks to the external identity service for credential
// refresh and seeker profile lookups.
type IdentityClient struct {
	Endpoint string
	Client   *http.Client
}

func NewIdentityClient(endpoint string) *IdentityClient {
	return &IdentityClient{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (c *IdentityClient) RefreshCredential(ctx context.Context, refreshToken string) (models.Tokens, error) {
	body, _ := json.Marshal(map[string]string{"refresh": refreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/v1/tokens/refresh", bytes.NewReader(body))
	if err != nil {
		return models.Tokens{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return models.Tokens{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Tokens{}, fmt.Errorf("identity refresh: status %d", resp.StatusCode)
	}
	var out models.Tokens
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Tokens{}, err
	}
	if out.Access == "" {
		return models.Tokens{}, fmt.Errorf("identity refresh: empty access token")
	}
	return out, nil
}

func (c *IdentityClient) GetProfileSummary(ctx context.Context, partyID string) (models.ProfileSummary, error) {
	u := c.Endpoint + "/v1/profiles/" + url.PathEscape(partyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.ProfileSummary{}, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return models.ProfileSummary{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return models.ProfileSummary{}, fmt.Errorf("profile %s: not found", partyID)
	}
	if resp.StatusCode != http.StatusOK {
		return models.ProfileSummary{}, fmt.Errorf("profile %s: status %d", partyID, resp.StatusCode)
	}
	var out models.ProfileSummary
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.ProfileSummary{}, err
	}
	return out, nil
}
