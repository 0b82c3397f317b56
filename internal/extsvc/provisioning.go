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

// ProvisioningClient creates and starts jobs on the external
// job-provisioning service.
type ProvisioningClient struct {
	Endpoint string
	Client   *http.Client
}

func NewProvisioningClient(endpoint string) *ProvisioningClient {
	return &ProvisioningClient{Endpoint: endpoint, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (c *ProvisioningClient) CreateJob(ctx context.Context, snap models.EngagementSnapshot) (string, error) {
	body, _ := json.Marshal(snap)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create job: status %d", resp.StatusCode)
	}
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", fmt.Errorf("create job: empty job id")
	}
	return out.JobID, nil
}

func (c *ProvisioningClient) StartJob(ctx context.Context, jobID string) (string, error) {
	u := c.Endpoint + "/v1/jobs/" + url.PathEscape(jobID) + "/start"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("start job %s: status %d", jobID, resp.StatusCode)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Status, nil
}
