package patronsdk

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patronhq/patron/pkg/cryptox"
)

// Integration is a server-to-server client. Instead of a user session it
// holds an API credential and signs every request with it.
type Integration struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	// Now overrides the clock used for signature timestamps. Nil means
	// time.Now.
	Now func() time.Time
}

// NewIntegration creates a signing client for the credential pair.
func NewIntegration(baseURL, clientID, clientSecret string) *Integration {
	return &Integration{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// CreatorPlans lists the plans of the creator who owns the credential.
func (i *Integration) CreatorPlans(ctx context.Context) ([]Plan, error) {
	resp, err := i.Do(ctx, http.MethodGet, "/v1/credentials/creator/plans", nil)
	if err != nil {
		return nil, err
	}

	var plans []Plan
	if err := decodeJSON(resp, &plans, http.StatusOK); err != nil {
		return nil, err
	}
	return plans, nil
}

// Do sends one signed request. path must exclude the query string; it is part
// of the signed canonical form.
func (i *Integration) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	ts := i.now().Unix()
	sig := cryptox.SignRequest(i.ClientSecret, ts, method, path, body)

	req, err := http.NewRequestWithContext(ctx, method, i.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-client-id", i.ClientID)
	req.Header.Set("x-signature", sig)
	req.Header.Set("x-timestamp", strconv.FormatInt(ts, 10))

	return i.HTTPClient.Do(req)
}

func (i *Integration) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}
