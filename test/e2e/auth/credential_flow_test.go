package auth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const plansPath = "/v1/credentials/creator/plans"

func TestSignedCreatorPlanRead(t *testing.T) {
	e := newEnv(t)
	e.createCreator("studio@example.com")
	ts := e.login("studio@example.com")

	// Mint a credential; the secret appears exactly once.
	status, created, _ := e.do(http.MethodPost, "/v1/credentials", bearer(ts.Access), map[string]string{
		"label": "billing backend",
	})
	require.Equal(t, http.StatusCreated, status)
	clientID := created["client_id"].(string)
	secret := created["client_secret"].(string)
	require.NotEmpty(t, clientID)
	require.NotEmpty(t, secret)

	// The mint response carries a real creation time.
	createdAt, err := time.Parse(time.RFC3339, created["created_at"].(string))
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), createdAt, time.Minute)

	status, _, _ = e.do(http.MethodGet, "/v1/credentials", bearer(ts.Access), nil)
	require.Equal(t, http.StatusOK, status)

	// A creator with no plans gets an empty list over the signed channel.
	integ := e.integration(clientID, secret, time.Now())
	plans, err := integ.CreatorPlans(context.Background())
	require.NoError(t, err)
	require.Empty(t, plans)

	// Publish a plan and read it back signed.
	status, plan, _ := e.do(http.MethodPost, "/v1/plans", bearer(ts.Access), map[string]any{
		"name":        "Backstage",
		"price_cents": 500,
		"interval":    "monthly",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "Backstage", plan["name"])

	plans, err = e.integration(clientID, secret, time.Now()).CreatorPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Equal(t, "Backstage", plans[0].Name)
	require.EqualValues(t, 500, plans[0].PriceCents)
}

func TestSignedRequestRejections(t *testing.T) {
	e := newEnv(t)
	e.createCreator("studio2@example.com")
	ts := e.login("studio2@example.com")

	status, created, _ := e.do(http.MethodPost, "/v1/credentials", bearer(ts.Access), map[string]string{
		"label": "integration",
	})
	require.Equal(t, http.StatusCreated, status)
	clientID := created["client_id"].(string)
	secret := created["client_secret"].(string)

	t.Run("wrong secret", func(t *testing.T) {
		status, body := e.signedGet(plansPath, clientID, "not-the-secret", time.Now())
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "invalid_credentials", body["error"])
	})

	t.Run("stale timestamp", func(t *testing.T) {
		status, body := e.signedGet(plansPath, clientID, secret, time.Now().Add(-10*time.Minute))
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "invalid_credentials", body["error"])
	})

	t.Run("unknown client id", func(t *testing.T) {
		status, body := e.signedGet(plansPath, "no-such-client", secret, time.Now())
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "invalid_credentials", body["error"])
	})

	t.Run("revoked credential", func(t *testing.T) {
		status, _, _ := e.do(http.MethodDelete, "/v1/credentials/"+clientID, bearer(ts.Access), nil)
		require.Equal(t, http.StatusNoContent, status)

		status, body := e.signedGet(plansPath, clientID, secret, time.Now())
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "invalid_credentials", body["error"])
	})
}

func TestPlainUserCannotManageCredentials(t *testing.T) {
	e := newEnv(t)
	e.register("fan@example.com")
	ts := e.login("fan@example.com")

	status, body, _ := e.do(http.MethodPost, "/v1/credentials", bearer(ts.Access), map[string]string{
		"label": "nope",
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "forbidden", body["error"])

	status, _, _ = e.do(http.MethodPost, "/v1/plans", bearer(ts.Access), map[string]any{
		"name":        "nope",
		"price_cents": 100,
	})
	require.Equal(t, http.StatusForbidden, status)
}

func TestPlanCRUDOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.createCreator("studio3@example.com")
	ts := e.login("studio3@example.com")

	status, plan, _ := e.do(http.MethodPost, "/v1/plans", bearer(ts.Access), map[string]any{
		"name":        "Standard",
		"description": "Monthly supporter tier",
		"price_cents": 900,
		"currency":    "EUR",
		"interval":    "monthly",
	})
	require.Equal(t, http.StatusCreated, status)
	planID := plan["id"].(string)

	status, updated, _ := e.do(http.MethodPut, "/v1/plans/"+planID, bearer(ts.Access), map[string]any{
		"name":        "Standard",
		"price_cents": 1100,
		"currency":    "EUR",
		"interval":    "monthly",
	})
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1100, updated["price_cents"])

	status, _, _ = e.do(http.MethodDelete, "/v1/plans/"+planID, bearer(ts.Access), nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _, _ = e.do(http.MethodDelete, "/v1/plans/"+planID, bearer(ts.Access), nil)
	require.Equal(t, http.StatusNotFound, status)
}
