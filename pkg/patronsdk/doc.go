/*
Package patronsdk is a Go client for the Patron auth service.

The package is organized around three types:

  - Client: unauthenticated operations (register, login) that produce
    authenticated Sessions
  - Session: user operations with automatic access-token refresh
  - Integration: server-to-server calls authenticated by a signed request
    instead of a bearer token

Create a Client to initiate authentication flows:

	client := patronsdk.NewClient("https://auth.example.com")

	session, err := client.Login(ctx, "user@example.com", password)

Accounts with an active second factor return a *MFARequiredError from Login;
complete the challenge to obtain the session:

	var mfa *patronsdk.MFARequiredError
	if errors.As(err, &mfa) {
		session, err = client.CompleteMFA(ctx, mfa.MFAToken, otpCode)
	}

Sessions refresh themselves when the access token expires:

	info, err := session.Me(ctx)

Integrations sign every request with their credential secret:

	integ := patronsdk.NewIntegration("https://auth.example.com", clientID, clientSecret)
	plans, err := integ.CreatorPlans(ctx)
*/
package patronsdk
