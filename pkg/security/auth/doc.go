/*
Package auth resolves the caller identity of a request from its API key.

Each key maps to an APIKeyInfo naming the tenant and customer the key acts
for and the authority it holds. APIKeyInfo implements limits.Caller, so the
admission middleware can read it straight from the request context:

	validator := auth.NewAPIKeyValidator([]*auth.APIKeyInfo{
		{
			Key:        "gk-acme-web",
			TenantID:   "acme",
			CustomerID: "web",
			Authority:  auth.AuthorityCustomerUser,
			Enabled:    true,
		},
	})

	mw := auth.NewAPIKeyMiddleware(validator, auth.MiddlewareOptions{
		Sources: []auth.APIKeySource{
			{Type: "header", Name: "Authorization", Scheme: "Bearer"},
			{Type: "query", Name: "api_key"},
		},
	})
	http.Handle("/", mw.Handle(next))

# Authorities

  - SYS_ADMIN: bypasses admission control entirely
  - TENANT_ADMIN: limited by the tenant rules only
  - CUSTOMER_USER: limited by the tenant rules and the customer rules

# Optional Authentication

With MiddlewareOptions.Optional set, requests without a key are passed on
with no identity in the context and are therefore not rate limited. A key
that is present but unknown or disabled is always answered with 401.
*/
package auth
