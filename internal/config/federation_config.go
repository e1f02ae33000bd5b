package config

// FederationConfig configures the optional upstream OIDC identity provider
// used for federated login. Federation is disabled when no issuer is set.
type FederationConfig interface {
	GetOidcIssuer() string
	GetOidcClientID() string
	GetOidcClientSecret() string
}

type Federation struct{}

var _ FederationConfig = Federation{}

func (Federation) GetOidcIssuer() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Federation) GetOidcClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Federation) GetOidcClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}
