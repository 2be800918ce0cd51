package oauth

import (
	"context"

	"signet/internal/config"
)

// endpointSet is the resolved set of endpoints one flow runs against.
type endpointSet struct {
	authorization string
	token         string
	userinfo      string
}

// resolveEndpoints merges the provider's explicit endpoint configuration
// with issuer metadata discovery. Explicit configuration wins; discovery
// fills the blanks. Discovery results are cached inside the client, so
// repeated flows against the same issuer fetch metadata once.
func (m *Manager) resolveEndpoints(ctx context.Context, p *config.ProviderConfig) (endpointSet, error) {
	oc := p.OAuth
	eps := endpointSet{
		authorization: oc.AuthorizationEndpoint,
		token:         oc.TokenEndpoint,
		userinfo:      oc.UserInfoEndpoint,
	}

	if eps.authorization != "" && eps.token != "" {
		return eps, nil
	}

	issuer := oc.NormalizedIssuer()
	if issuer == "" {
		return endpointSet{}, newFlowError(p.ID, KindUnsupportedProvider,
			"provider %s has neither explicit endpoints nor an issuer", p.ID)
	}

	metadata, err := m.discovery.DiscoverMetadata(ctx, issuer)
	if err != nil {
		return endpointSet{}, wrapFlowError(p.ID, KindNetworkError, err,
			"endpoint discovery for issuer %s failed", issuer)
	}

	if eps.authorization == "" {
		eps.authorization = metadata.AuthorizationEndpoint
	}
	if eps.token == "" {
		eps.token = metadata.TokenEndpoint
	}
	if eps.userinfo == "" {
		eps.userinfo = metadata.UserinfoEndpoint
	}

	return eps, nil
}
