// Package config provides configuration management for signet.
//
// Configuration is loaded from a single directory. The default is
// ~/.config/signet, overridable with the --config-path flag or the
// SIGNET_CONFIG_PATH environment variable.
//
// # Configuration Directory
//
// The directory contains:
//   - providers.yaml (the provider definitions and broker settings)
//   - .env (optional, loaded into the environment before overrides apply)
//   - credentials/ (managed by the credential store, never edited by hand)
//
// # providers.yaml
//
//	providers:
//	  - id: anthropic
//	    displayName: Anthropic
//	    authType: oauth
//	    oauth:
//	      clientID: signet-cli
//	      authorizationEndpoint: https://auth.anthropic.com/oauth/authorize
//	      tokenEndpoint: https://auth.anthropic.com/oauth/token
//	      userInfoEndpoint: https://auth.anthropic.com/oauth/userinfo
//	      scopes: [profile, inference]
//	  - id: google-vertex
//	    authType: oauth
//	    oauth:
//	      clientID: signet-cli
//	      issuer: https://accounts.google.com
//	      scopes: [openid, email]
//	      extraAuthParams:
//	        access_type: offline
//	        prompt: consent
//	broker:
//	  addr: 127.0.0.1:7767
//	  enabled: true
//
// Providers with an issuer and no explicit endpoints have their endpoints
// resolved through authorization server metadata discovery at flow time.
//
// # Environment Overrides
//
// SIGNET_<PROVIDER>_CLIENT_SECRET and SIGNET_<PROVIDER>_CLIENT_ID override
// the per-provider client credentials, with the provider id upper-cased and
// punctuation mapped to underscores. SIGNET_CREDENTIAL_DIR,
// SIGNET_BROKER_ADDR, and SIGNET_CALLBACK_PORT override the corresponding
// file values. A .env file in the configuration directory is loaded first,
// with real environment variables taking precedence.
//
// # Live Reload
//
// Watcher observes the configuration directory and reloads the Registry
// when providers.yaml or .env changes, debouncing editor save bursts. A
// change that fails validation is rejected and the previous configuration
// stays in effect.
package config
