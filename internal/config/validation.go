package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError names the field that failed validation and why.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors accumulates every problem found in one validation pass,
// so the user can fix the whole file in one edit.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors reports whether the pass collected anything.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add appends a failure; value is optional and recorded when given.
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the whole configuration and returns every problem found,
// not just the first.
func Validate(cfg *Config) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]bool)
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		prefix := fmt.Sprintf("providers[%d]", i)

		if strings.TrimSpace(p.ID) == "" {
			errs.Add(prefix+".id", "is required", p.ID)
			continue
		}
		if strings.ContainsAny(p.ID, " /\\") {
			errs.Add(prefix+".id", "must not contain spaces or path separators", p.ID)
		}
		if seen[p.ID] {
			errs.Add(prefix+".id", fmt.Sprintf("duplicate provider id %q", p.ID), p.ID)
		}
		seen[p.ID] = true

		validateProvider(p, prefix, &errs)
	}

	if cfg.Broker.Enabled {
		validateBrokerAddr(cfg.Broker.Addr, &errs)
	}

	return errs
}

func validateProvider(p *ProviderConfig, prefix string, errs *ValidationErrors) {
	switch p.AuthType {
	case AuthTypeOAuth, AuthTypeAPIKey, AuthTypeNone:
	default:
		errs.Add(prefix+".authType", fmt.Sprintf("must be one of: %s, %s, %s", AuthTypeOAuth, AuthTypeAPIKey, AuthTypeNone), string(p.AuthType))
		return
	}

	if p.AuthType != AuthTypeOAuth {
		return
	}

	if p.OAuth == nil {
		errs.Add(prefix+".oauth", "is required when authType is oauth")
		return
	}

	o := p.OAuth
	if strings.TrimSpace(o.ClientID) == "" {
		errs.Add(prefix+".oauth.clientID", "is required")
	}

	// Endpoints may come from issuer discovery instead of being spelled
	// out. One of the two sources must be present.
	if o.Issuer == "" {
		if o.AuthorizationEndpoint == "" {
			errs.Add(prefix+".oauth.authorizationEndpoint", "is required when no issuer is set")
		}
		if o.TokenEndpoint == "" {
			errs.Add(prefix+".oauth.tokenEndpoint", "is required when no issuer is set")
		}
	}

	for field, value := range map[string]string{
		prefix + ".oauth.issuer":                o.Issuer,
		prefix + ".oauth.authorizationEndpoint": o.AuthorizationEndpoint,
		prefix + ".oauth.tokenEndpoint":         o.TokenEndpoint,
		prefix + ".oauth.userInfoEndpoint":      o.UserInfoEndpoint,
	} {
		if value == "" {
			continue
		}
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add(field, "must be an absolute URL", value)
		}
	}

	if o.CallbackPort < 0 || o.CallbackPort > 65535 {
		errs.Add(prefix+".oauth.callbackPort", "must be a valid port", o.CallbackPort)
	}
}

func validateBrokerAddr(addr string, errs *ValidationErrors) {
	if addr == "" {
		return
	}
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	switch host {
	case "127.0.0.1", "localhost", "::1", "[::1]":
	default:
		errs.Add("broker.addr", "must bind a loopback address", addr)
	}
}
