// Package request turns the loosely-typed notification configuration into a
// validated spec and builds one *http.Request per attempt.
package request

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lupppig/notifyhttp/internal/domain"
)

const UserAgent = "notifyhttp/0.1.0"

// ReasonMissing marks a required key that is absent or blank.
const ReasonMissing = "must not be null"

// ConfigurationError reports a missing or malformed configuration value.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Key, e.Reason)
}

// ParseSpec validates config and normalises the method.
func ParseSpec(config map[string]string) (domain.RequestSpec, error) {
	rawURL := strings.TrimSpace(config[domain.ConfigKeyURL])
	if rawURL == "" {
		return domain.RequestSpec{}, &ConfigurationError{Key: domain.ConfigKeyURL, Reason: ReasonMissing}
	}
	rawMethod := strings.TrimSpace(config[domain.ConfigKeyMethod])
	if rawMethod == "" {
		return domain.RequestSpec{}, &ConfigurationError{Key: domain.ConfigKeyMethod, Reason: ReasonMissing}
	}

	if err := validateURL(rawURL); err != nil {
		return domain.RequestSpec{}, err
	}

	return domain.RequestSpec{
		URL:         rawURL,
		Method:      domain.ParseMethod(rawMethod),
		Body:        config[domain.ConfigKeyBody],
		ContentType: strings.TrimSpace(config[domain.ConfigKeyContentType]),
	}, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigurationError{Key: domain.ConfigKeyURL, Reason: err.Error()}
	}
	if !u.IsAbs() || u.Host == "" {
		return &ConfigurationError{Key: domain.ConfigKeyURL, Reason: "must be an absolute URI"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigurationError{Key: domain.ConfigKeyURL, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	return nil
}

// Build constructs a fresh request. GET and DELETE never carry a body;
// POST and PUT carry one only when it is non-empty.
func Build(ctx context.Context, spec domain.RequestSpec) (*http.Request, error) {
	var req *http.Request
	var err error
	if spec.HasEntity() {
		req, err = http.NewRequestWithContext(ctx, spec.Method.String(), spec.URL, strings.NewReader(spec.Body))
	} else {
		req, err = http.NewRequestWithContext(ctx, spec.Method.String(), spec.URL, http.NoBody)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	if spec.HasEntity() {
		req.Header.Set("Content-Type", spec.EffectiveContentType())
	}
	return req, nil
}
