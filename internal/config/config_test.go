package config

import (
	"strings"
	"testing"
)

func newTestViper() map[string]interface{} {
	return map[string]interface{}{
		"auth.signing_secret":  "test-secret",
		"google.client_id":     "client-id.apps.googleusercontent.com",
		"google.client_secret": "client-secret",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	for key, value := range newTestViper() {
		configViper.Set(key, value)
	}

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address: %q", cfg.HTTPAddress)
	}
	if cfg.OrgID != defaultOrgID {
		t.Fatalf("unexpected org id: %q", cfg.OrgID)
	}
	if cfg.AllowedDomain != defaultAllowedDomain {
		t.Fatalf("unexpected allowed domain: %q", cfg.AllowedDomain)
	}
	if cfg.GoogleJWKSURL != defaultGoogleJWKSURL {
		t.Fatalf("unexpected jwks url: %q", cfg.GoogleJWKSURL)
	}
	if cfg.TokenTTL.Minutes() != defaultTokenTTLMinutes {
		t.Fatalf("unexpected token ttl: %s", cfg.TokenTTL)
	}
}

func TestLoadRejectsMissingSigningSecret(t *testing.T) {
	configViper := NewViper()
	for key, value := range newTestViper() {
		if key == "auth.signing_secret" {
			continue
		}
		configViper.Set(key, value)
	}

	_, err := Load(configViper)
	if err == nil || !strings.Contains(err.Error(), "auth.signing_secret") {
		t.Fatalf("expected signing secret error, got %v", err)
	}
}

func TestLoadRejectsMissingGoogleCredentials(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "test-secret")

	_, err := Load(configViper)
	if err == nil || !strings.Contains(err.Error(), "google.client_id") {
		t.Fatalf("expected google client id error, got %v", err)
	}
}

func TestLoadRejectsMalformedAllowedDomain(t *testing.T) {
	configViper := NewViper()
	for key, value := range newTestViper() {
		configViper.Set(key, value)
	}
	configViper.Set("org.allowed_domain", "groupmkl.com")

	_, err := Load(configViper)
	if err == nil || !strings.Contains(err.Error(), "allowed_domain") {
		t.Fatalf("expected allowed domain error, got %v", err)
	}
}
