// Package assist rewrites finding text with an LLM. Input is stripped of personal data before it leaves the process.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("model returned no text")
	// ErrOffline is returned when text generation needs a configured provider
	ErrOffline = errors.New("no assistant provider configured")
)

// Provider is a text generation backend
type Provider interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

const (
	ProviderGemini  = "gemini"
	ProviderOffline = "offline"
)

// Providers lists the provider names the assistant accepts
var Providers = []string{ProviderGemini, ProviderOffline}

// ParseProvider normalizes a provider name. Empty selects Gemini.
func ParseProvider(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderGemini, nil
	}
	for _, p := range Providers {
		if p == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (supported: %s)", name, strings.Join(Providers, ", "))
}

// NewProvider returns the named provider. An empty API key selects the offline provider.
func NewProvider(ctx context.Context, providerName, apiKey, modelName string) (Provider, error) {
	name, err := ParseProvider(providerName)
	if err != nil {
		return nil, err
	}
	if name == ProviderOffline || apiKey == "" {
		return OfflineProvider{}, nil
	}
	return NewGeminiProvider(ctx, apiKey, modelName)
}

// OfflineProvider stands in when no API key is configured. It generates nothing.
type OfflineProvider struct{}

func (OfflineProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	return "", ErrOffline
}

func (OfflineProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{"offline"}, nil
}
