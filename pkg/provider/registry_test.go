package provider_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/mock"
)

func TestNewRegistry_Lookup(t *testing.T) {
	openai := &mock.Adapter{NameValue: "OpenAI"}
	ollama := &mock.Adapter{NameValue: "Ollama"}
	reg, err := provider.NewRegistry(openai, ollama)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("Len: got %d, want 2", reg.Len())
	}
	got, ok := reg.Lookup("Ollama")
	if !ok || got != ollama {
		t.Errorf("Lookup(Ollama): got %v, %v", got, ok)
	}
	if _, ok := reg.Lookup("ollama"); ok {
		t.Error("Lookup must be case-sensitive")
	}
	if _, ok := reg.Lookup("Missing"); ok {
		t.Error("Lookup(Missing): expected not found")
	}
	if names := reg.Names(); !slices.Equal(names, []string{"Ollama", "OpenAI"}) {
		t.Errorf("Names: got %v", names)
	}
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := provider.NewRegistry(&mock.Adapter{NameValue: "A"}, &mock.Adapter{NameValue: "A"})
	if !errors.Is(err, provider.ErrDuplicateProvider) {
		t.Fatalf("expected ErrDuplicateProvider, got %v", err)
	}
}

func TestNewRegistry_InvalidAdapters(t *testing.T) {
	if _, err := provider.NewRegistry(&mock.Adapter{}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := provider.NewRegistry(nil); err == nil {
		t.Error("expected error for nil adapter")
	}
}

func TestRegistry_NilSafe(t *testing.T) {
	var reg *provider.Registry
	if _, ok := reg.Lookup("x"); ok {
		t.Error("nil registry must not find anything")
	}
	if reg.Len() != 0 || reg.Names() != nil {
		t.Error("nil registry must be empty")
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name                           string
		explicit, configured, fallback string
		want                           string
	}{
		{"explicit wins", "a", "b", "c", "a"},
		{"configured next", "", "b", "c", "b"},
		{"hard-coded last", "", "", "c", "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := provider.ResolveModel(tt.explicit, tt.configured, tt.fallback); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
