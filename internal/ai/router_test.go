package ai_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-adaptive/internal/ai"
)

func request() ai.CompletionRequest {
	return ai.CompletionRequest{
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}},
		Task:     ai.TaskNudge,
		UserID:   "u1",
	}
}

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	router.Register("deepseek", ai.NewMockProvider("Hello!"))

	resp, err := router.Complete(t.Context(), request())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
	if resp.Provider != "deepseek" {
		t.Errorf("Provider = %q, want deepseek", resp.Provider)
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()
	router.Register("deepseek", &ai.MockProvider{Err: errors.New("rate limited")})
	router.Register("doubao", ai.NewMockProvider("Fallback response"))

	resp, err := router.Complete(t.Context(), request())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
	if resp.Provider != "doubao" {
		t.Errorf("Provider = %q, want doubao", resp.Provider)
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()
	router.Register("deepseek", &ai.MockProvider{Err: errors.New("fail 1")})
	router.Register("doubao", &ai.MockProvider{Err: errors.New("fail 2")})

	if _, err := router.Complete(t.Context(), request()); err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	_, err := router.Complete(t.Context(), request())
	if !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("Complete() error = %v, want ErrNoProvider", err)
	}
}

func TestRouter_HasProvider(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}

	router.Register("mock", ai.NewMockProvider("ok"))
	if !router.HasProvider() {
		t.Error("HasProvider() should be true after Register")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter()
	router.Register("first", ai.NewMockProvider("first"))
	router.Register("second", ai.NewMockProvider("second"))
	router.Register("first", ai.NewMockProvider("first again"))

	resp, err := router.Complete(t.Context(), request())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first again" {
		t.Errorf("Content = %q, want %q (re-registering keeps position)", resp.Content, "first again")
	}
	if got := router.Providers(); len(got) != 2 {
		t.Errorf("Providers() = %v, want 2 entries", got)
	}
}

func TestRouter_BudgetEnforced(t *testing.T) {
	router := ai.NewRouter()
	mock := &ai.MockProvider{Response: "ok", Tokens: 90}
	router.Register("deepseek", mock)

	budget := ai.NewInMemoryBudget(0, nil)
	budget.SetBudget("u1", 100)
	router.SetBudget(budget)

	if _, err := router.Complete(t.Context(), request()); err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}
	used, _, _ := budget.Usage("u1")
	if used != 100 {
		t.Errorf("used = %d, want 100 (10 input + 90 output)", used)
	}

	_, err := router.Complete(t.Context(), request())
	if !errors.Is(err, ai.ErrBudgetExceeded) {
		t.Fatalf("second Complete() error = %v, want ErrBudgetExceeded", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", mock.Calls())
	}
}

func TestRouter_AppliesTaskTokenCap(t *testing.T) {
	mock := ai.NewMockProvider("ok")
	router := ai.NewRouter()
	router.Register("deepseek", mock)

	req := request()
	req.Task = ai.TaskAnalysis
	if _, err := router.Complete(t.Context(), req); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := mock.LastRequest().MaxTokens; got != ai.TaskAnalysis.MaxTokens() {
		t.Errorf("MaxTokens = %d, want %d", got, ai.TaskAnalysis.MaxTokens())
	}

	req.MaxTokens = 64
	if _, err := router.Complete(t.Context(), req); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := mock.LastRequest().MaxTokens; got != 64 {
		t.Errorf("explicit MaxTokens = %d, want 64", got)
	}
}
