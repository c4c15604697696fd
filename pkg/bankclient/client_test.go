package bankclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/transfa/portal-service/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL + "/")
}

func TestCallUnwrapsSuccessEnvelope(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":{"userId":5,"userName":"Ravi","token":"tok"}}`)
	})

	user, err := client.Login(context.Background(), domain.LoginRequest{PhoneNumber: "555", Password: "pw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.UserID != "5" || user.UserName != "Ravi" || user.Token != "tok" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestCallDecodesRawResource(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/user/9" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"accountId":1,"accountNumber":"111","accountName":"A","accountType":"Savings","balance":10}]`)
	})

	accounts, err := client.UserAccounts(context.Background(), "", "9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 1 || !accounts[0].Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}

func TestCallErrorMessagePreference(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        string
		want        string
	}{
		{"message wins", "application/json", 400, `{"message":"Bad phone","error":"ignored"}`, "Bad phone"},
		{"error field", "application/json", 404, `{"error":"No such account"}`, "No such account"},
		{"raw text", "text/plain", 500, `Internal failure`, "Internal failure"},
		{"empty body", "text/plain", 503, ``, "An error occurred"},
		{"success false on 200", "application/json", 200, `{"success":false,"error":"Invalid OTP"}`, "Invalid OTP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := client.Call(context.Background(), http.MethodGet, "/anything", nil, nil)
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if httpErr.StatusCode != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, httpErr.StatusCode)
			}
			if httpErr.Message != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, httpErr.Message)
			}
		})
	}
}

func TestCallNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewClient(baseURL)
	err := client.Call(context.Background(), http.MethodGet, "/health", nil, nil)
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("expected ErrNetworkUnavailable, got %v", err)
	}
	if client.Health(context.Background()) {
		t.Fatalf("expected health check to fail")
	}
}

func TestCallAuthenticatedSetsBearerHeader(t *testing.T) {
	var gotAuth string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.CallAuthenticated(context.Background(), "abc", http.MethodPost, "/auth/logout", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}

	if err := client.CallAuthenticated(context.Background(), "", http.MethodPost, "/auth/logout", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("expected no auth header without token, got %q", gotAuth)
	}
}

func TestFormEncodingForTypedEndpoints(t *testing.T) {
	var gotForm url.Values
	var gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":{"otp":"123456"}}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, WithFormEncoding(true))
	initiation, err := client.InitiateTransfer(context.Background(), "tok", domain.TransferRequest{
		FromAccount:  "1",
		ToAccount:    "2",
		Amount:       decimal.RequireFromString("200.50"),
		TransferMode: domain.TransferModeIMPS,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if initiation.OTP != "123456" {
		t.Fatalf("expected otp 123456, got %q", initiation.OTP)
	}
	if !strings.HasPrefix(gotType, "application/x-www-form-urlencoded") {
		t.Fatalf("expected form content type, got %q", gotType)
	}
	if gotForm.Get("amount") != "200.5" || gotForm.Get("transferMode") != "IMPS" || gotForm.Get("fromAccount") != "1" {
		t.Fatalf("unexpected form: %v", gotForm)
	}
}
