package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	config "github.com/anjiri1684/lesson_billing/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrevoService_SendEmail(t *testing.T) {
	var got brevoPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	svc := NewBrevoService("secret", "billing@school.pl", "Billing")
	svc.Endpoint = server.URL

	err := svc.SendEmail(context.Background(), "", "anna@example.com", "Low balance", "<p>hi</p>")
	require.NoError(t, err)

	assert.Equal(t, "Low balance", got.Subject)
	assert.Equal(t, "anna", got.To[0]["name"])
	assert.Equal(t, "billing@school.pl", got.Sender["email"])
}

func TestBrevoService_RejectsBadRecipientAndErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid_parameter"}`))
	}))
	defer server.Close()

	svc := NewBrevoService("secret", "billing@school.pl", "Billing")
	svc.Endpoint = server.URL

	assert.ErrorContains(t, svc.SendEmail(context.Background(), "Anna", "not-an-email", "s", "b"), "invalid recipient")
	assert.ErrorContains(t, svc.SendEmail(context.Background(), "Anna", "anna@example.com", "s", "b"), "status 400")
}

func TestNew_FallsBackToLogNotifier(t *testing.T) {
	assert.IsType(t, LogNotifier{}, New(&config.Config{}))
	assert.IsType(t, &BrevoService{}, New(&config.Config{
		BrevoAPIKey: "k", EmailSender: "a@b.pl", EmailSenderName: "Billing",
	}))
}
