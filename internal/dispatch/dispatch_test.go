package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPortion(t *testing.T) {
	t.Parallel()

	msg := FormatPortion("Le Petit Prince", 6, "Il était une fois ")
	assert.Equal(t, "Daily translation: Le Petit Prince", msg.Subject)
	// 1-based tag for the 0-based index 6
	assert.Contains(t, msg.Body, "[7] Il était une fois")
	assert.Contains(t, msg.Body, "[7] your translation")
}

func TestSMSChannel_Send(t *testing.T) {
	t.Parallel()

	var gotPath, gotTo, gotBody string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	ch := NewSMSChannel(SMSConfig{
		BaseURL:    srv.URL,
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550100",
		Timeout:    2 * time.Second,
	})

	err := ch.Send(context.Background(), "+15550199", Message{Subject: "Daily translation: Fox", Body: "[1] The quick"})
	require.NoError(t, err)
	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "+15550199", gotTo)
	assert.True(t, strings.HasPrefix(gotBody, "Daily translation: Fox\n"))
}

func TestSMSChannel_GatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	ch := NewSMSChannel(SMSConfig{BaseURL: srv.URL, AccountSID: "AC123"})
	err := ch.Send(context.Background(), "bogus", Message{Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestEmailChannel_CanceledContext(t *testing.T) {
	t.Parallel()

	ch := NewEmailChannel(EmailConfig{Host: "smtp.example.com", Port: 587, From: "svc@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ch.Send(ctx, "user@example.com", Message{Subject: "s", Body: "b"})
	require.ErrorIs(t, err, context.Canceled)
}
