package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func TestMessageBytes(t *testing.T) {
	m := Message{
		From:    "shifts@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		ReplyTo: "amy@example.com",
		Subject: "Paper refill requested",
		Body:    "line one\nline two",
	}
	raw, err := m.Bytes()
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, "From: shifts@example.com\r\n")
	assert.Contains(t, s, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, s, "Reply-To: amy@example.com\r\n")
	assert.Contains(t, s, "Subject: Paper refill requested\r\n")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\nline one\r\nline two"))

	m.ReplyTo = ""
	raw, err = m.Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Reply-To")
}

func TestMessageBytesRejects(t *testing.T) {
	_, err := Message{Subject: "x"}.Bytes()
	assert.ErrorIs(t, err, ErrNoRecipients)

	_, err = Message{To: []string{"not an address"}}.Bytes()
	assert.Error(t, err)
}

func TestMessageEncodesSubject(t *testing.T) {
	raw, err := Message{To: []string{"a@example.com"}, Subject: "Papier nachfüllen"}.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: =?utf-8?q?")
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core).Sugar())

	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "hi"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hi", logs.All()[0].ContextMap()["subject"])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: []string{"a@example.com"}}), context.Canceled)
}

func TestNewDriver(t *testing.T) {
	s, err := New(context.Background(), Config{Driver: "log"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	_, err = New(context.Background(), Config{Driver: "carrier-pigeon"}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Driver: "gmail", CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}, nil)
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MAIL_DRIVER", "gmail")
	t.Setenv("MAIL_FROM", "shifts@example.com")
	t.Setenv("MAIL_SEND_TIMEOUT", "3s")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "gmail", cfg.Driver)
	assert.Equal(t, "shifts@example.com", cfg.From)
	assert.Equal(t, 3*time.Second, cfg.SendTimeout)
}

func TestGmailSender(t *testing.T) {
	var got gmail.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages/send"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1"}`))
	}))
	defer srv.Close()

	svc, err := gmail.NewService(context.Background(), option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	s := &GmailSender{svc: svc}

	require.NoError(t, s.Send(context.Background(), Message{To: []string{"ops@example.com"}, Subject: "refill"}))
	raw, err := base64.URLEncoding.DecodeString(got.Raw)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "To: ops@example.com\r\n")
}

func TestGmailSenderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"bad raw"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	svc, err := gmail.NewService(context.Background(), option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	err = (&GmailSender{svc: svc}).Send(context.Background(), Message{To: []string{"ops@example.com"}})
	assert.ErrorContains(t, err, "gmail send")
}

func TestLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer"}`), 0o600))
	tok, err := loadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)
}
