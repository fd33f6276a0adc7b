package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/require"
)

func sampleMessage() Message {
	return Message{To: "agent@example.com", ToName: "Pat Agent", Subject: "New module", HTML: "<p>Hi</p>", Text: "Hi"}
}

func TestMessageValidate(t *testing.T) {
	require.NoError(t, sampleMessage().Validate())

	msg := sampleMessage()
	msg.To = "not-an-email"
	require.ErrorIs(t, msg.Validate(), ErrInvalidMessage)

	msg = sampleMessage()
	msg.Subject = ""
	require.ErrorIs(t, msg.Validate(), ErrInvalidMessage)

	msg = sampleMessage()
	msg.HTML, msg.Text = " ", ""
	require.ErrorIs(t, msg.Validate(), ErrInvalidMessage)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, sender.Send(context.Background(), sampleMessage()))
	require.Contains(t, buf.String(), `"to":"agent@example.com"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sender.Send(ctx, sampleMessage()), context.Canceled)
}

func TestSendGridSender(t *testing.T) {
	var got map[string]any
	var auth string
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	sender := NewSendGridSender("sg-key", "Agent Academy", "news@academy.test")
	sender.host = srv.URL

	require.NoError(t, sender.Send(context.Background(), sampleMessage()))
	require.Equal(t, "Bearer sg-key", auth)
	require.Equal(t, "news@academy.test", got["from"].(map[string]any)["email"])
	content := got["content"].([]any)
	require.Len(t, content, 2)
	require.Equal(t, "text/plain", content[0].(map[string]any)["type"])

	status = http.StatusBadRequest
	require.ErrorIs(t, sender.Send(context.Background(), sampleMessage()), ErrProviderRejected)
}

func TestSendGridSenderHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	sender := NewSendGridSender("sg-key", "Agent Academy", "news@academy.test")
	sender.host = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := sender.Send(ctx, sampleMessage())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)

	sender.client.HTTPClient.Timeout = 100 * time.Millisecond
	start = time.Now()
	require.Error(t, sender.Send(context.Background(), sampleMessage()))
	require.Less(t, time.Since(start), 2*time.Second)
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{}, f.err
}

func TestSESSender(t *testing.T) {
	client := &fakeSES{}
	sender := newSESSender(client, "Agent Academy", "news@academy.test")

	require.NoError(t, sender.Send(context.Background(), sampleMessage()))
	require.Equal(t, `"Agent Academy" <news@academy.test>`, *client.input.Source)
	require.Equal(t, []string{`"Pat Agent" <agent@example.com>`}, client.input.Destination.ToAddresses)
	require.Equal(t, "New module", *client.input.Message.Subject.Data)
	require.Equal(t, "<p>Hi</p>", *client.input.Message.Body.Html.Data)

	client.err = errors.New("throttled")
	require.ErrorContains(t, sender.Send(context.Background(), sampleMessage()), "throttled")
}

func TestNewSelectsProvider(t *testing.T) {
	s, err := New(context.Background(), Config{Provider: "log"}, nil)
	require.NoError(t, err)
	require.IsType(t, &LogSender{}, s)

	s, err = New(context.Background(), Config{Provider: "sendgrid", SendGridAPIKey: "k", From: "a@b.co"}, nil)
	require.NoError(t, err)
	require.IsType(t, &SendGridSender{}, s)

	_, err = New(context.Background(), Config{Provider: "sendgrid"}, nil)
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: "carrier-pigeon"}, nil)
	require.Error(t, err)
}
