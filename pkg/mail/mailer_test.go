package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	from    string
	rcpts   []string
	body    bytes.Buffer
	quit    bool
	authErr error
}

func (f *fakeClient) Mail(from string) error { f.from = from; return nil }
func (f *fakeClient) Rcpt(to string) error   { f.rcpts = append(f.rcpts, to); return nil }
func (f *fakeClient) Data() (io.WriteCloser, error) {
	return nopWriteCloser{&f.body}, nil
}
func (f *fakeClient) Quit() error                     { f.quit = true; return nil }
func (f *fakeClient) Close() error                    { return nil }
func (f *fakeClient) StartTLS(*tls.Config) error      { return nil }
func (f *fakeClient) Auth(smtp.Auth) error            { return f.authErr }
func (f *fakeClient) Extension(string) (bool, string) { return false, "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newTestMailer(t *testing.T, cfg SMTPSettings, client *fakeClient) Mailer {
	t.Helper()

	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	sm := m.(*smtpMailer)
	sm.dialFn = func(ctx context.Context, cfg SMTPSettings) (net.Conn, smtpClient, error) {
		server, conn := net.Pipe()
		_ = server.Close()
		return conn, client, nil
	}
	sm.authFn = func(c smtpClient, cfg SMTPSettings) error { return c.Auth(nil) }
	return sm
}

func TestSendDisabled(t *testing.T) {
	m, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: []string{"a@x.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSendFormatsMessage(t *testing.T) {
	client := &fakeClient{}
	m := newTestMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "noreply@agrigpt.example",
	}, client)

	err := m.Send(context.Background(), Message{
		To:      []string{"farmer@example.com", "farmer@example.com"},
		Subject: "Your verification code",
		Body:    "Code: 123456",
	})
	require.NoError(t, err)

	require.Equal(t, "noreply@agrigpt.example", client.from)
	require.Equal(t, []string{"farmer@example.com"}, client.rcpts)
	require.Contains(t, client.body.String(), "Subject: Your verification code")
	require.Contains(t, client.body.String(), "Code: 123456")
	require.True(t, client.quit)
}

func TestSendRejectsInvalidAddresses(t *testing.T) {
	client := &fakeClient{}
	m := newTestMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "noreply@agrigpt.example",
	}, client)

	err := m.Send(context.Background(), Message{To: []string{"not an address"}})
	require.Error(t, err)
}

func TestNewSMTPMailerRequiresHostWhenEnabled(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true, Port: 587})
	require.Error(t, err)
}
