// Package mocksmtp runs an in-process SMTP server that records what it receives.
package mocksmtp

import (
	"io"
	"net"
	"sync"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// ReceivedValues contains all the data received by the SMTP server
type ReceivedValues struct {
	mu        sync.Mutex
	Usernames []string
	Passwords []string
	Froms     []string
	Rcpts     []string
	Datas     [][]byte
}

// Snapshot returns a copy safe to read while the server runs
func (v *ReceivedValues) Snapshot() ReceivedValues {
	v.mu.Lock()
	defer v.mu.Unlock()
	return ReceivedValues{
		Usernames: append([]string(nil), v.Usernames...),
		Passwords: append([]string(nil), v.Passwords...),
		Froms:     append([]string(nil), v.Froms...),
		Rcpts:     append([]string(nil), v.Rcpts...),
		Datas:     append([][]byte(nil), v.Datas...),
	}
}

// StartMockSMTPServer listens on a random loopback port. Call cancel to stop it.
func StartMockSMTPServer() (port int, values *ReceivedValues, cancel func(), err error) {
	values = &ReceivedValues{}

	s := smtp.NewServer(&backend{values: values})
	s.Domain = "localhost"
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, nil, nil, err
	}
	go func() { _ = s.Serve(l) }()

	return l.Addr().(*net.TCPAddr).Port, values, func() { _ = s.Close() }, nil
}

type backend struct {
	values *ReceivedValues
}

var _ smtp.Backend = (*backend)(nil)

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{values: b.values}, nil
}

type session struct {
	values *ReceivedValues
}

var _ smtp.Session = (*session)(nil)
var _ smtp.AuthSession = (*session)(nil)

func (s *session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		s.values.mu.Lock()
		defer s.values.mu.Unlock()
		s.values.Usernames = append(s.values.Usernames, username)
		s.values.Passwords = append(s.values.Passwords, password)
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.values.mu.Lock()
	defer s.values.mu.Unlock()
	s.values.Froms = append(s.values.Froms, from)
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.values.mu.Lock()
	defer s.values.mu.Unlock()
	s.values.Rcpts = append(s.values.Rcpts, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.values.mu.Lock()
	defer s.values.mu.Unlock()
	s.values.Datas = append(s.values.Datas, b)
	return nil
}

func (*session) Reset() {}

func (*session) Logout() error {
	return nil
}
