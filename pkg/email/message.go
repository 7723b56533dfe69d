package email

import (
	"bytes"
	"fmt"
	"strings"

	"contactus-backend/internal/domain"

	"github.com/wneessen/go-mail"
)

// NewMessage composes a plain-text message with optional CC and attachments.
// cc is a comma separated address list; empty means no CC header.
func NewMessage(to, from, subject, body, cc string, attachments []domain.Attachment) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid to address %q: %w", to, err)
	}
	if ccAddrs := SplitAddressList(cc); len(ccAddrs) > 0 {
		if err := msg.Cc(ccAddrs...); err != nil {
			return nil, fmt.Errorf("invalid cc address list %q: %w", cc, err)
		}
	}
	msg.SetDate()
	msg.SetMessageID()
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	for _, a := range attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Filename, err)
		}
	}
	return msg, nil
}

// SplitAddressList splits "a@x, b@y" into trimmed addresses, dropping blanks
func SplitAddressList(list string) []string {
	var out []string
	for _, addr := range strings.Split(list, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
