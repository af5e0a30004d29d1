// Package mailer composes the report mail and delivers it over SMTP.
package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	gomail "github.com/emersion/go-message/mail"
)

var (
	ErrNoRecipient = errors.New("no mail recipient configured")
	ErrNoSender    = errors.New("no mail sender configured")
)

type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// LoadAttachment reads pth and names the attachment after its base name.
func LoadAttachment(pth string) (Attachment, error) {
	b, err := os.ReadFile(pth)
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment %s: %w", pth, err)
	}

	ctype := mime.TypeByExtension(filepath.Ext(pth))
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	return Attachment{Filename: filepath.Base(pth), ContentType: ctype, Content: b}, nil
}

func (m Message) validate() error {
	if m.From == "" {
		return ErrNoSender
	}

	if len(m.To) == 0 {
		return ErrNoRecipient
	}

	return nil
}

func parseAddresses(list []string) ([]*gomail.Address, error) {
	out := make([]*gomail.Address, 0, len(list))
	for _, s := range list {
		addr, err := gomail.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", s, err)
		}
		out = append(out, addr)
	}

	return out, nil
}

// Compose renders msg as a multipart MIME message: a text/plain body followed
// by one part per attachment.
func Compose(msg Message, now time.Time) ([]byte, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}

	from, err := parseAddresses([]string{msg.From})
	if err != nil {
		return nil, err
	}

	to, err := parseAddresses(msg.To)
	if err != nil {
		return nil, err
	}

	var h gomail.Header
	h.SetDate(now)
	h.SetAddressList("From", from)
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("mail.CreateWriter: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("mail.Writer.CreateInline: %w", err)
	}

	var th gomail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	pw, err := tw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("mail.InlineWriter.CreatePart: %w", err)
	}

	if _, err = io.WriteString(pw, msg.Body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}

	if err = pw.Close(); err != nil {
		return nil, fmt.Errorf("close body: %w", err)
	}

	if err = tw.Close(); err != nil {
		return nil, fmt.Errorf("close inline: %w", err)
	}

	for _, a := range msg.Attachments {
		var ah gomail.AttachmentHeader
		ah.SetContentType(a.ContentType, nil)
		ah.SetFilename(a.Filename)

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("mail.Writer.CreateAttachment %s: %w", a.Filename, err)
		}

		if _, err = aw.Write(a.Content); err != nil {
			return nil, fmt.Errorf("write attachment %s: %w", a.Filename, err)
		}

		if err = aw.Close(); err != nil {
			return nil, fmt.Errorf("close attachment %s: %w", a.Filename, err)
		}
	}

	if err = mw.Close(); err != nil {
		return nil, fmt.Errorf("mail.Writer.Close: %w", err)
	}

	return buf.Bytes(), nil
}
