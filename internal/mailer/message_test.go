package mailer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	gomail "github.com/emersion/go-message/mail"
	"github.com/google/go-cmp/cmp"
)

type part struct {
	Kind        string
	ContentType string
	Filename    string
	Body        string
}

func readParts(t *testing.T, raw []byte) (*gomail.Reader, []part) {
	t.Helper()

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("mail.CreateReader: %v", err)
	}

	var parts []part
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			t.Fatal(err)
		}

		switch h := p.Header.(type) {
		case *gomail.InlineHeader:
			ctype, _, _ := h.ContentType()
			parts = append(parts, part{Kind: "inline", ContentType: ctype, Body: string(body)})
		case *gomail.AttachmentHeader:
			ctype, _, _ := h.ContentType()
			name, _ := h.Filename()
			parts = append(parts, part{Kind: "attachment", ContentType: ctype, Filename: name, Body: string(body)})
		}
	}

	return mr, parts
}

func TestCompose(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msg := Message{
		From:    "ci@example.com",
		To:      []string{"qa@example.com", "Lead <lead@example.com>"},
		Subject: "Login Suite Test Report",
		Body:    "Please find attached the report.",
		Attachments: []Attachment{
			{Filename: "final-report.html", ContentType: "text/html", Content: []byte("<h1>2 passed</h1>")},
		},
	}

	raw, err := Compose(msg, now)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	mr, parts := readParts(t, raw)

	subject, err := mr.Header.Subject()
	if err != nil || subject != msg.Subject {
		t.Errorf("got subject %q (%v)", subject, err)
	}

	to, err := mr.Header.AddressList("To")
	if err != nil {
		t.Fatal(err)
	}
	if len(to) != 2 || to[1].Address != "lead@example.com" {
		t.Errorf("unexpected recipients %v", to)
	}

	date, err := mr.Header.Date()
	if err != nil || !date.Equal(now) {
		t.Errorf("got date %v (%v)", date, err)
	}

	want := []part{
		{Kind: "inline", ContentType: "text/plain", Body: "Please find attached the report."},
		{Kind: "attachment", ContentType: "text/html", Filename: "final-report.html", Body: "<h1>2 passed</h1>"},
	}
	if diff := cmp.Diff(want, parts); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestCompose_Invalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		msg      Message
		expected error
	}{
		{name: "test_no_recipient", msg: Message{From: "ci@example.com"}, expected: ErrNoRecipient},
		{name: "test_no_sender", msg: Message{To: []string{"qa@example.com"}}, expected: ErrNoSender},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				if _, err := Compose(tc.msg, time.Now()); !errors.Is(err, tc.expected) {
					t.Errorf("got %v, want %v", err, tc.expected)
				}
			},
		)
	}

	if _, err := Compose(Message{From: "ci@example.com", To: []string{"not an address"}}, time.Now()); err == nil {
		t.Error("expected error for malformed recipient")
	}
}

func TestLoadAttachment(t *testing.T) {
	t.Parallel()

	pth := filepath.Join(t.TempDir(), "final-report.html")
	if err := os.WriteFile(pth, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := LoadAttachment(pth)
	if err != nil {
		t.Fatalf("LoadAttachment: %v", err)
	}

	if a.Filename != "final-report.html" || string(a.Content) != "<html></html>" {
		t.Errorf("unexpected attachment %+v", a)
	}

	if _, err = LoadAttachment(filepath.Join(t.TempDir(), "absent.html")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v, want os.ErrNotExist", err)
	}
}

func TestResolveService(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		service  string
		host     string
		port     int
		expected Endpoint
		wantErr  bool
	}{
		{name: "test_gmail", service: "gmail", expected: Endpoint{Host: "smtp.gmail.com", Port: 587}},
		{name: "test_case_insensitive", service: " Gmail ", expected: Endpoint{Host: "smtp.gmail.com", Port: 587}},
		{name: "test_port_override", service: "gmail", port: 465, expected: Endpoint{Host: "smtp.gmail.com", Port: 465}},
		{name: "test_host_wins", service: "gmail", host: "mail.internal", port: 2525, expected: Endpoint{Host: "mail.internal", Port: 2525}},
		{name: "test_host_default_port", host: "mail.internal", expected: Endpoint{Host: "mail.internal", Port: 587}},
		{name: "test_unknown", service: "pigeon", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				got, err := ResolveService(tc.service, tc.host, tc.port)
				if (err != nil) != tc.wantErr {
					t.Fatalf("got err %v, want error: %v", err, tc.wantErr)
				}

				if diff := cmp.Diff(tc.expected, got); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
			},
		)
	}
}
