package tools

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/ui"
)

// MailSummary is the envelope of one message.
type MailSummary struct {
	SeqNum  uint32
	UID     uint32
	From    string
	Subject string
	Date    time.Time
	Seen    bool
}

// MailSource lists recent messages, newest first.
type MailSource interface {
	Recent(ctx context.Context, mailbox string, limit int) ([]MailSummary, error)
}

// IMAPSource reads a mailbox over IMAP.
type IMAPSource struct {
	Addr     string // host:port
	Username string
	Password string
	Insecure bool // plain TCP instead of TLS
	Timeout  time.Duration
}

func (s *IMAPSource) connect() (*client.Client, error) {
	var c *client.Client
	var err error
	if s.Insecure {
		c, err = client.Dial(s.Addr)
	} else {
		c, err = client.DialTLS(s.Addr, &tls.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c.Timeout = s.Timeout
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if err := c.Login(s.Username, s.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return c, nil
}

// Recent fetches the envelopes of the last limit messages in mailbox.
func (s *IMAPSource) Recent(ctx context.Context, mailbox string, limit int) ([]MailSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox: %w", err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(limit) {
		from = mbox.Messages - uint32(limit) + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid}, messages)
	}()

	var out []MailSummary
	for msg := range messages {
		sum := MailSummary{SeqNum: msg.SeqNum, UID: msg.Uid}
		if env := msg.Envelope; env != nil {
			sum.Subject = env.Subject
			sum.Date = env.Date
			if len(env.From) > 0 {
				sum.From = env.From[0].Address()
			}
		}
		for _, f := range msg.Flags {
			if f == imap.SeenFlag {
				sum.Seen = true
				break
			}
		}
		out = append(out, sum)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	// Newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

type mailInput struct {
	Limit      int  `json:"limit"`
	UnreadOnly bool `json:"unread_only"`
}

// MailInbox lists recent messages from the configured mailbox.
func MailInbox(deps Deps) (agent.Tool, error) {
	if deps.Mail == nil {
		return agent.Tool{}, errors.New("mail source not configured")
	}
	mailbox := deps.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return MailInboxFor(deps.Mail, mailbox), nil
}

// MailInboxFor builds the mail tool over a specific source and mailbox.
func MailInboxFor(src MailSource, mailbox string) agent.Tool {
	return agent.Tool{
		Name:        "mail_inbox",
		Description: "List the most recent email messages in the inbox with sender, subject and date.",
		Parameters: schema.Object(
			schema.Optional("limit", schema.Integer("Number of messages to list, default 10, max 50")),
			schema.Optional("unread_only", schema.Boolean("Only list unread messages")),
		),
		Execute: func(ctx context.Context, input map[string]any) (agent.ToolResult, error) {
			var in mailInput
			if err := schema.Decode(input, &in); err != nil {
				return agent.ToolResult{}, err
			}
			if in.Limit <= 0 {
				in.Limit = 10
			}
			if in.Limit > 50 {
				in.Limit = 50
			}

			msgs, err := src.Recent(ctx, mailbox, in.Limit)
			if err != nil {
				return softFail("could not read mailbox: %v", err), nil
			}
			if in.UnreadOnly {
				unread := msgs[:0]
				for _, m := range msgs {
					if !m.Seen {
						unread = append(unread, m)
					}
				}
				msgs = unread
			}
			if len(msgs) == 0 {
				return agent.ToolResult{NextPrompt: "No messages found in " + mailbox + "."}, nil
			}

			var b strings.Builder
			rows := make([][]string, len(msgs))
			for i, m := range msgs {
				status := "unread"
				if m.Seen {
					status = "read"
				}
				date := m.Date.Format("2006-01-02 15:04")
				fmt.Fprintf(&b, "%d. [%s] From: %s | Subject: %s | Date: %s\n", i+1, status, m.From, m.Subject, date)
				rows[i] = []string{m.From, m.Subject, date, status}
			}
			fmt.Fprintf(&b, "Total: %d message(s)", len(msgs))

			return agent.ToolResult{
				NextPrompt: b.String(),
				Render: func() ui.Element {
					return ui.Table{
						Title:   mailbox,
						Columns: []string{"From", "Subject", "Date", "Status"},
						Rows:    rows,
					}
				},
			}, nil
		},
	}
}
