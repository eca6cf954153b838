// Package mail is the outbound notification transport. The core only needs
// "send one message, success or failure"; SMTP is the default carrier.
package mail

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is one rendered notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message. Implementations carry no retry logic;
// the reminder pipeline decides what a failure means.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Config configures the SMTP sender.
//
// Timeout bounds the whole dial+handshake+submit exchange; the dispatcher's
// per-candidate timeout is layered on top via ctx.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Disabled returns a Sender that fails every delivery with the given reason.
// Used when the transport is not configured but the pipeline still needs a
// Sender to hold its place.
func Disabled(reason string) Sender {
	return disabledSender(reason)
}

type disabledSender string

func (d disabledSender) Send(context.Context, Message) error {
	return fmt.Errorf("mail: sender disabled: %s", string(d))
}

func (c Config) addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func (c Config) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("mail: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("mail: invalid port %d", c.Port)
	}
	if strings.TrimSpace(c.From) == "" {
		return fmt.Errorf("mail: from address is required")
	}
	return nil
}
