// Package session drives the Cortex bootstrap handshake: headset discovery, device
// connect, access request, authorization, session creation and subscription.
//
// The Sequencer is a pure state machine. It receives typed events (Opened,
// MessageReceived, Closed) and answers with effects (Send, Deliver, Drop, Fail) that the
// connection carries out, so it can be driven without a socket.
package session

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/akyaiy/cortexlink/internal/core/utils"
)

// Credentials identify the application to the Cortex service. They are supplied once and
// never modified.
type Credentials struct {
	ClientID     string
	ClientSecret string
	License      string
	Debit        int
}

// Validate checks the fields the handshake cannot do without.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if c.Debit < 0 {
		return fmt.Errorf("credentials: debit must not be negative, got %d", c.Debit)
	}
	if len(missing) > 0 {
		return fmt.Errorf("credentials: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c Credentials) String() string {
	return fmt.Sprintf("client=%s secret=%s license=%s debit=%d",
		c.ClientID, utils.Fingerprint(c.ClientSecret), utils.Fingerprint(c.License), c.Debit)
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("client-id", c.ClientID),
		slog.String("secret-fp", utils.Fingerprint(c.ClientSecret)),
		slog.String("license-fp", utils.Fingerprint(c.License)),
		slog.Int("debit", c.Debit),
	)
}

// Context is the progress record of one handshake. Fields are filled in step by step and
// never cleared; a new connection starts from a new Context.
type Context struct {
	HeadsetID      string
	AuthToken      string
	TokenExpiresAt time.Time
	SessionID      string
	Subscribed     bool
}

func (c Context) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("headset", c.HeadsetID),
		slog.String("token-fp", utils.Fingerprint(c.AuthToken)),
		slog.String("session", c.SessionID),
		slog.Bool("subscribed", c.Subscribed),
	)
}
