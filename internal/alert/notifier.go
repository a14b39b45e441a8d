package alert

import (
	"context"
	"sync"
	"time"

	"github.com/creditshare/creditshare/internal/email"
	"github.com/creditshare/creditshare/internal/logger"
)

// AdminLoginNotifier emails the super-admin mailbox whenever an
// administrator logs in. It is separate from the webhook channels and is
// disabled when no sender is configured.
type AdminLoginNotifier struct {
	sender  email.Sender
	to      string
	appName string
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time

	inflight sync.WaitGroup
}

// NewAdminLoginNotifier creates a notifier that mails to. A nil sender
// disables the notifier.
func NewAdminLoginNotifier(sender email.Sender, to, appName string, timeout time.Duration, log *logger.Logger) *AdminLoginNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AdminLoginNotifier{
		sender:  sender,
		to:      to,
		appName: appName,
		timeout: timeout,
		log:     log.WithComponent("admin_login_notifier"),
		now:     time.Now,
	}
}

// Enabled reports whether notifications will be sent
func (n *AdminLoginNotifier) Enabled() bool {
	return n.sender != nil && n.to != ""
}

// Notify sends the admin login email in the background
func (n *AdminLoginNotifier) Notify(accountEmail, ipAddress string) {
	if !n.Enabled() {
		n.log.Warn().Str("email", accountEmail).Msg("email sender not configured, admin login notification skipped")
		return
	}

	at := n.now()
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		msg := email.Message{
			To:       n.to,
			Subject:  email.AdminLoginSubject(n.appName),
			HTMLBody: email.AdminLoginEmailHTML(n.appName, accountEmail, ipAddress, at),
			TextBody: email.AdminLoginEmailText(n.appName, accountEmail, ipAddress, at),
		}
		if err := n.sender.Send(ctx, msg); err != nil {
			n.log.Error().
				Err(err).
				Str("failure", "delivery_failure").
				Str("email", accountEmail).
				Msg("failed to send admin login notification")
			return
		}
		n.log.Info().Str("email", accountEmail).Msg("admin login notification sent")
	}()
}

// Wait blocks until background sends finish or ctx is done.
func (n *AdminLoginNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
