package auth

import (
	"fmt"
	"log/slog"

	"github.com/msteinert/pam/v2"
)

// PAMAuthenticator delegates verification to the host's PAM stack.
//
// Each attempt is one synchronous conversation supplying the account name
// and the typed secret as-is; PAM owns any normalization, so unlike the
// shadow backend no whitespace trimming happens here.
type PAMAuthenticator struct {
	service string
	user    string
	log     *slog.Logger
}

// NewPAM builds a PAM authenticator using the given service name.
func NewPAM(service, user string, log *slog.Logger) (*PAMAuthenticator, error) {
	if service == "" {
		return nil, fmt.Errorf("pam: no service name")
	}
	if user == "" {
		return nil, fmt.Errorf("pam: no account name")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PAMAuthenticator{
		service: service,
		user:    user,
		log:     log.With("component", "auth"),
	}, nil
}

// Verify runs one PAM authentication conversation. Any error, from the
// transaction or from the stack, collapses into Incorrect.
func (a *PAMAuthenticator) Verify(secret string) Verdict {
	tx, err := pam.StartFunc(a.service, a.user, func(style pam.Style, msg string) (string, error) {
		switch style {
		case pam.PromptEchoOff, pam.PromptEchoOn:
			return secret, nil
		case pam.ErrorMsg, pam.TextInfo:
			return "", nil
		default:
			return "", fmt.Errorf("pam: unsupported message style %v", style)
		}
	})
	if err != nil {
		a.log.Warn("pam transaction failed to start", "service", a.service, "error", err)
		return Incorrect
	}
	defer func() {
		if err := tx.End(); err != nil {
			a.log.Warn("pam transaction end failed", "error", err)
		}
	}()

	if err := tx.Authenticate(0); err != nil {
		return Incorrect
	}
	return Correct
}
