package auth

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/GehirnInc/crypt"
	_ "github.com/GehirnInc/crypt/md5_crypt"
	_ "github.com/GehirnInc/crypt/sha256_crypt"
	_ "github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"
)

const shadowPath = "/etc/shadow"

// HashLookup retrieves the stored password hash for an account. It is a
// capability so tests can substitute a fixed hash for the real shadow
// database.
type HashLookup func(user string) (string, error)

// ShadowAuthenticator verifies a secret against the account's shadow hash.
//
// The hash is retrieved exactly once, at construction: the shadow entry
// cannot change meaningfully during a lock session, and an unreadable
// entry must abort setup rather than fail every attempt.
type ShadowAuthenticator struct {
	hash string
	log  *slog.Logger
}

// NewShadow builds a shadow-hash authenticator for user. A nil lookup uses
// the real shadow database, which requires the process to run with enough
// privilege to read it.
func NewShadow(user string, lookup HashLookup, log *slog.Logger) (*ShadowAuthenticator, error) {
	if user == "" {
		return nil, fmt.Errorf("shadow: no account name")
	}
	if lookup == nil {
		lookup = LookupShadowHash
	}
	if log == nil {
		log = slog.Default()
	}

	hash, err := lookup(user)
	if err != nil {
		return nil, fmt.Errorf("shadow: retrieve hash for %q: %w", user, err)
	}

	if hash == "" || strings.HasPrefix(hash, "!") || strings.HasPrefix(hash, "*") {
		return nil, fmt.Errorf("shadow: account %q has no usable password hash", user)
	}
	if !supportedHash(hash) {
		return nil, fmt.Errorf("shadow: unsupported hash scheme %q for %q (use the pam backend)",
			hashPrefix(hash), user)
	}

	return &ShadowAuthenticator{hash: hash, log: log.With("component", "auth")}, nil
}

// Verify compares the typed secret, trimmed of surrounding whitespace,
// against the cached hash.
func (a *ShadowAuthenticator) Verify(secret string) Verdict {
	pass := strings.TrimSpace(secret)

	if strings.HasPrefix(a.hash, "$2") {
		if bcrypt.CompareHashAndPassword([]byte(a.hash), []byte(pass)) == nil {
			return Correct
		}
		return Incorrect
	}

	if err := crypt.NewFromHash(a.hash).Verify(a.hash, []byte(pass)); err != nil {
		return Incorrect
	}
	return Correct
}

// supportedHash reports whether the hash scheme is verifiable here.
// Notably yescrypt ($y$), the default on some recent distributions, is
// not; those systems must use the pam backend.
func supportedHash(hash string) bool {
	for _, p := range []string{"$1$", "$5$", "$6$", "$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(hash, p) {
			return true
		}
	}
	return false
}

func hashPrefix(hash string) string {
	if len(hash) < 2 || hash[0] != '$' {
		return "(legacy)"
	}
	end := strings.IndexByte(hash[1:], '$')
	if end < 0 {
		return "(legacy)"
	}
	return hash[:end+2]
}

// LookupShadowHash reads the stored hash for user from /etc/shadow.
func LookupShadowHash(user string) (string, error) {
	f, err := os.Open(shadowPath)
	if err != nil {
		if os.IsPermission(err) {
			return "", fmt.Errorf("open %s (run with enough privilege to read it): %w", shadowPath, err)
		}
		return "", fmt.Errorf("open %s: %w", shadowPath, err)
	}
	defer f.Close()

	return parseShadow(f, user)
}

// parseShadow scans shadow-format lines (name:hash:...) for user.
func parseShadow(r io.Reader, user string) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, ":", 3)
		if len(fields) < 2 {
			continue
		}
		if fields[0] == user {
			return fields[1], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan shadow database: %w", err)
	}
	return "", fmt.Errorf("no shadow entry for %q", user)
}
