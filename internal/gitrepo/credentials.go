package gitrepo

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/JeredArc/jeredmgr/internal/errors"
)

// credentialPerm keeps the global credential file owner-only.
const credentialPerm = 0o600

// CredentialStore manages the single global access token shared by
// projects whose auth mode is global.
type CredentialStore struct {
	path string
}

// NewCredentialStore creates a store backed by the given file path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Path returns the credential file path.
func (c *CredentialStore) Path() string {
	return c.path
}

// Load reads the global token. A missing file yields ErrNoCredential so
// callers can prompt and save on first use.
func (c *CredentialStore) Load() (string, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return "", errors.ErrNoCredential
	}
	if err != nil {
		return "", errors.Wrap(err, "reading credential file")
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.ErrNoCredential
	}
	return token, nil
}

// Save writes the global token atomically with owner-only permissions,
// creating parent directories as needed.
func (c *CredentialStore) Save(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.NewValidationError("credential token is empty").
			WithField("token")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return errors.Wrap(err, "creating credential directory")
	}
	if err := renameio.WriteFile(c.path, []byte(token+"\n"), credentialPerm); err != nil {
		return errors.Wrap(err, "writing credential file")
	}
	return nil
}

// CheckPermissions reports permission drift on the credential file. The
// returned error is warning severity; a nil return means the file is
// absent or correctly restricted.
func (c *CredentialStore) CheckPermissions() error {
	info, err := os.Stat(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking credential file")
	}
	if mode := uint32(info.Mode().Perm()); mode != credentialPerm {
		return errors.NewPermissionDriftError(c.path, mode, credentialPerm)
	}
	return nil
}

// Restrict re-applies owner-only permissions to the credential file.
func (c *CredentialStore) Restrict() error {
	if err := os.Chmod(c.path, credentialPerm); err != nil {
		return errors.Wrap(err, "restricting credential file")
	}
	return nil
}

// CredentialURL embeds a token into a remote URL. It refuses anything but
// https and any host outside the trusted list, so a token can never leak
// to an unexpected endpoint.
func CredentialURL(rawURL, token string, trustedHosts []string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.NewValidationError("malformed repository URL").
			WithField("repo_url").
			WithValue(rawURL).
			WithCause(err)
	}
	if u.Scheme != "https" {
		return "", errors.NewGitError("credentials require an https remote", errors.ErrUntrustedHost).
			WithRemote(RedactURL(rawURL))
	}
	host := u.Hostname()
	trusted := false
	for _, h := range trustedHosts {
		if strings.EqualFold(host, h) {
			trusted = true
			break
		}
	}
	if !trusted {
		return "", errors.NewGitError("host is not in the trusted host list", errors.ErrUntrustedHost).
			WithRemote(RedactURL(rawURL))
	}
	u.User = url.User(token)
	return u.String(), nil
}

// RedactURL strips userinfo from a URL for logs and error messages.
// Unparseable input is returned as-is; it cannot carry a structured
// credential in the first place.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = nil
	return u.String()
}
