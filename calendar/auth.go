package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/internal/httpclient"
	"github.com/teranos/inout/logger"
)

// Scope grants read and write access to the user's calendars.
const Scope = gcal.CalendarScope

// OAuthConfig reads the OAuth client secrets downloaded from the Google
// Cloud console.
func OAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, errors.WithHint(
			errors.WrapConnection(err, "could not find Google OAuth credentials file"),
			"set [calendar] credentials_file to the client secrets JSON of an OAuth desktop client",
		)
	}
	conf, err := google.ConfigFromJSON(b, Scope)
	if err != nil {
		return nil, errors.WrapConnection(err, "parse Google OAuth credentials")
	}
	return conf, nil
}

// LoadToken reads a cached token.
func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, errors.Wrapf(err, "parse token file %s", path)
	}
	return tok, nil
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create token directory")
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return errors.Wrap(err, "encode token")
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return errors.Wrapf(err, "write token file %s", path)
	}
	return nil
}

// AuthURL is the consent page the user visits to authorize inout.
func AuthURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and caches it.
func Exchange(ctx context.Context, conf *oauth2.Config, code, tokenFile string) (*oauth2.Token, error) {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, errors.WrapConnection(err, "exchange authorization code")
	}
	if err := SaveToken(tokenFile, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// HTTPClient returns a client authorized with the cached token. Expired
// tokens are refreshed and the refreshed token is written back to the cache.
func HTTPClient(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*http.Client, error) {
	log = logger.OrNop(log)

	conf, err := OAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	tok, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, errors.WithHint(
			errors.WrapConnection(err, "no Google OAuth token"),
			"run `inout calendar auth` to authorize access to your calendars",
		)
	}
	log.Infow("Detected Google OAuth token", "expired", !tok.Valid())

	base := httpclient.New(httpclient.Options{
		Timeout:        cfg.Timeout,
		BlockPrivateIP: cfg.BlockPrivateIP,
	})
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	src := &savingSource{
		src:  conf.TokenSource(ctx, tok),
		path: cfg.TokenFile,
		last: tok.AccessToken,
		log:  log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// savingSource persists every token its source hands out that differs from
// the one last seen.
type savingSource struct {
	src  oauth2.TokenSource
	path string
	log  *zap.SugaredLogger

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, errors.WithHint(
			errors.WrapConnection(err, "refresh Google OAuth token"),
			"run `inout calendar auth` if access was revoked",
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.log.Infow("Credentials refreshed, saving token")
		if err := SaveToken(s.path, tok); err != nil {
			s.log.Warnw("Could not save refreshed token", logger.FieldError, err)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
