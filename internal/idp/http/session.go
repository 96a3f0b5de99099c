package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/idx"
	"github.com/gorilla/sessions"
)

const sessionCookieName = "idp_session"

// Session value keys.
const (
	sessKeyID       = "sid"
	sessKeyUserID   = "user_id"
	sessKeyAuthTime = "auth_time"
	sessKeyAMR      = "amr"
	sessKeyCSRF     = "csrf"
)

// SessionStore keeps the signed-in principal in a signed, encrypted cookie.
type SessionStore struct {
	store *sessions.CookieStore
}

// NewSessionStore builds the cookie store. hashKey signs the cookie and
// blockKey (16, 24 or 32 bytes) encrypts it. secure marks the cookie HTTPS
// only.
func NewSessionStore(hashKey, blockKey []byte, secure bool, maxAge time.Duration) *SessionStore {
	st := sessions.NewCookieStore(hashKey, blockKey)
	st.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	st.MaxAge(st.Options.MaxAge)
	return &SessionStore{store: st}
}

// Load returns the browser session. A visitor without a valid cookie gets
// a fresh anonymous session, which Save persists.
func (s *SessionStore) Load(r *http.Request) (*domain.Session, *sessions.Session) {
	raw, err := s.store.Get(r, sessionCookieName)
	if err != nil {
		// Undecodable cookies, e.g. after a key change, start over.
		raw, _ = s.store.New(r, sessionCookieName)
		raw.Values = make(map[any]any)
	}

	sess := &domain.Session{}
	sess.ID, _ = raw.Values[sessKeyID].(string)
	sess.UserID, _ = raw.Values[sessKeyUserID].(string)
	sess.CSRF, _ = raw.Values[sessKeyCSRF].(string)
	if at, ok := raw.Values[sessKeyAuthTime].(int64); ok {
		sess.AuthTime = time.Unix(at, 0).UTC()
	}
	if amr, ok := raw.Values[sessKeyAMR].(string); ok && amr != "" {
		sess.AMR = strings.Fields(amr)
	}

	if sess.ID == "" {
		sess.ID = idx.New().String()
		raw.Values[sessKeyID] = sess.ID
	}
	if sess.CSRF == "" {
		sess.CSRF = cryptox.MustGenerateToken(cryptox.TokenSize128)
		raw.Values[sessKeyCSRF] = sess.CSRF
	}
	return sess, raw
}

// Save writes the session cookie.
func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, raw *sessions.Session) error {
	return raw.Save(r, w)
}

// Login records user as the principal. The session id and CSRF token are
// rotated so nothing issued before login carries over.
func (s *SessionStore) Login(w http.ResponseWriter, r *http.Request, user *domain.User, amr []string, now time.Time) (*domain.Session, error) {
	_, raw := s.Load(r)

	sess := &domain.Session{
		ID:       idx.New().String(),
		UserID:   user.ID,
		AuthTime: now.UTC().Truncate(time.Second),
		AMR:      amr,
		CSRF:     cryptox.MustGenerateToken(cryptox.TokenSize128),
	}
	raw.Values = map[any]any{
		sessKeyID:       sess.ID,
		sessKeyUserID:   sess.UserID,
		sessKeyAuthTime: sess.AuthTime.Unix(),
		sessKeyAMR:      strings.Join(amr, " "),
		sessKeyCSRF:     sess.CSRF,
	}
	if err := raw.Save(r, w); err != nil {
		return nil, err
	}
	return sess, nil
}

// End removes the principal and expires the cookie.
func (s *SessionStore) End(w http.ResponseWriter, r *http.Request) error {
	_, raw := s.Load(r)
	raw.Values = make(map[any]any)
	raw.Options.MaxAge = -1
	return raw.Save(r, w)
}

// validCSRF compares the submitted token with the session's in constant time.
func validCSRF(sess *domain.Session, submitted string) bool {
	return sess.CSRF != "" && cryptox.Equal(sess.CSRF, submitted)
}
