package auth

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookiePolicy carries the attributes shared by both token cookies. In
// production the frontend lives on another site, which needs SameSite=None
// and therefore Secure.
type CookiePolicy struct {
	Secure     bool
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewCookiePolicy(production bool, accessTTL, refreshTTL time.Duration) CookiePolicy {
	policy := CookiePolicy{
		SameSite:   http.SameSiteLaxMode,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
	if production {
		policy.Secure = true
		policy.SameSite = http.SameSiteNoneMode
	}
	return policy
}

func (p CookiePolicy) SetTokens(w http.ResponseWriter, pair TokenPair) {
	now := time.Now()
	http.SetCookie(w, p.cookie(AccessTokenCookie, pair.AccessToken, p.AccessTTL, now))
	http.SetCookie(w, p.cookie(RefreshTokenCookie, pair.RefreshToken, p.RefreshTTL, now))
}

func (p CookiePolicy) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		cookie := p.cookie(name, "", 0, time.Unix(0, 0))
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (p CookiePolicy) cookie(name, value string, ttl time.Duration, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
		MaxAge:   int(ttl.Seconds()),
		Expires:  now.Add(ttl).UTC(),
	}
}
