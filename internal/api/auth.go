package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/susu3304/sessionbook/internal/booking"
)

const (
	tokenTTL = 24 * time.Hour

	// OAuth state is a short-lived token bound to a nonce cookie.
	stateTTL      = 10 * time.Minute
	stateAudience = "oauth-state"
	stateCookie   = "oauth_state"
)

var errInvalidState = errors.New("invalid oauth state")

// Claims carry the caller identity in the subject.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for identity.
func (a *API) IssueToken(identity booking.Identity, username string) (string, error) {
	if identity == booking.None {
		return "", booking.ErrInvalidIdentity
	}
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(identity),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return tokenString, nil
}

func (a *API) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method")
	}
	return a.jwtSecret, nil
}

// issueState returns a signed state and the nonce it carries.
func (a *API) issueState() (string, string, error) {
	nonce := generateRandomString(32)
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        nonce,
		Audience:  jwt.ClaimStrings{stateAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return "", "", fmt.Errorf("failed to create state: %w", err)
	}
	return state, nonce, nil
}

// verifyState checks the signature, expiry and audience of state and that it
// carries nonce.
func (a *API) verifyState(state, nonce string) error {
	if state == "" || nonce == "" {
		return errInvalidState
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(state, claims, a.keyFunc, jwt.WithAudience(stateAudience))
	if err != nil || !token.Valid {
		return errInvalidState
	}
	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(nonce)) != 1 {
		return errInvalidState
	}
	return nil
}

func (a *API) newStateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookie,
		Value:    value,
		Path:     "/api/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(a.config.DiscordRedirectURI, "https://"),
		SameSite: http.SameSiteLaxMode,
	}
}

// Auth handlers
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.config.OAuthEnabled() {
		writeErrorCode(w, http.StatusServiceUnavailable, "OAUTH_DISABLED", "discord login is not configured")
		return
	}
	state, nonce, err := a.issueState()
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, a.newStateCookie(nonce, int(stateTTL/time.Second)))
	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": a.oauthConfig.AuthCodeURL(state),
		"state":    state,
	})
}

func (a *API) authenticateUser(ctx context.Context, code string) (string, *DiscordUser, error) {
	// Exchange code for token
	token, err := a.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("token exchange failed: %w", err)
	}

	user, err := a.getDiscordUser(ctx, token.AccessToken)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}

	tokenString, err := a.IssueToken(booking.Identity(user.ID), getUsername(user))
	if err != nil {
		return "", nil, err
	}
	return tokenString, user, nil
}

func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !a.config.OAuthEnabled() {
		writeErrorCode(w, http.StatusServiceUnavailable, "OAUTH_DISABLED", "discord login is not configured")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeErrorCode(w, http.StatusBadRequest, "MISSING_CODE", "missing code")
		return
	}
	var nonce string
	if c, err := r.Cookie(stateCookie); err == nil {
		nonce = c.Value
	}
	if err := a.verifyState(r.URL.Query().Get("state"), nonce); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_STATE", "invalid or expired login state")
		return
	}
	http.SetCookie(w, a.newStateCookie("", -1))

	tokenString, user, err := a.authenticateUser(r.Context(), code)
	if err != nil {
		writeErrorCode(w, http.StatusBadGateway, "AUTH_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":    tokenString,
		"identity": user.ID,
		"username": getUsername(user),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// Middleware
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeErrorCode(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeErrorCode(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid authorization header")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, a.keyFunc)
		if err != nil || !token.Valid || claims.Subject == "" {
			writeErrorCode(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerFrom returns the authenticated identity, or None outside authMiddleware.
func callerFrom(r *http.Request) booking.Identity {
	claims, ok := r.Context().Value(claimsKey).(*Claims)
	if !ok {
		return booking.None
	}
	return booking.Identity(claims.Subject)
}
