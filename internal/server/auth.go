package server

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var ErrUnauthorized = errors.New("bad credentials")

// authenticate checks an Authorization header value. Without configured
// tokens or keys every request is accepted.
func (h *Handler) authenticate(header string) error {
	if len(h.opt.Tokens) == 0 && len(h.opt.AppKeys) == 0 {
		return nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		raw, ok = strings.CutPrefix(header, "bearer ")
	}
	if !ok || raw == "" {
		return ErrUnauthorized
	}
	for _, t := range h.opt.Tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(raw)) == 1 {
			return nil
		}
	}
	for _, key := range h.opt.AppKeys {
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, ErrUnauthorized
			}
			return key, nil
		})
		if err == nil && claims.Issuer != "" {
			return nil
		}
	}
	return ErrUnauthorized
}
