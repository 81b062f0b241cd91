package gateway

import (
	"crypto/subtle"
	"os"

	"github.com/soyeahso/agentloop/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "password"
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the gateway credentials after config and environment
// have been consulted.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth resolves credentials from config, falling back to
// AGENTLOOP_GATEWAY_TOKEN and AGENTLOOP_GATEWAY_PASSWORD.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    firstNonEmpty(cfg.Token, os.Getenv("AGENTLOOP_GATEWAY_TOKEN")),
		Password: firstNonEmpty(cfg.Password, os.Getenv("AGENTLOOP_GATEWAY_PASSWORD")),
	}
	if auth.Mode == "" {
		auth.Mode = "token"
		if auth.Password != "" {
			auth.Mode = "password"
		}
	}
	return auth
}

// Authorize checks the credentials a client sent in its connect request.
func Authorize(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if clientAuth == nil {
		return AuthResult{Reason: "no credentials provided"}
	}

	var want, got string
	switch serverAuth.Mode {
	case "token":
		want, got = serverAuth.Token, clientAuth.Token
	case "password":
		want, got = serverAuth.Password, clientAuth.Password
	default:
		return AuthResult{Reason: "unknown auth mode: " + serverAuth.Mode}
	}

	switch {
	case want == "":
		return AuthResult{Reason: "server " + serverAuth.Mode + " not configured"}
	case got == "":
		return AuthResult{Reason: serverAuth.Mode + " required"}
	case !safeEqual(got, want):
		return AuthResult{Reason: serverAuth.Mode + "_mismatch"}
	}
	return AuthResult{OK: true, Method: serverAuth.Mode}
}

// safeEqual compares in constant time without leaking the secret's length.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
