// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidURL is returned for URLs that cannot be parsed or have no host.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrInvalidURLScheme is returned when the scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https URLs are allowed")

	// ErrNonLocalhost is returned in paranoid mode for a non-loopback local backend.
	ErrNonLocalhost = errors.New("paranoid mode: local backend is not on this machine")

	// ErrRemoteBlocked is returned in paranoid mode for remote model calls.
	ErrRemoteBlocked = errors.New("paranoid mode: remote model disabled")

	// ErrWebSearchBlocked is returned in paranoid mode for web searches.
	ErrWebSearchBlocked = errors.New("paranoid mode: web search disabled")
)

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost checks if a host string refers to this machine.
// Accepts "localhost", the whole 127.0.0.0/8 range and any IPv6 loopback
// form, with or without a port.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateURL checks that rawURL is an absolute http(s) URL with a host.
// file://, javascript: and other schemes are always rejected.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}
	if parsed.Hostname() == "" {
		return ErrInvalidURL
	}
	return nil
}

// =============================================================================
// POLICY
// =============================================================================

// Policy decides which outbound connections are allowed. With Paranoid set,
// only the local model may be reached and it must be on loopback.
type Policy struct {
	Paranoid bool
}

// CheckLocalURL validates the local backend URL.
func (p Policy) CheckLocalURL(rawURL string) error {
	if err := ValidateURL(rawURL); err != nil {
		return err
	}
	if p.Paranoid {
		parsed, _ := url.Parse(rawURL)
		if !IsLocalhost(parsed.Hostname()) {
			return ErrNonLocalhost
		}
	}
	return nil
}

// CheckRemote returns an error if the remote model may not be used.
func (p Policy) CheckRemote() error {
	if p.Paranoid {
		return ErrRemoteBlocked
	}
	return nil
}

// CheckWebSearch returns an error if web searches are not allowed.
func (p Policy) CheckWebSearch() error {
	if p.Paranoid {
		return ErrWebSearchBlocked
	}
	return nil
}

// Badge returns "[PARANOID]" when the policy is strict, "" otherwise.
func (p Policy) Badge() string {
	if p.Paranoid {
		return "[PARANOID]"
	}
	return ""
}
