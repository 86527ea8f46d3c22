// Package validation checks URLs supplied by configuration and by editors.
package validation

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ErrPrivateAddress is returned when a remote fetch would reach a loopback,
// link-local or private network address.
var ErrPrivateAddress = errors.New("address is not publicly routable")

// URLValidationError represents a URL validation failure
type URLValidationError struct {
	Field   string
	Message string
	URL     string
}

func (e URLValidationError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// ValidateURL validates that a URL is well-formed and optionally requires HTTPS.
// Empty input is accepted; callers decide whether the field is required.
func ValidateURL(urlString, fieldName string, requireHTTPS bool) error {
	if urlString == "" {
		return nil
	}

	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return URLValidationError{Field: fieldName, Message: "invalid URL format", URL: urlString}
	}
	if parsedURL.Scheme == "" {
		return URLValidationError{Field: fieldName, Message: "URL must include a scheme (http:// or https://)", URL: urlString}
	}
	if parsedURL.Host == "" {
		return URLValidationError{Field: fieldName, Message: "URL must include a host", URL: urlString}
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if requireHTTPS && scheme != "https" {
		return URLValidationError{Field: fieldName, Message: "URL must use HTTPS in production", URL: urlString}
	}
	if scheme != "http" && scheme != "https" {
		return URLValidationError{Field: fieldName, Message: "URL scheme must be http or https", URL: urlString}
	}
	return nil
}

// ValidateBaseURL validates the public site address. Posts are served from
// the root, so a base URL carries no path, query or fragment.
func ValidateBaseURL(urlString, fieldName string, requireHTTPS bool) error {
	if err := ValidateURL(urlString, fieldName, requireHTTPS); err != nil {
		return err
	}
	if urlString == "" {
		return nil
	}

	parsedURL, _ := url.Parse(urlString)
	switch {
	case parsedURL.Path != "" && parsedURL.Path != "/":
		return URLValidationError{Field: fieldName, Message: "base URL must not contain a path", URL: urlString}
	case parsedURL.RawQuery != "":
		return URLValidationError{Field: fieldName, Message: "base URL must not contain query parameters", URL: urlString}
	case parsedURL.Fragment != "":
		return URLValidationError{Field: fieldName, Message: "base URL must not contain a fragment", URL: urlString}
	}
	return nil
}

// ParseRemoteURL validates an image address submitted by the editor and
// returns it parsed. Only absolute http(s) URLs without credentials pass.
func ParseRemoteURL(urlString, fieldName string) (*url.URL, error) {
	urlString = strings.TrimSpace(urlString)
	if urlString == "" {
		return nil, URLValidationError{Field: fieldName, Message: "URL is required", URL: urlString}
	}
	if err := ValidateURL(urlString, fieldName, false); err != nil {
		return nil, err
	}

	parsedURL, _ := url.Parse(urlString)
	if parsedURL.User != nil {
		return nil, URLValidationError{Field: fieldName, Message: "URL must not contain credentials", URL: urlString}
	}
	return parsedURL, nil
}

// IsPublicIP reports whether ip is a globally routable unicast address.
func IsPublicIP(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		ip.IsGlobalUnicast() &&
		!ip.IsPrivate() &&
		!ip.IsLoopback() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsUnspecified() &&
		!sharedAddressSpace.Contains(ip)
}

// 100.64.0.0/10, carrier-grade NAT.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// CheckDialAddress is a net.Dialer Control hook that refuses connections to
// non-public addresses. It runs after DNS resolution, so rebinding a public
// name onto a private address is caught too.
func CheckDialAddress(network, address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !IsPublicIP(ip) {
		return fmt.Errorf("dial %s: %w", address, ErrPrivateAddress)
	}
	return nil
}
