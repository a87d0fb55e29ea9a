package page

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RegistrableLabel returns the label immediately before the public suffix:
// "www.levi.co.uk" gives "levi". IP addresses and bare suffixes give "".
func RegistrableLabel(host string) string {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(host)
	if suffix == host {
		return ""
	}
	rest := strings.TrimSuffix(host, "."+suffix)
	if idx := strings.LastIndex(rest, "."); idx >= 0 {
		rest = rest[idx+1:]
	}
	return rest
}

// DomainLabel is RegistrableLabel for the document's host.
func (d *Document) DomainLabel() string {
	return RegistrableLabel(d.Hostname())
}
