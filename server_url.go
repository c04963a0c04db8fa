package main

import (
	"net"
	"strings"
)

// secureSchemes maps each advertised protocol to its TLS form.
var secureSchemes = map[string]string{"http": "https", "ws": "wss", "grpc": "grpcs"}

// listenerURL renders a listener address as a URL for startup logs.
// 1.- Swap in the TLS scheme when the listener serves certificates.
// 2.- Replace wildcard or missing hosts with localhost so the URL is dialable.
func listenerURL(protocol, address string, tlsEnabled bool) string {
	scheme := strings.ToLower(strings.TrimSpace(protocol))
	if scheme == "" {
		scheme = "http"
	}
	if secure, ok := secureSchemes[scheme]; ok && tlsEnabled {
		scheme = secure
	}
	return scheme + "://" + dialableAddress(address)
}

func dialableAddress(address string) string {
	address = strings.TrimSpace(address)
	host, port, err := net.SplitHostPort(address)
	switch {
	case address == "":
		return "localhost"
	case err != nil && strings.HasPrefix(address, ":"):
		return "localhost" + address
	case err != nil:
		return address
	}
	if host = strings.Trim(strings.TrimSpace(host), "[]"); host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
