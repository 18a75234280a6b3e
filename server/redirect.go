package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// redirectHandler sends plain HTTP requests to the HTTPS listener,
// keeping host and request URI. Non-default HTTPS ports are carried over.
func redirectHandler(httpsPort int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, ok := redirectHost(r.Host, httpsPort)
		reqURI := r.URL.RequestURI()
		if !ok || hasControlChars(reqURI) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "https://"+host+reqURI, http.StatusMovedPermanently)
	})
}

// redirectHost validates the Host header and rewrites its port for HTTPS.
func redirectHost(host string, httpsPort int) (string, bool) {
	if host == "" || strings.Contains(host, "://") || strings.HasPrefix(host, "/") {
		return "", false
	}

	name := host
	if h, p, err := net.SplitHostPort(host); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return "", false
		}
		name = h
	} else {
		name = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if name == "" || hasControlChars(name) || strings.ContainsAny(name, " \t") {
		return "", false
	}

	// Bracket IPv6 literals, ignoring any zone for validation.
	if strings.Contains(name, ":") {
		ip := name
		if i := strings.IndexByte(ip, '%'); i >= 0 {
			ip = ip[:i]
		}
		if net.ParseIP(ip) == nil {
			return "", false
		}
		name = "[" + name + "]"
	}

	if httpsPort != 443 && httpsPort > 0 {
		name += ":" + strconv.Itoa(httpsPort)
	}
	return name, true
}

func hasControlChars(s string) bool {
	for _, c := range s {
		if c < 0x20 || c == 0x7f {
			return true
		}
	}
	return false
}
