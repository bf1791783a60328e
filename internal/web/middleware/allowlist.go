package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/inetmon/inetmon/internal/web/problem"
)

// AllowHosts returns a middleware that rejects requests whose remote
// address is not in hosts with 403. Entries are IP addresses or CIDR
// ranges. An empty list allows everyone.
func AllowHosts(hosts []string, log zerolog.Logger) func(http.Handler) http.Handler {
	var (
		ips  []net.IP
		nets []*net.IPNet
	)
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(h); err == nil {
			nets = append(nets, n)
			continue
		}
		if ip := net.ParseIP(h); ip != nil {
			ips = append(ips, ip)
			continue
		}
		log.Warn().Str("entry", h).Msg("ignoring invalid allowed_hosts entry")
	}

	return func(next http.Handler) http.Handler {
		if len(hosts) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)
			if ip != nil && allowed(ip, ips, nets) {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn().
				Str("request_id", GetRequestID(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Msg("request from disallowed host")

			problem.For(http.StatusForbidden, GetRequestID(r.Context()), "You're not allowed to access this resource").
				WithInstance(r.URL.Path).
				Write(w)
		})
	}
}

func remoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

func allowed(ip net.IP, ips []net.IP, nets []*net.IPNet) bool {
	for _, candidate := range ips {
		if candidate.Equal(ip) {
			return true
		}
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
