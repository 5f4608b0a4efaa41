package gateway

import (
	"net"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// Listen listens on the first free port of [start, start+attempts)
func Listen(host string, start, attempts int) (net.Listener, error) {
	if attempts < 1 {
		attempts = 1
	}
	for port := start; port < start+attempts; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return l, nil
		}
		logger.KV(xlog.DEBUG, "status", "port_in_use", "port", port, "err", err.Error())
	}
	return nil, errors.Newf("could not find available port in range %d-%d", start, start+attempts-1)
}

// FindAvailablePort returns the first free port of [start, start+attempts)
func FindAvailablePort(host string, start, attempts int) (int, error) {
	l, err := Listen(host, start, attempts)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
