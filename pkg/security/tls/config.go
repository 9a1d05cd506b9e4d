package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"mercator-hq/gatekeeper/pkg/config"
)

// ServerConfig builds the listener TLS configuration. Certificates are
// served from certs so that a reload takes effect on the next handshake.
// It returns nil when TLS is disabled.
func ServerConfig(cfg *config.TLSConfig, certs *CertificateReloader) (*tls.Config, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if certs == nil {
		return nil, errors.New("certificate reloader is required when TLS is enabled")
	}

	// #nosec G402 - MinVersion is validated to 1.2 or 1.3
	tlsConfig := &tls.Config{
		GetCertificate: certs.GetCertificate,
		MinVersion:     ParseVersion(cfg.MinVersion),
	}

	if cfg.ClientCAFile != "" {
		pool, err := loadCertPool(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = ParseClientAuth(cfg.ClientAuth)
	}

	return tlsConfig, nil
}

// ParseVersion maps "1.2" and "1.3" to their crypto/tls constants. Anything
// else yields TLS 1.2.
func ParseVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

// ParseClientAuth maps a client_auth mode to its crypto/tls constant.
// Unknown modes require a verified client certificate.
func ParseClientAuth(mode string) tls.ClientAuthType {
	switch mode {
	case "request":
		return tls.RequestClientCert
	case "verify_if_given":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert
	}
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in client CA %s", path)
	}
	return pool, nil
}
