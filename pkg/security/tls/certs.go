package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// ExpiryWarning is how close to NotAfter a certificate gets logged at
// warning level.
const ExpiryWarning = 30 * 24 * time.Hour

// ValidateCertificate parses the leaf of cert and checks that now falls in
// its validity window. The parsed leaf is returned for logging.
func ValidateCertificate(cert *tls.Certificate, now time.Time) (*x509.Certificate, error) {
	if cert == nil || len(cert.Certificate) == 0 {
		return nil, errors.New("certificate chain is empty")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	if now.Before(leaf.NotBefore) {
		return nil, fmt.Errorf("certificate is not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return nil, fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}
	return leaf, nil
}

// ExpiresWithin reports whether leaf expires less than d after now.
func ExpiresWithin(leaf *x509.Certificate, now time.Time, d time.Duration) bool {
	return leaf.NotAfter.Sub(now) < d
}
