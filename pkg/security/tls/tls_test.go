package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// writePair writes a self-signed certificate for localhost and returns the
// cert and key paths.
func writePair(t *testing.T, dir, cn string, notBefore, notAfter time.Time) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	writePEM(t, certFile, "CERTIFICATE", der)
	writePEM(t, keyFile, "EC PRIVATE KEY", keyDER)
	return certFile, keyFile
}

func writePEM(t *testing.T, path, typ string, der []byte) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}

func validPair(t *testing.T, dir, cn string) (string, string) {
	now := time.Now()
	return writePair(t, dir, cn, now.Add(-time.Hour), now.Add(90*24*time.Hour))
}

func TestNewCertificateReloader(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		notBefore time.Time
		notAfter  time.Time
		wantErr   bool
	}{
		{"valid", now.Add(-time.Hour), now.Add(24 * time.Hour), false},
		{"expired", now.Add(-48 * time.Hour), now.Add(-24 * time.Hour), true},
		{"not yet valid", now.Add(24 * time.Hour), now.Add(48 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certFile, keyFile := writePair(t, t.TempDir(), "gatekeeper", tt.notBefore, tt.notAfter)
			r, err := NewCertificateReloader(certFile, keyFile, quietLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCertificateReloader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && r.Certificate().Leaf.Subject.CommonName != "gatekeeper" {
				t.Errorf("CommonName = %q", r.Certificate().Leaf.Subject.CommonName)
			}
		})
	}

	if _, err := NewCertificateReloader("missing.crt", "missing.key", quietLogger()); err == nil {
		t.Error("missing files: expected error")
	}
}

func TestCertificateReloader_ReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validPair(t, dir, "first")
	r, err := NewCertificateReloader(certFile, keyFile, quietLogger())
	if err != nil {
		t.Fatalf("NewCertificateReloader() error = %v", err)
	}

	if err := os.WriteFile(certFile, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err == nil {
		t.Fatal("Reload() with corrupt certificate: expected error")
	}
	if got := r.Certificate().Leaf.Subject.CommonName; got != "first" {
		t.Errorf("after failed reload CommonName = %q, want first", got)
	}

	validPair(t, dir, "second")
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := r.Certificate().Leaf.Subject.CommonName; got != "second" {
		t.Errorf("CommonName = %q, want second", got)
	}
}

func TestCertificateReloader_Watch(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validPair(t, dir, "before")
	r, err := NewCertificateReloader(certFile, keyFile, quietLogger())
	if err != nil {
		t.Fatalf("NewCertificateReloader() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, 20*time.Millisecond) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	}()

	// Give the watcher time to register before rewriting.
	time.Sleep(50 * time.Millisecond)
	validPair(t, dir, "after")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r.Certificate().Leaf.Subject.CommonName == "after" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("certificate not reloaded, CommonName = %q", r.Certificate().Leaf.Subject.CommonName)
}

func TestServerConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validPair(t, dir, "gatekeeper")
	certs, err := NewCertificateReloader(certFile, keyFile, quietLogger())
	if err != nil {
		t.Fatalf("NewCertificateReloader() error = %v", err)
	}

	t.Run("disabled", func(t *testing.T) {
		got, err := ServerConfig(&config.TLSConfig{}, certs)
		if err != nil || got != nil {
			t.Errorf("ServerConfig() = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("missing reloader", func(t *testing.T) {
		if _, err := ServerConfig(&config.TLSConfig{Enabled: true}, nil); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("min version", func(t *testing.T) {
		got, err := ServerConfig(&config.TLSConfig{Enabled: true, MinVersion: "1.3"}, certs)
		if err != nil {
			t.Fatalf("ServerConfig() error = %v", err)
		}
		if got.MinVersion != tls.VersionTLS13 {
			t.Errorf("MinVersion = %x, want TLS 1.3", got.MinVersion)
		}
		if got.ClientAuth != tls.NoClientCert {
			t.Errorf("ClientAuth = %v, want NoClientCert", got.ClientAuth)
		}
	})

	t.Run("client CA", func(t *testing.T) {
		got, err := ServerConfig(&config.TLSConfig{
			Enabled:      true,
			ClientCAFile: certFile,
			ClientAuth:   "verify_if_given",
		}, certs)
		if err != nil {
			t.Fatalf("ServerConfig() error = %v", err)
		}
		if got.ClientCAs == nil || got.ClientAuth != tls.VerifyClientCertIfGiven {
			t.Errorf("ClientCAs = %v, ClientAuth = %v", got.ClientCAs, got.ClientAuth)
		}
	})

	t.Run("bad client CA", func(t *testing.T) {
		_, err := ServerConfig(&config.TLSConfig{Enabled: true, ClientCAFile: keyFile}, certs)
		if err == nil {
			t.Error("expected error for a CA file without certificates")
		}
	})
}

func TestParseClientAuth(t *testing.T) {
	tests := map[string]tls.ClientAuthType{
		"":                tls.RequireAndVerifyClientCert,
		"require":         tls.RequireAndVerifyClientCert,
		"request":         tls.RequestClientCert,
		"verify_if_given": tls.VerifyClientCertIfGiven,
	}
	for mode, want := range tests {
		if got := ParseClientAuth(mode); got != want {
			t.Errorf("ParseClientAuth(%q) = %v, want %v", mode, got, want)
		}
	}
}

func TestServerConfig_Handshake(t *testing.T) {
	certFile, keyFile := validPair(t, t.TempDir(), "gatekeeper")
	certs, err := NewCertificateReloader(certFile, keyFile, quietLogger())
	if err != nil {
		t.Fatalf("NewCertificateReloader() error = %v", err)
	}
	tlsConfig, err := ServerConfig(&config.TLSConfig{Enabled: true}, certs)
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}

	raw, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})}
	go func() { _ = srv.Serve(tls.NewListener(raw, tlsConfig)) }()
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(certs.Certificate().Leaf)
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}}}

	resp, err := client.Get("https://" + raw.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("response = %d %q", resp.StatusCode, body)
	}
	if resp.TLS == nil || resp.TLS.PeerCertificates[0].Subject.CommonName != "gatekeeper" {
		t.Error("response not served with the reloader's certificate")
	}
}
