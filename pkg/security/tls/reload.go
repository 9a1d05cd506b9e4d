package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last file event before the
// key pair is re-read.
const DefaultDebounce = 250 * time.Millisecond

// CertificateReloader holds the serving key pair and swaps it when the
// files on disk change, so renewals need no restart.
type CertificateReloader struct {
	certFile string
	keyFile  string
	logger   *slog.Logger
	now      func() time.Time

	cert atomic.Pointer[tls.Certificate]
}

// NewCertificateReloader loads the key pair once. It fails if the pair
// cannot be read or is outside its validity window.
func NewCertificateReloader(certFile, keyFile string, logger *slog.Logger) (*CertificateReloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger,
		now:      time.Now,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the key pair. On error the previous pair stays in use.
func (r *CertificateReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	now := r.now()
	leaf, err := ValidateCertificate(&cert, now)
	if err != nil {
		return err
	}
	cert.Leaf = leaf
	r.cert.Store(&cert)

	attrs := []any{
		"subject", leaf.Subject.CommonName,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	}
	if ExpiresWithin(leaf, now, ExpiryWarning) {
		r.logger.Warn("certificate expiring soon", attrs...)
	} else {
		r.logger.Info("certificate loaded", attrs...)
	}
	return nil
}

// Certificate returns the pair currently served.
func (r *CertificateReloader) Certificate() *tls.Certificate {
	return r.cert.Load()
}

// GetCertificate satisfies tls.Config.GetCertificate.
func (r *CertificateReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.cert.Load(), nil
}

// Watch reloads the pair when either file is written, created or renamed.
// It blocks until ctx is cancelled.
func (r *CertificateReloader) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	targets := map[string]bool{
		filepath.Clean(r.certFile): true,
		filepath.Clean(r.keyFile):  true,
	}
	dirs := make(map[string]bool)
	for path := range targets {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %q: %w", dir, err)
		}
		dirs[dir] = true
	}

	// Cert and key are usually rewritten together; wait for both.
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !targets[filepath.Clean(event.Name)] || event.Op == fsnotify.Chmod {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			if err := r.Reload(); err != nil {
				r.logger.Error("certificate reload failed, keeping previous certificate",
					"cert_file", r.certFile,
					"error", err,
				)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			r.logger.Error("certificate watcher error", "error", err)
		}
	}
}
