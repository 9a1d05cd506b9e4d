/*
Package tls terminates HTTPS on the gatekeeper listener.

A CertificateReloader owns the serving key pair and ServerConfig builds a
crypto/tls configuration that reads the pair on every handshake:

	certs, err := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, logger)
	if err != nil {
		return err
	}
	tlsConfig, err := tls.ServerConfig(cfg, certs)

	go certs.Watch(ctx, 0) // pick up renewed certificates

Setting client_ca_file turns on client certificate verification. The
client_auth mode chooses whether a certificate is required.
*/
package tls
