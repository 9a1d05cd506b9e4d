// Package logging builds the process logger on top of log/slog.
//
//	logger, err := logging.New(logging.Config{
//	    Level:      "info",
//	    Format:     "json",
//	    RedactKeys: true,
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// Request-scoped fields are carried in the context and added to every
// record logged with it:
//
//	ctx = logging.WithRequestID(ctx, "0b9c...")
//	ctx = logging.WithTenant(ctx, "acme")
//	logger.InfoContext(ctx, "admitted") // request_id=0b9c... tenant_id=acme
//
// With RedactKeys, values of keys such as api_key or authorization are
// reduced to a four character prefix, and API keys or bearer tokens found
// inside other string values are masked.
package logging
