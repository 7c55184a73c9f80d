// Package log builds the slog loggers used by the actocrawl command.
//
// Crawl logs carry request URLs, response headers and user supplied request
// headers. The SecureHandler redacts values that look like credentials before
// they reach the output:
//   - attributes whose key names a credential (cookie, authorization, token, ...)
//   - bearer, basic and JWT style values under any key
//   - the userinfo part of URLs and the values of secret-looking query
//     parameters such as "?token=..." or "?api_key=..."
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	c, err := crawler.New(cfg, dep, crawl, crawler.WithLogger(logger))
package log
