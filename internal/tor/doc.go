// Package tor lets actocrawl crawl through the Tor network.
//
// Daemon starts an embedded Tor process with tornago and exposes its SOCKS5
// address, which is then handed to netsession.WithSOCKS5Proxy or
// browser.WithProxy. Probe checks that an externally managed proxy speaks
// SOCKS5 before a traversal starts, and the onion helpers decide whether a
// target needs Tor at all.
package tor
