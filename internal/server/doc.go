// Package server hosts the Fiber HTTP service: request-id middleware, panic
// recovery, JSON error rendering and the two node routes (serve-file and
// upload-file). Route handlers are injected through FileHandler so the
// resolver and store stay outside this package and tests can substitute
// recorders.
package server
