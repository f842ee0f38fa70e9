// Package api holds the plain HTTP endpoints of the service and, in its
// subpackages, the shared response helpers and middleware. The comment
// channel itself lives in package realtime.
package api
