// Package api assembles the HTTP surface of the service: it builds the
// router, layers the middleware chain, and mounts the role, invite, and
// audit handler groups.
package api
