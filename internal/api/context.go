// ABOUTME: Request context key types and constants for the api package.
// ABOUTME: Used by middleware to inject auth state and by handlers to read it.
package api

type contextKey int

const (
	ctxUserID contextKey = iota // int64 — authenticated user
	ctxStaff                    // bool — staff flag from the access token
	ctxOrgID                    // int64 — org from URL path param
	ctxLevel                    // int — caller's role level in that org
)
