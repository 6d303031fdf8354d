// Package client is a typed Go client for the admin gateway routes.
//
// Responses are decoded into explicit result types. Job endpoints accept
// both a bare job object and one wrapped as {"job": {...}}. A session Store
// keeps the bearer token and user profile between calls: Login fills it,
// Logout clears it and every request sends the stored token.
package client
