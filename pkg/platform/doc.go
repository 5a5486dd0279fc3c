// Package platform provides thin clients for the public JSON APIs of the
// supported forum platforms. Each client implements the Client interface:
// fetch one page of items given an opaque resume token. Pacing, retries and
// persistence are the session manager's job, not the client's.
package platform
