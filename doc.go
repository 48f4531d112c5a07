// Package session implements the authenticated-session and role-authorization
// core of the ClubHub membership client: a single reactive session store fed
// by an external identity provider, a backend role resolver, an HTTP request
// pipeline that signs outgoing calls with fresh bearer tokens and force-logs
// out on authorization failures, a route guard, and role-derived navigation.
//
// The identity backend itself (credential verification, token issuance) is a
// collaborator behind the IdentityProvider interface; provider/restidp ships
// an adapter for hosted identity REST services.
package session
