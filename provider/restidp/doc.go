// Package restidp implements session.IdentityProvider against a hosted
// identity REST backend (signUp / signInWithPassword / signInWithIdp /
// refresh-token style endpoints). It owns the provider's local token cache:
// the only client-side persistence the session core allows.
package restidp
