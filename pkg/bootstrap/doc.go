// Package bootstrap builds a ready agent from a set of capability sources.
//
// Initialize checks the model credential, attempts every configured source,
// keeps the capabilities of the sources that answered and closes whatever the
// failed ones opened. The returned resource.Handle owns every live connection;
// the caller closes it (or calls Release) when the agent is no longer needed.
//
// A source failure never aborts initialization on its own. Whether a partially
// connected agent may start is decided by config.PolicyConfig.
package bootstrap
