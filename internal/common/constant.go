// Package common contains shared constants, sentinel errors and small helpers
// used by both the GrowthVault client and the remote document server.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DocumentKey is the fixed key the local cache stores the document under.
// Both local backends use the same key so migration is a plain copy.
const DocumentKey = "growthvault-data"

// RemoteDocumentKey returns the remote location of a user's document.
func RemoteDocumentKey(userID string) string {
	return "users/" + userID + "/data"
}
