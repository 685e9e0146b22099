package store

import "github.com/ravelchat/ravel/internal/ident"

// Key scheme. Every record key is a deterministic function of validated
// identifiers, so a malformed id can never address a record: validation
// happens at the boundary, key derivation happens here, and nothing in
// between concatenates raw request strings.
//
//	session record   sess:<session-id>
//	message record   msg:<session-id>:<message-id>
//	artifact record  art:<session-id>:<artifact-id>
//	role counter     ctr:<session-id>:<role>
const (
	sessionKeyPrefix  = "sess:"
	messageKeyPrefix  = "msg:"
	artifactKeyPrefix = "art:"
	counterKeyPrefix  = "ctr:"
)

// SessionKey returns the record key for a session.
func SessionKey(id ident.SessionID) string {
	return sessionKeyPrefix + string(id)
}

// SessionPrefix returns the listing prefix covering all session records.
func SessionPrefix() string {
	return sessionKeyPrefix
}

// MessageKey returns the record key for a message.
func MessageKey(sid ident.SessionID, mid ident.MessageID) string {
	return messageKeyPrefix + string(sid) + ":" + string(mid)
}

// MessagePrefix returns the listing prefix covering all messages of a session.
func MessagePrefix(sid ident.SessionID) string {
	return messageKeyPrefix + string(sid) + ":"
}

// ArtifactKey returns the record key for an artifact.
func ArtifactKey(sid ident.SessionID, aid ident.ArtifactID) string {
	return artifactKeyPrefix + string(sid) + ":" + string(aid)
}

// ArtifactPrefix returns the listing prefix covering all artifacts of a session.
func ArtifactPrefix(sid ident.SessionID) string {
	return artifactKeyPrefix + string(sid) + ":"
}

// MessageArtifactPrefix returns the listing prefix covering the artifacts
// of a single message. Relies on artifact ids being "<message-id>_code(k)".
func MessageArtifactPrefix(sid ident.SessionID, mid ident.MessageID) string {
	return ArtifactPrefix(sid) + string(mid) + "_code("
}

// CounterKey returns the atomic counter key for a (session, role) pair.
func CounterKey(sid ident.SessionID, role ident.Role) string {
	return counterKeyPrefix + string(sid) + ":" + string(role)
}

// CounterPrefix returns the listing prefix covering all counters of a session.
func CounterPrefix(sid ident.SessionID) string {
	return counterKeyPrefix + string(sid) + ":"
}
