// Package ident allocates and validates the identifiers used across ravel.
//
// Three grammars exist, and every identifier that crosses an external
// boundary is checked against them before it is allowed to become a
// store key:
//
//	session:  chat(<n>)                    n = creation time, Unix milliseconds
//	message:  <role>(<n>)                  role ∈ {user, assistant}, n ≥ 1
//	artifact: <role>(<n>)_code(<k>)        k = 1-based fence occurrence index
//
// Message sequence numbers are allocated by the Store's atomic counter
// (see session.Store.NextMessageID); everything in this package is a pure
// function except NewSessionID, which reads the clock.
package ident

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Role identifies the author of a message.
type Role string

// Valid message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind selects the grammar Validate checks an identifier against.
type Kind int

// Identifier kinds.
const (
	KindSession Kind = iota
	KindMessage
	KindArtifact
)

// Identifier types. They are distinct string types so a message id cannot
// silently flow into a parameter expecting a session id.
type (
	// SessionID identifies a conversation, e.g. "chat(1724930000123)".
	SessionID string
	// MessageID identifies a message within a session, e.g. "assistant(2)".
	MessageID string
	// ArtifactID identifies a code block within a message, e.g.
	// "assistant(2)_code(1)".
	ArtifactID string
)

// ErrInvalidID indicates a malformed identifier. It is rejected at the
// boundary and never reaches the Store.
var ErrInvalidID = errors.New("invalid identifier")

const sessionTag = "chat"

// lastSessionMillis holds the most recently issued session timestamp so
// two sessions created within the same clock tick never collide. The
// value may run ahead of the wall clock by a few milliseconds under
// bursts; it never runs behind.
var lastSessionMillis atomic.Int64

// NewSessionID allocates a session identifier embedding the creation time
// in Unix milliseconds. Identifiers are strictly increasing within a
// process, which also makes them monotonically orderable by creation.
func NewSessionID() SessionID {
	for {
		last := lastSessionMillis.Load()
		now := time.Now().UnixMilli()
		if now <= last {
			now = last + 1
		}
		if lastSessionMillis.CompareAndSwap(last, now) {
			return SessionID(sessionTag + "(" + strconv.FormatInt(now, 10) + ")")
		}
	}
}

// SessionTime extracts the creation timestamp embedded in a session id.
// Only display and sorting code should depend on this; everything else
// treats session ids as opaque.
func SessionTime(id SessionID) (time.Time, error) {
	n, ok := parseTagged(string(id), sessionTag)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q is not a session id", ErrInvalidID, id)
	}
	return time.UnixMilli(n), nil
}

// MessageIDFor formats a message id from a role and an already-allocated
// sequence number.
func MessageIDFor(role Role, n int64) MessageID {
	return MessageID(string(role) + "(" + strconv.FormatInt(n, 10) + ")")
}

// ArtifactIDFor derives the id of the k-th fenced code block of a message.
// Pure function: re-deriving for the same (parent, k) always yields the
// same id, which is what lets continuation overwrite artifacts in place.
func ArtifactIDFor(parent MessageID, k int) ArtifactID {
	return ArtifactID(string(parent) + "_code(" + strconv.Itoa(k) + ")")
}

// ParseMessageID splits a message id into role and sequence number.
func ParseMessageID(id MessageID) (Role, int64, bool) {
	for _, role := range []Role{RoleUser, RoleAssistant} {
		if n, ok := parseTagged(string(id), string(role)); ok {
			return role, n, true
		}
	}
	return "", 0, false
}

// ParseArtifactID splits an artifact id into its parent message id and
// occurrence index.
func ParseArtifactID(id ArtifactID) (MessageID, int, bool) {
	s := string(id)
	// The suffix is "_code(<k>)"; find the last "_code(" so role names
	// can never be confused with the artifact tag.
	const tag = "_code("
	i := strings.LastIndex(s, tag)
	if i <= 0 {
		return "", 0, false
	}
	parent := MessageID(s[:i])
	if !Validate(s[:i], KindMessage) {
		return "", 0, false
	}
	k, ok := parseTagged(s[i+1:], "code")
	if !ok || k < 1 {
		return "", 0, false
	}
	return parent, int(k), true
}

// Validate reports whether id conforms to the grammar for the given kind.
// It accepts every string the allocator produces and nothing else.
func Validate(id string, kind Kind) bool {
	switch kind {
	case KindSession:
		_, ok := parseTagged(id, sessionTag)
		return ok
	case KindMessage:
		_, _, ok := ParseMessageID(MessageID(id))
		return ok
	case KindArtifact:
		_, _, ok := ParseArtifactID(ArtifactID(id))
		return ok
	default:
		return false
	}
}

// parseTagged matches s against "<tag>(<n>)" where n is a positive decimal
// integer without leading zeros. Byte-level scanning; no regexp.
func parseTagged(s, tag string) (int64, bool) {
	if len(s) < len(tag)+3 { // tag + "(" + digit + ")"
		return 0, false
	}
	if s[:len(tag)] != tag || s[len(tag)] != '(' || s[len(s)-1] != ')' {
		return 0, false
	}
	digits := s[len(tag)+1 : len(s)-1]
	if digits == "" || digits[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
