package transport

import "strings"

// Topics builds the topic names used by the speech pipeline. All topics hang
// off a deployment-wide prefix and carry the session identifier, so one
// broker can serve many concurrent sessions.
type Topics struct {
	// Prefix is the deployment namespace (e.g. "avatar/v1"). Empty means
	// topics start at the dialogue segment directly.
	Prefix string

	// SessionID identifies this client session in every topic.
	SessionID string
}

// Utterance returns the topic for a full-utterance WAV payload:
// {prefix}/dialogue/user-speech/{sessionID}/{chunkID}.
func (t Topics) Utterance(chunkID string) string {
	return t.join("dialogue/user-speech", t.SessionID, chunkID)
}

// Stream returns the topic for per-frame stream chunks and completion
// markers: {prefix}/dialogue/user-speech/stream/{sessionID}/{chunkID}.
func (t Topics) Stream(chunkID string) string {
	return t.join("dialogue/user-speech/stream", t.SessionID, chunkID)
}

// Presence returns the retained status topic for a client:
// {prefix}/dialogue/presence/{clientID}. Keyed by client rather than
// session so the broker-side will retraction matches the connection.
func (t Topics) Presence(clientID string) string {
	return t.join("dialogue/presence", clientID)
}

func (t Topics) join(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if t.Prefix != "" {
		all = append(all, strings.TrimSuffix(t.Prefix, "/"))
	}
	all = append(all, parts...)
	return strings.Join(all, "/")
}
