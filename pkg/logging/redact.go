package logging

// idPrefixLength is how many characters of an identifier survive truncation.
// Eight characters are enough to correlate log lines without exposing the
// full value (state nonces and session ids are secrets while a flow is live).
const idPrefixLength = 8

// TruncateSessionID shortens an opaque identifier (state nonce, session id,
// flow id) to a log-safe prefix.
func TruncateSessionID(id string) string {
	if len(id) <= idPrefixLength {
		return id
	}
	return id[:idPrefixLength] + "..."
}

// RedactEmail keeps only a short prefix of an email address for log output.
func RedactEmail(email string) string {
	if len(email) <= idPrefixLength {
		return email
	}
	return email[:idPrefixLength] + "..."
}
