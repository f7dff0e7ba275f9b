package types

const redactedPlaceholder = "***REDACTED***"

// SecretString keeps connection strings and keys out of logs. String and
// MarshalJSON both return a placeholder; Unmask returns the raw value.
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the plaintext. Only pass the result to drivers and clients.
func (s SecretString) Unmask() string {
	return string(s)
}
