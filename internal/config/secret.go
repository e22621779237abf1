package config

const redactedPlaceholder = "***REDACTED***"

// SecretString keeps tokens out of logs and config dumps.
// Use Unmask() where the raw value is genuinely needed.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// MarshalYAML returns the redacted placeholder.
func (s SecretString) MarshalYAML() (any, error) {
	return redactedPlaceholder, nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}
