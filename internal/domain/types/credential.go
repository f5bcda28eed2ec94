package types

// Credential is the session credential bundle issued on authentication.
// It is immutable; logout destroys it.
type Credential struct {
	AccessToken  string   `json:"access_token"`
	UserID       UserID   `json:"user_id"`
	DeviceID     DeviceID `json:"device_id"`
	ServerOrigin string   `json:"server_origin"`
}

// IsZero reports whether the credential is unset.
func (c Credential) IsZero() bool { return c.AccessToken == "" }
