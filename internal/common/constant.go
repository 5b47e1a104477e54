package common

// SuccessMarker is the literal status returned by a successful event creation.
const SuccessMarker = "success"

// Keys of the local metadata store.
const (
	// UserInfoKey holds the JSON snapshot of the signed-in user.
	UserInfoKey = "userInfo"
	// SessionKey holds the JSON encoded identity tokens.
	SessionKey = "session"
)
