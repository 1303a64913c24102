package presence

// MsgIdentityRequired is returned to clients whose join request lacks a name or room.
const MsgIdentityRequired = "Username and room are required"

// ValidationError reports user input that cannot be admitted to a room.
// Its message is shown to the requesting client as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
