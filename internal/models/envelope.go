package models

// Envelope is the uniform result wrapper for every bridge command.
// Exactly one of Value and Error is set, consistent with Success.
type Envelope[T any] struct {
	Success bool    `json:"success"`
	Value   *T      `json:"value"`
	Error   *string `json:"error"`
}

// Void is the value type of commands that return nothing.
// It serializes as null so a successful void envelope reads
// {"success":true,"value":null,"error":null}.
type Void struct{}

// MarshalJSON implements json.Marshaler.
func (Void) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Ok wraps a successful value.
func Ok[T any](v T) Envelope[T] {
	return Envelope[T]{Success: true, Value: &v}
}

// Fail wraps an error message.
func Fail[T any](msg string) Envelope[T] {
	return Envelope[T]{Success: false, Error: &msg}
}

// FromResult maps an operation's (value, error) pair into an envelope.
// Errors are reduced to their display text.
func FromResult[T any](v T, err error) Envelope[T] {
	if err != nil {
		return Fail[T](err.Error())
	}
	return Ok(v)
}

// Err returns the error message, or "" on success.
func (e Envelope[T]) Err() string {
	if e.Error == nil {
		return ""
	}
	return *e.Error
}

// Get returns the value and whether the envelope succeeded.
func (e Envelope[T]) Get() (T, bool) {
	if !e.Success || e.Value == nil {
		var zero T
		return zero, false
	}
	return *e.Value, true
}
