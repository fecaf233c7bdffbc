package client

import (
	"encoding/json"
	"fmt"
	"slices"
)

// errUnexpectedStatus is returned by the stock decoders for statuses they do
// not accept. Call replaces it with the operation's table entry.
type errUnexpectedStatus int

func (e errUnexpectedStatus) Error() string {
	return fmt.Sprintf("unexpected status %d", int(e))
}

// DecodeJSON returns a decoder that unmarshals the body into T when the status
// is one of accept (default 200).
func DecodeJSON[T any](accept ...int) Decoder[T] {
	if len(accept) == 0 {
		accept = []int{200}
	}
	return func(status int, body json.RawMessage) (T, error) {
		var v T
		if !slices.Contains(accept, status) {
			return v, errUnexpectedStatus(status)
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return v, fmt.Errorf("decode body: %w", err)
		}
		return v, nil
	}
}

// DecodeNone returns a decoder that ignores the body and succeeds for any of
// the accepted statuses (default 200 and 204).
func DecodeNone(accept ...int) Decoder[struct{}] {
	if len(accept) == 0 {
		accept = []int{200, 204}
	}
	return func(status int, _ json.RawMessage) (struct{}, error) {
		if !slices.Contains(accept, status) {
			return struct{}{}, errUnexpectedStatus(status)
		}
		return struct{}{}, nil
	}
}
