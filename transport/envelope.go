package transport

import (
	"encoding/json"
	"fmt"
)

// Remote method names of the hub contract. Outbound targets are
// invoked on the hub; inbound targets arrive as broadcasts.
const (
	targetJoinChat    = "JoinChat"
	targetSendMessage = "SendMessage"
	targetSendImage   = "SendImage"
	targetUserTyping  = "UserTyping"

	targetReceiveMessage = "ReceiveMessage"
	targetReceiveImage   = "ReceiveImage"
	targetUserJoined     = "UserJoined"
	targetUserLeft       = "UserLeft"
	targetUpdateUserList = "UpdateUserList"
)

// envelope is the JSON frame exchanged with the hub: a target method
// plus positional arguments.
type envelope struct {
	Target    string            `json:"target"`
	Arguments []json.RawMessage `json:"arguments"`
}

func newEnvelope(target string, args ...any) (envelope, error) {
	env := envelope{Target: target}
	for _, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return envelope{}, fmt.Errorf("encoding %s argument: %w", target, err)
		}
		env.Arguments = append(env.Arguments, raw)
	}
	return env, nil
}

// decode unmarshals the positional arguments into the given pointers.
func (e envelope) decode(into ...any) error {
	if len(e.Arguments) < len(into) {
		return fmt.Errorf("%s: expected %d arguments, got %d",
			e.Target, len(into), len(e.Arguments))
	}
	for i, ptr := range into {
		if err := json.Unmarshal(e.Arguments[i], ptr); err != nil {
			return fmt.Errorf("%s argument %d: %w", e.Target, i, err)
		}
	}
	return nil
}
