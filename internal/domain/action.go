package domain

import "fmt"

// Action is a user decision delivered through an inline button.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionRefine   Action = "refine"
	ActionCancel   Action = "cancel"
	ActionRetry    Action = "retry"
	ActionFinalize Action = "finalize"
)

// Actions lists every Action; the handler dispatch table must cover all of them.
var Actions = []Action{ActionConfirm, ActionRefine, ActionCancel, ActionRetry, ActionFinalize}

// CallbackPrefix namespaces action buttons in callback data.
const CallbackPrefix = "act_"

func (a Action) CallbackData() string {
	return CallbackPrefix + string(a)
}

// ParseAction decodes callback data produced by CallbackData.
func ParseAction(data string) (Action, error) {
	if len(data) <= len(CallbackPrefix) || data[:len(CallbackPrefix)] != CallbackPrefix {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, data)
	}
	a := Action(data[len(CallbackPrefix):])
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, data)
}
