package domain

// TypingState holds at most one remote user marked as typing.
// The latest signal always wins; a false signal clears the state.
// The local user's own typing is outbound only and never modeled here.
type TypingState struct {
	User   string
	Typing bool
}

func (t *TypingState) Apply(user string, typing bool) {
	if typing {
		t.User = user
		t.Typing = true
		return
	}
	t.User = ""
	t.Typing = false
}

func (t *TypingState) Clear() {
	t.Apply("", false)
}
