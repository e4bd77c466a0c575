package auction

import "strings"

// Identity describes the external user behind an incoming action.
type Identity struct {
	UserID      string
	Username    string
	DisplayName string
}

// Matcher resolves an external identity to a captain nickname.
type Matcher func(s *State, id Identity) (nick string, ok bool)

// BindingMatcher resolves through the explicit identity binding table.
func BindingMatcher(s *State, id Identity) (string, bool) {
	nick, ok := s.Bindings[id.UserID]
	return nick, ok
}

// NameMatcher falls back to display-name or account-name equality with a
// registered captain nickname. Kept for captains who never ran the link
// command.
func NameMatcher(s *State, id Identity) (string, bool) {
	display := strings.TrimSpace(id.DisplayName)
	account := strings.TrimSpace(id.Username)
	for nick := range s.Captains {
		if nick == display || nick == account {
			return nick, true
		}
	}
	return "", false
}

// defaultMatchers is the ordered resolution policy: exact binding lookup
// first, name equality second.
func defaultMatchers() []Matcher {
	return []Matcher{BindingMatcher, NameMatcher}
}

// resolveCaptain runs the matcher chain. Callers hold the service mutex.
func resolveCaptain(matchers []Matcher, s *State, id Identity) (string, bool) {
	for _, m := range matchers {
		if nick, ok := m(s, id); ok {
			return nick, true
		}
	}
	return "", false
}
