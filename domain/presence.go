package domain

import "github.com/samber/lo"

// PresenceSet tracks the usernames currently joined, excluding the
// local user whose presence is implicit. Insertion order is preserved
// for display stability; duplicates are never stored.
type PresenceSet struct {
	local string
	users []string
}

func NewPresenceSet(localUser string) *PresenceSet {
	return &PresenceSet{local: localUser}
}

// Add inserts a username and reports whether the set changed.
func (p *PresenceSet) Add(user string) bool {
	if user == p.local || lo.Contains(p.users, user) {
		return false
	}
	p.users = append(p.users, user)
	return true
}

// Remove drops a username and reports whether the set changed.
func (p *PresenceSet) Remove(user string) bool {
	before := len(p.users)
	p.users = lo.Filter(p.users, func(u string, _ int) bool { return u != user })
	return len(p.users) != before
}

// Replace swaps the whole set for the given list, filtering the local
// user and duplicates. Used when a transport delivers a full user list.
func (p *PresenceSet) Replace(users []string) {
	users = lo.Filter(users, func(u string, _ int) bool { return u != p.local })
	p.users = lo.Uniq(users)
}

// Users returns a copy of the set in insertion order.
func (p *PresenceSet) Users() []string {
	out := make([]string, len(p.users))
	copy(out, p.users)
	return out
}

func (p *PresenceSet) Len() int {
	return len(p.users)
}
