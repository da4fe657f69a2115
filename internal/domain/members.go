package domain

import (
	"fmt"
	"time"
)

type Member struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	IsHost      bool      `json:"is_host"`
	IsReady     bool      `json:"is_ready"`
	JoinSeq     uint64    `json:"join_seq"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Members keeps room members in join order. Exactly one member is host
// while the list is non-empty.
type Members struct {
	list    []Member
	nextSeq uint64
	limit   int
}

// NewMembers returns an empty member list. A limit below 1 means unlimited.
func NewMembers(limit int) *Members {
	return &Members{
		list:    make([]Member, 0, 4),
		nextSeq: 1,
		limit:   limit,
	}
}

func (m Members) Length() int {
	return len(m.list)
}

// AsList returns a copy of the members in join order.
func (m Members) AsList() []Member {
	list := make([]Member, len(m.list))
	copy(list, m.list)
	return list
}

func (m Members) index(userID string) int {
	for i, member := range m.list {
		if member.UserID == userID {
			return i
		}
	}

	return -1
}

func (m Members) Get(userID string) (Member, error) {
	i := m.index(userID)
	if i < 0 {
		return Member{}, ErrMemberNotFound
	}

	return m.list[i], nil
}

func (m Members) Host() (Member, bool) {
	for _, member := range m.list {
		if member.IsHost {
			return member, true
		}
	}

	return Member{}, false
}

func (m Members) HostCount() int {
	count := 0
	for _, member := range m.list {
		if member.IsHost {
			count++
		}
	}

	return count
}

// Add appends a new member. The first member of an empty list becomes host.
func (m *Members) Add(userID, displayName string, joinedAt time.Time) (Member, error) {
	if userID == "" || displayName == "" {
		return Member{}, fmt.Errorf("user id and display name are required: %w", ErrInvalidInput)
	}

	if m.index(userID) >= 0 {
		return Member{}, ErrDuplicateMember
	}

	if m.limit > 0 && len(m.list) >= m.limit {
		return Member{}, ErrMembersLimitReached
	}

	member := Member{
		UserID:      userID,
		DisplayName: displayName,
		IsHost:      len(m.list) == 0,
		IsReady:     false,
		JoinSeq:     m.nextSeq,
		JoinedAt:    joinedAt,
	}
	m.nextSeq++
	m.list = append(m.list, member)

	return member, nil
}

// Remove deletes the member and reports whether it held the host role.
// Promotion of a successor is left to PromoteNextHost.
func (m *Members) Remove(userID string) (removed Member, removedHost bool, ok bool) {
	i := m.index(userID)
	if i < 0 {
		return Member{}, false, false
	}

	removed = m.list[i]
	m.list = append(m.list[:i], m.list[i+1:]...)

	return removed, removed.IsHost, true
}

// PromoteNextHost hands the host role to the member with the earliest join
// sequence. It is a no-op when the list is empty or a host already exists.
func (m *Members) PromoteNextHost() (Member, bool) {
	if len(m.list) == 0 {
		return Member{}, false
	}

	if host, ok := m.Host(); ok {
		return host, false
	}

	next := 0
	for i, member := range m.list {
		if member.JoinSeq < m.list[next].JoinSeq {
			next = i
		}
	}

	m.list[next].IsHost = true

	return m.list[next], true
}

func (m *Members) SetReady(userID string, ready bool) (Member, error) {
	i := m.index(userID)
	if i < 0 {
		return Member{}, ErrMemberNotFound
	}

	m.list[i].IsReady = ready

	return m.list[i], nil
}

// restoreMembers rebuilds a member list from archived members, keeping
// their join sequence numbers.
func restoreMembers(list []Member, limit int) (*Members, error) {
	m := NewMembers(limit)
	for _, member := range list {
		if member.UserID == "" || m.index(member.UserID) >= 0 {
			return nil, fmt.Errorf("restore member %q: %w", member.UserID, ErrInvalidInput)
		}

		m.list = append(m.list, member)
		if member.JoinSeq >= m.nextSeq {
			m.nextSeq = member.JoinSeq + 1
		}
	}

	if len(m.list) > 0 && m.HostCount() != 1 {
		return nil, fmt.Errorf("restore members: want exactly one host, got %d: %w", m.HostCount(), ErrInvalidInput)
	}

	return m, nil
}
