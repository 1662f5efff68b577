package types

// Room is a locally held view of group membership, propagated by invite and
// destroyed when the local user leaves. The relay's authoritative state is
// only the opaque room-id and the set of currently-joined session-ids;
// membership held here is advisory and self-heals as messages flow.
type Room struct {
	ID          RoomID
	Name        string
	Creator     PublicKey
	Members     []PublicKey // ordered set, including self
}

// HasMember reports whether pk is a known member of the room.
func (r Room) HasMember(pk PublicKey) bool {
	for _, m := range r.Members {
		if m == pk {
			return true
		}
	}
	return false
}

// AddMember appends pk to the member set if not already present.
func (r *Room) AddMember(pk PublicKey) {
	if r.HasMember(pk) {
		return
	}
	r.Members = append(r.Members, pk)
}

// RemoveMember drops pk from the member set, if present.
func (r *Room) RemoveMember(pk PublicKey) {
	out := r.Members[:0]
	for _, m := range r.Members {
		if m != pk {
			out = append(out, m)
		}
	}
	r.Members = out
}
