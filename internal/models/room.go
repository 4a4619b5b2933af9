package models

// Membership describes the user's relationship to a room.
type Membership string

const (
	MembershipJoin   Membership = "join"
	MembershipInvite Membership = "invite"
	MembershipLeave  Membership = "leave"
	MembershipBan    Membership = "ban"
	MembershipNone   Membership = ""
)

// Room holds the client-side view of a room needed by the feed layer.
// The room itself is owned by the session; this is a snapshot referenced
// by identifier.
type Room struct {
	// ID is the room identifier (!...:server).
	ID string `json:"room_id"`

	// Membership is the calling user's membership state.
	Membership Membership `json:"membership"`

	// Encrypted is true when the room has end-to-end encryption enabled.
	Encrypted bool `json:"encrypted"`
}

// Joined reports whether the user is a member of the room.
func (r *Room) Joined() bool {
	return r.Membership == MembershipJoin
}
