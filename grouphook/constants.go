package grouphook

// Action constants for roster operations.
const (
	ActionMemberInvited  = "member.invited"
	ActionMemberKicked   = "member.kicked"
	ActionMemberRelinked = "member.relinked"
)
