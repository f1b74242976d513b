package generator

// DefaultReadyTurns 是允许生成前所需的用户发言次数。
const DefaultReadyTurns = 3

// Tracker converts a conversation into a coarse 0-100 readiness signal based
// purely on how many user turns it contains.
type Tracker struct {
	ReadyTurns int
}

// Readiness returns 0 without a seed, 10 before the first user turn, and then
// steps up to 100 once ReadyTurns user turns exist.
func (t Tracker) Readiness(turns []Turn, seedPresent bool) int {
	if !seedPresent {
		return 0
	}
	need := t.ReadyTurns
	if need <= 0 {
		need = DefaultReadyTurns
	}
	u := 0
	for _, turn := range turns {
		if turn.Role == RoleUser {
			u++
		}
	}
	switch {
	case u == 0:
		return 10
	case u >= need:
		return 100
	default:
		return 100 * u / need
	}
}

// Ready 仅在 Readiness 达到 100 时为 true。
func (t Tracker) Ready(turns []Turn, seedPresent bool) bool {
	return t.Readiness(turns, seedPresent) >= 100
}
