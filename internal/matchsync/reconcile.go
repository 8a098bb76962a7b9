package matchsync

import "github.com/park285/damas-online/internal/game"

// ShouldAdopt decides whether a remote snapshot replaces the local state.
// A terminal remote wins over a running local game; otherwise the higher move
// number wins. A finished local game is never reopened, even by a running
// snapshot with a higher move number: this is stricter than comparing move
// numbers alone. Equal move numbers are discarded.
func ShouldAdopt(local, remote *game.State) bool {
	if remote == nil {
		return false
	}
	if local == nil {
		return true
	}
	return adopts(local.GameOver, local.MoveNumber, remote.GameOver, remote.MoveNumber)
}
