package schedule

import "weekchime/internal/config"

// ResolveAudio is the peek side of rotation: it returns the audio ref the
// day would consume right now without touching any state, so previews may
// call it any number of times.
//
// fromPlaylist is true only when the ref came off the rotating playlist;
// that is the condition under which a real firing consumes a slot and must
// advance the cursor. Manual slots and the empty-playlist fallback return
// the manual ref (possibly empty) and never consume.
func ResolveAudio(cfg *config.Config, dayKey string) (ref string, fromPlaylist bool) {
	slot := cfg.Days[dayKey]
	if slot == nil {
		return "", false
	}
	if !slot.AutoAssign {
		return slot.AudioPath, false
	}
	n := len(cfg.Playlist)
	if n == 0 {
		// Auto-assign with nothing to rotate degrades to the manual ref.
		return slot.AudioPath, false
	}
	return cfg.Playlist[mod(cfg.PlaylistRotation, n)], true
}

// AdvanceCursor is the consume side: call it exactly once per firing that
// actually took a playlist slot, inside the same Store.Apply as the
// last-ran stamp.
func AdvanceCursor(cfg *config.Config) {
	n := len(cfg.Playlist)
	if n < 1 {
		n = 1
	}
	cfg.PlaylistRotation = mod(cfg.PlaylistRotation+1, n)
}

// AddTracks appends refs to the playlist, skipping ones already present.
// Returns how many were added.
func AddTracks(cfg *config.Config, refs ...string) int {
	added := 0
	for _, ref := range refs {
		if ref == "" || containsTrack(cfg.Playlist, ref) {
			continue
		}
		cfg.Playlist = append(cfg.Playlist, ref)
		added++
	}
	return added
}

// RemoveTrack removes the ref and resets the rotation cursor to 0: removal
// invalidates the cursor's positional meaning, and the contract is a full
// reset rather than index translation.
func RemoveTrack(cfg *config.Config, ref string) bool {
	out := cfg.Playlist[:0]
	removed := false
	for _, p := range cfg.Playlist {
		if p == ref && !removed {
			removed = true
			continue
		}
		out = append(out, p)
	}
	cfg.Playlist = out
	if removed {
		cfg.PlaylistRotation = 0
	}
	return removed
}

// MoveTrack moves the item at from to position to. Out-of-range indexes
// are a no-op.
func MoveTrack(cfg *config.Config, from, to int) bool {
	n := len(cfg.Playlist)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return false
	}
	item := cfg.Playlist[from]
	rest := append(cfg.Playlist[:from], cfg.Playlist[from+1:]...)
	cfg.Playlist = append(rest[:to], append([]string{item}, rest[to:]...)...)
	return true
}

func containsTrack(list []string, ref string) bool {
	for _, p := range list {
		if p == ref {
			return true
		}
	}
	return false
}

// mod is a non-negative modulus: cursors persisted by older builds may be
// out of range or negative and are only ever read mod len.
func mod(v, n int) int {
	return ((v % n) + n) % n
}
