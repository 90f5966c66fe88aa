package schedule

import (
	"reflect"
	"testing"

	"weekchime/internal/config"
)

func TestResolveAudio(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		mutate       func(*config.Config)
		wantRef      string
		fromPlaylist bool
	}{
		{
			name: "auto slot reads playlist at cursor",
			mutate: func(c *config.Config) {
				c.Playlist = []string{"a.mp3", "b.mp3", "c.mp3"}
				c.PlaylistRotation = 1
			},
			wantRef:      "b.mp3",
			fromPlaylist: true,
		},
		{
			name: "out-of-range cursor wraps",
			mutate: func(c *config.Config) {
				c.Playlist = []string{"solo.mp3"}
				c.PlaylistRotation = 5
			},
			wantRef:      "solo.mp3",
			fromPlaylist: true,
		},
		{
			name: "negative cursor wraps",
			mutate: func(c *config.Config) {
				c.Playlist = []string{"a.mp3", "b.mp3", "c.mp3"}
				c.PlaylistRotation = -1
			},
			wantRef:      "c.mp3",
			fromPlaylist: true,
		},
		{
			name: "manual slot ignores playlist",
			mutate: func(c *config.Config) {
				c.Playlist = []string{"a.mp3"}
				c.Days["mon"].AutoAssign = false
				c.Days["mon"].AudioPath = "manual.mp3"
			},
			wantRef:      "manual.mp3",
			fromPlaylist: false,
		},
		{
			name: "empty playlist falls back to manual ref",
			mutate: func(c *config.Config) {
				c.Days["mon"].AudioPath = "fallback.mp3"
			},
			wantRef:      "fallback.mp3",
			fromPlaylist: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tt.mutate(cfg)
			ref, from := ResolveAudio(cfg, "mon")
			if ref != tt.wantRef || from != tt.fromPlaylist {
				t.Fatalf("ResolveAudio = (%q, %v), want (%q, %v)", ref, from, tt.wantRef, tt.fromPlaylist)
			}
			// Peek must not consume.
			ref2, _ := ResolveAudio(cfg, "mon")
			if ref2 != ref {
				t.Fatalf("second peek changed: %q then %q", ref, ref2)
			}
		})
	}
}

func TestAdvanceCursor(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Playlist = []string{"a", "b", "c"}
	for _, want := range []int{1, 2, 0, 1} {
		AdvanceCursor(cfg)
		if cfg.PlaylistRotation != want {
			t.Fatalf("cursor = %d, want %d", cfg.PlaylistRotation, want)
		}
	}

	cfg.Playlist = nil
	cfg.PlaylistRotation = 7
	AdvanceCursor(cfg)
	if cfg.PlaylistRotation != 0 {
		t.Fatalf("empty-playlist advance = %d, want 0", cfg.PlaylistRotation)
	}
}

func TestAddTracks(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	if n := AddTracks(cfg, "a", "b", "a", ""); n != 2 {
		t.Fatalf("added = %d, want 2", n)
	}
	if !reflect.DeepEqual(cfg.Playlist, []string{"a", "b"}) {
		t.Fatalf("playlist = %v", cfg.Playlist)
	}
}

func TestRemoveTrackResetsCursor(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Playlist = []string{"a", "b", "c"}
	cfg.PlaylistRotation = 2

	if !RemoveTrack(cfg, "b") {
		t.Fatal("expected removal")
	}
	if !reflect.DeepEqual(cfg.Playlist, []string{"a", "c"}) {
		t.Fatalf("playlist = %v", cfg.Playlist)
	}
	if cfg.PlaylistRotation != 0 {
		t.Fatalf("cursor = %d, want 0 after removal", cfg.PlaylistRotation)
	}

	cfg.PlaylistRotation = 1
	if RemoveTrack(cfg, "missing") {
		t.Fatal("unexpected removal")
	}
	if cfg.PlaylistRotation != 1 {
		t.Fatal("cursor must not reset on a no-op removal")
	}
}

func TestMoveTrack(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Playlist = []string{"a", "b", "c", "d"}

	if !MoveTrack(cfg, 0, 2) {
		t.Fatal("expected move")
	}
	if !reflect.DeepEqual(cfg.Playlist, []string{"b", "c", "a", "d"}) {
		t.Fatalf("playlist = %v", cfg.Playlist)
	}
	if MoveTrack(cfg, -1, 1) || MoveTrack(cfg, 0, 4) || MoveTrack(cfg, 2, 2) {
		t.Fatal("out-of-range or same-index move must be a no-op")
	}
}
