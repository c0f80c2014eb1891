package speakers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Track returns the proxy's current-track description verbatim.
func (s *Service) Track(ctx context.Context, name string) (string, error) {
	res, err := s.Invoke(ctx, name, "track")
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", commandError(res)
	}
	return res.Result, nil
}

// Shuffle reports whether shuffle is enabled.
func (s *Service) Shuffle(ctx context.Context, name string) (bool, error) {
	return s.onOff(ctx, name, "shuffle")
}

// SetShuffle enables or disables shuffle.
func (s *Service) SetShuffle(ctx context.Context, name string, on bool) error {
	return s.run(ctx, name, "shuffle", onOffArg(on))
}

// Repeat reports whether repeat is enabled.
func (s *Service) Repeat(ctx context.Context, name string) (bool, error) {
	return s.onOff(ctx, name, "repeat")
}

// SetRepeat enables or disables repeat.
func (s *Service) SetRepeat(ctx context.Context, name string, on bool) error {
	return s.run(ctx, name, "repeat", onOffArg(on))
}

// Crossfade reports whether crossfade is enabled.
func (s *Service) Crossfade(ctx context.Context, name string) (bool, error) {
	return s.onOff(ctx, name, "crossfade")
}

// SetCrossfade enables or disables crossfade.
func (s *Service) SetCrossfade(ctx context.Context, name string, on bool) error {
	return s.run(ctx, name, "crossfade", onOffArg(on))
}

// SetSleepTimer arms the sleep timer. The duration is passed through to the
// proxy, which accepts forms like "30m", "1h" or "00:30:00".
func (s *Service) SetSleepTimer(ctx context.Context, name, duration string) error {
	return s.run(ctx, name, "sleep_timer", duration)
}

// CancelSleepTimer disarms the sleep timer.
func (s *Service) CancelSleepTimer(ctx context.Context, name string) error {
	return s.run(ctx, name, "sleep_timer", "off")
}

// Seek jumps to a position in the current track, e.g. "00:01:30".
func (s *Service) Seek(ctx context.Context, name, position string) error {
	return s.run(ctx, name, "seek", position)
}

// GroupVolume returns the volume of the group the speaker belongs to.
func (s *Service) GroupVolume(ctx context.Context, name string) (int, error) {
	res, err := s.Invoke(ctx, name, "group_volume")
	if err != nil {
		return 0, err
	}
	if !res.OK() {
		return 0, commandError(res)
	}
	v, err := strconv.Atoi(strings.TrimSpace(res.Result))
	if err != nil {
		return 0, fmt.Errorf("unexpected group volume response %q", res.Result)
	}
	return v, nil
}

// SetGroupVolume sets the volume of the whole group, clamped to 0..100.
func (s *Service) SetGroupVolume(ctx context.Context, name string, level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return s.run(ctx, name, "group_volume", strconv.Itoa(level))
}

// Transfer moves the current playback from one speaker to another.
func (s *Service) Transfer(ctx context.Context, from, to string) error {
	return s.run(ctx, from, "transfer_playback", to)
}

// QueueLength returns the number of items in the queue.
func (s *Service) QueueLength(ctx context.Context, name string) (int, error) {
	return s.intResult(ctx, name, "queue_length")
}

// QueuePosition returns the 1-based queue position of the current track.
func (s *Service) QueuePosition(ctx context.Context, name string) (int, error) {
	return s.intResult(ctx, name, "queue_position")
}

// AddFavoriteToQueue appends a favorite to the queue by its name.
func (s *Service) AddFavoriteToQueue(ctx context.Context, name, favorite string) error {
	return s.run(ctx, name, "add_fav_to_queue", favorite)
}

// AddShareLink queues a music service share link (Spotify, Apple
// Music, Tidal, Deezer).
func (s *Service) AddShareLink(ctx context.Context, name, url string) error {
	return s.run(ctx, name, "add_sharelink_to_queue", url)
}

// SaveQueue stores the current queue as a named Sonos playlist.
func (s *Service) SaveQueue(ctx context.Context, name, title string) error {
	return s.run(ctx, name, "save_queue", title)
}

func (s *Service) onOff(ctx context.Context, name, action string) (bool, error) {
	res, err := s.Invoke(ctx, name, action)
	if err != nil {
		return false, err
	}
	if !res.OK() {
		return false, commandError(res)
	}
	return strings.EqualFold(strings.TrimSpace(res.Result), "on"), nil
}

func (s *Service) intResult(ctx context.Context, name, action string) (int, error) {
	res, err := s.Invoke(ctx, name, action)
	if err != nil {
		return 0, err
	}
	if !res.OK() {
		return 0, commandError(res)
	}
	v, err := strconv.Atoi(strings.TrimSpace(res.Result))
	if err != nil {
		return 0, fmt.Errorf("unexpected %s response %q", action, res.Result)
	}
	return v, nil
}

func onOffArg(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
