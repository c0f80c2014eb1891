// Package speakers assembles higher level speaker operations on top of the
// raw command proxy and caches the last observed state per speaker.
package speakers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"sndctl/internal/events"
	"sndctl/internal/soco"
	"sndctl/internal/store"
)

// Service runs speaker operations through the command proxy. When the proxy
// is unreachable, reads fall back to the last snapshot in the store if
// caching is enabled.
type Service struct {
	client *soco.Client
	store  store.Store
	bus    *events.Bus
	logger *slog.Logger

	// CacheFallback answers Names and Info from stored snapshots when the
	// proxy cannot be reached.
	CacheFallback bool
}

func NewService(client *soco.Client, st store.Store, bus *events.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:        client,
		store:         st,
		bus:           bus,
		logger:        logger,
		CacheFallback: true,
	}
}

// Names lists the speakers the proxy currently knows about.
func (s *Service) Names(ctx context.Context) ([]string, error) {
	names, err := s.client.Speakers(ctx)
	if err != nil {
		if s.CacheFallback && errors.Is(err, soco.ErrUnreachable) {
			return s.cachedNames()
		}
		return nil, err
	}
	return names, nil
}

// Rediscover triggers a network scan on the proxy and returns the fresh list.
func (s *Service) Rediscover(ctx context.Context) ([]string, error) {
	return s.client.Rediscover(ctx)
}

func (s *Service) cachedNames() ([]string, error) {
	cached, err := s.store.ListSpeakers()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cached))
	for _, sp := range cached {
		names = append(names, sp.Name)
	}
	return names, nil
}

// Info queries volume, mute, playback state and current track for one
// speaker and stores the snapshot. On an unreachable proxy the stored
// snapshot is returned instead.
func (s *Service) Info(ctx context.Context, name string) (*store.Speaker, error) {
	sp := &store.Speaker{Name: name}

	if res, err := s.Invoke(ctx, name, "volume"); err != nil {
		return s.infoFallback(name, err)
	} else if res.OK() {
		sp.Volume, _ = strconv.Atoi(strings.TrimSpace(res.Result))
	}

	if res, err := s.Invoke(ctx, name, "mute"); err != nil {
		return s.infoFallback(name, err)
	} else if res.OK() {
		sp.Muted = strings.EqualFold(strings.TrimSpace(res.Result), "on")
	}

	if res, err := s.Invoke(ctx, name, "state"); err != nil {
		return s.infoFallback(name, err)
	} else if res.OK() {
		sp.State = strings.ToLower(strings.TrimSpace(res.Result))
	}

	if res, err := s.Invoke(ctx, name, "track"); err != nil {
		return s.infoFallback(name, err)
	} else if res.OK() {
		sp.Track = strings.TrimSpace(res.Result)
	}

	if err := s.store.SaveSpeaker(sp); err != nil {
		s.logger.Warn("speaker snapshot not saved", "speaker", name, "error", err)
	}
	if s.bus != nil {
		s.bus.Emit(events.Event{Type: events.EventSpeakerState, Data: sp})
	}
	return sp, nil
}

func (s *Service) infoFallback(name string, cause error) (*store.Speaker, error) {
	if s.CacheFallback && errors.Is(cause, soco.ErrUnreachable) {
		if cached, err := s.store.GetSpeaker(name); err == nil {
			s.logger.Warn("proxy unreachable, serving cached speaker state", "speaker", name)
			return cached, nil
		}
	}
	return nil, cause
}

// Volume reads the current volume level.
func (s *Service) Volume(ctx context.Context, name string) (int, error) {
	res, err := s.Invoke(ctx, name, "volume")
	if err != nil {
		return 0, err
	}
	if !res.OK() {
		return 0, commandError(res)
	}
	v, err := strconv.Atoi(strings.TrimSpace(res.Result))
	if err != nil {
		return 0, fmt.Errorf("unexpected volume response %q", res.Result)
	}
	return v, nil
}

// SetVolume sets the volume, clamped to 0..100.
func (s *Service) SetVolume(ctx context.Context, name string, level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return s.run(ctx, name, "volume", strconv.Itoa(level))
}

// AdjustVolume changes the volume by a signed delta.
func (s *Service) AdjustVolume(ctx context.Context, name string, delta int) error {
	return s.run(ctx, name, "relative_volume", strconv.Itoa(delta))
}

// Muted reports whether the speaker is muted.
func (s *Service) Muted(ctx context.Context, name string) (bool, error) {
	res, err := s.Invoke(ctx, name, "mute")
	if err != nil {
		return false, err
	}
	if !res.OK() {
		return false, commandError(res)
	}
	return strings.EqualFold(strings.TrimSpace(res.Result), "on"), nil
}

// SetMute mutes or unmutes the speaker.
func (s *Service) SetMute(ctx context.Context, name string, muted bool) error {
	arg := "off"
	if muted {
		arg = "on"
	}
	return s.run(ctx, name, "mute", arg)
}

// ToggleMute flips the mute state and returns the new value.
func (s *Service) ToggleMute(ctx context.Context, name string) (bool, error) {
	muted, err := s.Muted(ctx, name)
	if err != nil {
		return false, err
	}
	if err := s.SetMute(ctx, name, !muted); err != nil {
		return muted, err
	}
	return !muted, nil
}

// PlayPause toggles playback and returns the resulting state.
func (s *Service) PlayPause(ctx context.Context, name string) (string, error) {
	res, err := s.Invoke(ctx, name, "state")
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", commandError(res)
	}
	if strings.EqualFold(strings.TrimSpace(res.Result), "playing") {
		if err := s.run(ctx, name, "pause"); err != nil {
			return "", err
		}
		return "paused", nil
	}
	if err := s.run(ctx, name, "play"); err != nil {
		return "", err
	}
	return "playing", nil
}

func (s *Service) Next(ctx context.Context, name string) error {
	return s.run(ctx, name, "next")
}

func (s *Service) Previous(ctx context.Context, name string) error {
	return s.run(ctx, name, "previous")
}

// Group joins a speaker to the group led by coordinator.
func (s *Service) Group(ctx context.Context, name, coordinator string) error {
	return s.run(ctx, name, "group", coordinator)
}

// Ungroup removes a speaker from its group.
func (s *Service) Ungroup(ctx context.Context, name string) error {
	return s.run(ctx, name, "ungroup")
}

// PartyMode groups every speaker behind the named coordinator.
func (s *Service) PartyMode(ctx context.Context, coordinator string) error {
	return s.run(ctx, coordinator, "party_mode")
}

// UngroupAll dissolves all groups, using the named speaker as entry point.
func (s *Service) UngroupAll(ctx context.Context, name string) error {
	return s.run(ctx, name, "ungroup_all")
}

// Groups returns the proxy's group listing verbatim.
func (s *Service) Groups(ctx context.Context, name string) (string, error) {
	res, err := s.Invoke(ctx, name, "groups")
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", commandError(res)
	}
	return res.Result, nil
}

// Favorites lists the Sonos favorites known to the household.
func (s *Service) Favorites(ctx context.Context, name string) ([]ListItem, error) {
	return s.numberedList(ctx, name, "list_favs")
}

// PlayFavorite starts playback of a favorite by its name.
func (s *Service) PlayFavorite(ctx context.Context, name, favorite string) error {
	return s.run(ctx, name, "play_fav", favorite)
}

// PlayFavoriteNumber starts playback of a favorite by its 1-based
// position in the favorites list.
func (s *Service) PlayFavoriteNumber(ctx context.Context, name string, number int) error {
	items, err := s.Favorites(ctx, name)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Number == number {
			return s.PlayFavorite(ctx, name, item.Name)
		}
	}
	return fmt.Errorf("favorite number %d: %w", number, store.ErrNotFound)
}

// Playlists lists the Sonos playlists.
func (s *Service) Playlists(ctx context.Context, name string) ([]ListItem, error) {
	return s.numberedList(ctx, name, "list_playlists")
}

// PlaylistTracks lists the tracks of a named Sonos playlist.
func (s *Service) PlaylistTracks(ctx context.Context, name, playlist string) ([]ListItem, error) {
	res, err := s.Invoke(ctx, name, "list_playlist_tracks", playlist)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, commandError(res)
	}
	return ParseNumberedList(res.Result), nil
}

// QueuePlaylist appends a playlist to the speaker's queue.
func (s *Service) QueuePlaylist(ctx context.Context, name, playlist string) error {
	return s.run(ctx, name, "add_playlist_to_queue", playlist)
}

// RadioStations lists the favorite radio stations.
func (s *Service) RadioStations(ctx context.Context, name string) ([]ListItem, error) {
	return s.numberedList(ctx, name, "favorite_radio_stations")
}

// PlayRadio starts playback of a favorite radio station.
func (s *Service) PlayRadio(ctx context.Context, name, station string) error {
	return s.run(ctx, name, "play_fav_radio_station", station)
}

// Queue lists the speaker's play queue.
func (s *Service) Queue(ctx context.Context, name string) ([]QueueItem, error) {
	res, err := s.Invoke(ctx, name, "list_queue")
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, commandError(res)
	}
	return ParseQueue(res.Result), nil
}

// PlayFromQueue starts playback at the given 1-based queue position.
func (s *Service) PlayFromQueue(ctx context.Context, name string, position int) error {
	return s.run(ctx, name, "play_from_queue", strconv.Itoa(position))
}

// ClearQueue empties the speaker's queue.
func (s *Service) ClearQueue(ctx context.Context, name string) error {
	return s.run(ctx, name, "clear_queue")
}

// RemoveFromQueue removes the entry at the given 1-based position.
func (s *Service) RemoveFromQueue(ctx context.Context, name string, position int) error {
	return s.run(ctx, name, "remove_from_queue", strconv.Itoa(position))
}

func (s *Service) numberedList(ctx context.Context, name, action string) ([]ListItem, error) {
	res, err := s.Invoke(ctx, name, action)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, commandError(res)
	}
	return ParseNumberedList(res.Result), nil
}

// Invoke dispatches one raw command through the proxy and publishes the
// result on the event bus.
func (s *Service) Invoke(ctx context.Context, speaker, action string, args ...string) (*soco.CommandResult, error) {
	res, err := s.client.Invoke(ctx, speaker, action, args...)
	if err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.Emit(events.Event{Type: events.EventCommandResult, Data: res})
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, speaker, action string, args ...string) error {
	res, err := s.Invoke(ctx, speaker, action, args...)
	if err != nil {
		return err
	}
	if !res.OK() {
		return commandError(res)
	}
	return nil
}

func commandError(res *soco.CommandResult) error {
	msg := strings.TrimSpace(res.ErrorMsg)
	if msg == "" {
		msg = strings.TrimSpace(res.Result)
	}
	if msg == "" {
		msg = "command failed"
	}
	return fmt.Errorf("%s %s: %s (exit %d)", res.Speaker, res.Action, msg, res.ExitCode)
}
