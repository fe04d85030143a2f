package memory

import (
	"context"

	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/settings"
)

// GetSettings returns the saved settings, if any.
func (s *Store) GetSettings(context.Context) (settings.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return settings.Settings{}, false, nil
	}
	out := *s.settings
	out.EnabledPaymentMethods = append(out.EnabledPaymentMethods[:0:0], s.settings.EnabledPaymentMethods...)
	return out, true, nil
}

// SaveSettings replaces the stored settings.
func (s *Store) SaveSettings(_ context.Context, in settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in.EnabledPaymentMethods = append(in.EnabledPaymentMethods[:0:0], in.EnabledPaymentMethods...)
	s.settings = &in
	return nil
}

// InsertEvent appends ev with the next sequence id.
func (s *Store) InsertEvent(_ context.Context, ev events.Event) (events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvent++
	ev.ID = s.nextEvent
	s.events = append(s.events, ev)
	return ev, nil
}
