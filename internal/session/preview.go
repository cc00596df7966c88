package session

import (
	"context"
	"fmt"
)

// LookupPreview fetches display metadata for a URL the user is typing in
// and publishes the result on the Preview cell. Each call supersedes the
// previous one: the older request is cancelled and its result discarded
// even if it arrives later, so a slow lookup can never overwrite the
// preview of newer input. Cancellation itself is silent.
func (s *Session) LookupPreview(mediaURL string) {
	s.mu.Lock()
	if s.previewCancel != nil {
		s.previewCancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.previewCancel = cancel
	s.previewGen++
	gen := s.previewGen
	s.mu.Unlock()

	go func() {
		defer cancel()
		md, err := s.api.Metadata(ctx, mediaURL)

		s.mu.Lock()
		stale := gen != s.previewGen
		s.mu.Unlock()
		if stale {
			return
		}

		if err != nil {
			s.reportError(fmt.Errorf("metadata preview: %w", err))
			return
		}
		// md is nil when the lookup was cancelled; publishing nil then
		// is harmless since a newer lookup owns the cell.
		s.Preview.set(md)
	}()
}

// ClearPreview cancels any in-flight lookup and empties the preview,
// for when the input it belonged to is dismissed.
func (s *Session) ClearPreview() {
	s.mu.Lock()
	if s.previewCancel != nil {
		s.previewCancel()
		s.previewCancel = nil
	}
	s.previewGen++
	s.mu.Unlock()
	s.Preview.set(nil)
}
