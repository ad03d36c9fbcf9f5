package youtube

import (
	"context"
	"io"

	"ytc/internal/broadcast"
)

// Service is the subset of the video platform the scheduler needs.
type Service interface {
	CreateBroadcast(ctx context.Context, d broadcast.Draft) (string, error)
	ListStreams(ctx context.Context) ([]broadcast.Stream, error)
	BindStream(ctx context.Context, broadcastID, streamID string) error
	UploadThumbnail(ctx context.Context, broadcastID string, r io.Reader, contentType string) error
	// ListBroadcasts returns at most max broadcasts matching f in service
	// order, or every page when max <= 0. FilterAll lists every broadcast
	// owned by the account.
	ListBroadcasts(ctx context.Context, f broadcast.Filter, max int) ([]broadcast.Remote, error)
	// GetBroadcast fails with broadcast.ErrNotFound when id is unknown.
	GetBroadcast(ctx context.Context, id string) (broadcast.Remote, error)
	// UpdateBroadcast reads id before writing, so an unknown id fails with
	// broadcast.ErrNotFound and nothing is written.
	UpdateBroadcast(ctx context.Context, id string, p broadcast.Patch) (broadcast.Remote, error)
	TransitionBroadcast(ctx context.Context, id, status string) error
}

// StatusComplete ends a live broadcast.
const StatusComplete = "complete"
