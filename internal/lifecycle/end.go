// Package lifecycle moves broadcasts between lifecycle states.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"ytc/internal/broadcast"
	"ytc/internal/youtube"
	"ytc/pkg/logx"
)

type Ender struct {
	session *youtube.Session
	log     logx.Logger
}

func New(session *youtube.Session, log logx.Logger) *Ender {
	return &Ender{session: session, log: log.With(logx.String("comp", "lifecycle"))}
}

// End transitions each broadcast to complete. Every id is attempted; the
// returned error joins the failures and the count is of ended broadcasts.
func (e *Ender) End(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, broadcast.Validationf("at least one broadcast id is required")
	}
	svc, err := e.session.Service(ctx)
	if err != nil {
		return 0, err
	}
	ended := 0
	var errs []error
	for _, id := range ids {
		if err := svc.TransitionBroadcast(ctx, id, youtube.StatusComplete); err != nil {
			err = broadcast.WrapRemote("end broadcast", fmt.Errorf("%s: %w", id, err))
			e.log.Error("end failed", logx.String("id", id), logx.Err(err))
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		ended++
		e.log.Info("broadcast ended", logx.String("id", id))
	}
	return ended, errors.Join(errs...)
}
