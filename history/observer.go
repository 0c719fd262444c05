package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/vpn"
)

const writeTimeout = 5 * time.Second

// Recorder writes the client's sessions and failed dials to a Store.
type Recorder struct {
	vpn.NopObserver
	store *Store
	now   func() time.Time
}

// NewRecorder returns an observer recording into store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// OnSessionStart implements vpn.Observer.
func (r *Recorder) OnSessionStart(s vpn.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.store.Begin(ctx, Session{
		ID:        s.ID,
		EntryName: s.EntryName,
		Server:    s.Server,
		Username:  s.Username,
		ClientIP:  s.LocalIP,
		ServerIP:  s.ServerIP,
		StartedAt: s.StartedAt,
		Result:    vpn.ResultConnected,
	})
	if err != nil {
		common.LogWarn("history: %v", err)
	}
}

// OnSessionEnd implements vpn.Observer.
func (r *Recorder) OnSessionEnd(id, result string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if ferr := r.store.Finish(ctx, id, result, errorText(err), r.now()); ferr != nil {
		common.LogWarn("history: %v", ferr)
	}
}

// OnDialResult implements vpn.Observer. Dials that never connected are
// recorded as closed sessions carrying the dial error.
func (r *Recorder) OnDialResult(entryName, result string, elapsed time.Duration, dialErr error) {
	if result == vpn.ResultConnected {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	end := r.now()
	id := uuid.New().String()
	if err := r.store.Begin(ctx, Session{
		ID:        id,
		EntryName: entryName,
		StartedAt: end.Add(-elapsed),
		Result:    result,
	}); err != nil {
		common.LogWarn("history: %v", err)
		return
	}
	if err := r.store.Finish(ctx, id, result, errorText(dialErr), end); err != nil {
		common.LogWarn("history: %v", err)
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
