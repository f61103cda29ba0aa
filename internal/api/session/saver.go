package session

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/logutil"
)

// Saver remembers sessions changed while handling a request. They are
// written once, right before the response headers.
type Saver struct {
	changed []*sessions.Session
	log     logutil.Log
}

func NewSaver(log logutil.Log) *Saver {
	return &Saver{log: log}
}

func (s *Saver) Save(gs *sessions.Session) {
	for _, c := range s.changed {
		if c == gs {
			return
		}
	}
	s.changed = append(s.changed, gs)
}

func (s Saver) Pending() int {
	return len(s.changed)
}

func (s Saver) FinalizeHTTP(r *http.Request, w http.ResponseWriter) error {
	for _, gs := range s.changed {
		if err := gs.Save(r, w); err != nil {
			return errors.Wrapf(err, "can't save session %s", gs.Name())
		}

		action := "saved"
		if gs.Options.MaxAge < 0 {
			action = "deleted"
		}
		s.log.Debugf("session", "%s session %s for %s", action, gs.Name(), r.URL.Path)
	}

	return nil
}
