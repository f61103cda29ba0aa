package session

import (
	"fmt"

	"github.com/gorilla/sessions"
)

type Session struct {
	gs    *sessions.Session
	saver *Saver
}

func (s Session) GoString() string {
	return fmt.Sprintf("session %s %#v", s.gs.Name(), s.gs.Values)
}

func (s Session) GetValue(key string) interface{} {
	return s.gs.Values[key]
}

// GetUint returns an id stored by Set. The json serializer turns numbers
// into float64, freshly set values keep their type.
func (s Session) GetUint(key string) (uint, bool) {
	switch v := s.gs.Values[key].(type) {
	case float64:
		if v < 0 || v != float64(uint(v)) {
			return 0, false
		}
		return uint(v), true
	case uint:
		return v, true
	case int:
		return uint(v), v >= 0
	}
	return 0, false
}

func (s Session) IsNew() bool {
	return s.gs.IsNew
}

func (s *Session) Set(k string, v interface{}) {
	s.gs.Values[k] = v
	s.saver.Save(s.gs)
}

// Delete drops values from redis and expires the cookie on the next response.
func (s *Session) Delete() {
	s.gs.Options.MaxAge = -1
	s.gs.Values = map[interface{}]interface{}{}
	s.saver.Save(s.gs)
}
