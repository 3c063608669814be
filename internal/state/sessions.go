package state

import (
	"encoding/json"
	"os"

	"github.com/edspencer/herdctl-sub001/internal/util"
)

// ReadSession loads the persisted session for agentID, or nil if none exists.
func (s *Store) ReadSession(agentID string) (*Session, error) {
	path, err := s.sessionPath(agentID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StateIOError{Kind: "read", Path: path, Cause: err}
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, nil // corrupt session: treated as absent, never fatal
	}
	return &sess, nil
}

// WriteSession atomically persists a session for agentID.
func (s *Store) WriteSession(agentID string, sess Session) error {
	path, err := s.sessionPath(agentID)
	if err != nil {
		return err
	}
	if err := util.EnsureDirAndWriteJSON(path, sess); err != nil {
		return &StateIOError{Kind: "write", Path: path, Cause: err}
	}
	return nil
}

// ClearSession removes a session, e.g. on workspace drift (I11).
func (s *Store) ClearSession(agentID string) error {
	path, err := s.sessionPath(agentID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &StateIOError{Kind: "remove", Path: path, Cause: err}
	}
	return nil
}
