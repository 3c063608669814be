package state

// ReadFleetState loads state.yaml, defaulting to a pending fleet with no
// schedules if the file is absent or corrupt.
func (s *Store) ReadFleetState() (*FleetState, error) {
	var fs FleetState
	if err := readYAML(s.statePath(), &fs); err != nil {
		return nil, err
	}
	if fs.Version == 0 {
		fs.Version = 1
	}
	if fs.Fleet.Status == "" {
		fs.Fleet.Status = FleetPending
	}
	return &fs, nil
}

// WriteFleetState atomically persists state.yaml.
func (s *Store) WriteFleetState(fs *FleetState) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	return atomicWriteYAML(s.statePath(), fs)
}

// ReadScheduleState returns the persisted state for (agent, name), or a
// fresh, enabled, never-run ScheduleState if it isn't present yet.
func (s *Store) ReadScheduleState(agent, name string) (*ScheduleState, error) {
	fs, err := s.ReadFleetState()
	if err != nil {
		return nil, err
	}
	for i := range fs.Schedules {
		if fs.Schedules[i].Agent == agent && fs.Schedules[i].Name == name {
			st := fs.Schedules[i]
			return &st, nil
		}
	}
	return &ScheduleState{Agent: agent, Name: name, Enabled: true}, nil
}

// stateLockID names the lock guarding state.yaml's read-modify-write cycle;
// a fixed identifier since the file itself has no per-entity key.
const stateLockID = "state"

// WriteScheduleState upserts one (agent, name) entry into state.yaml,
// preserving every other entry untouched. The read-modify-write is
// serialized against other state.yaml writers via the fixed "state" lock.
func (s *Store) WriteScheduleState(st ScheduleState) error {
	return s.withLock(stateLockID, func() error {
		fs, err := s.ReadFleetState()
		if err != nil {
			return err
		}
		found := false
		for i := range fs.Schedules {
			if fs.Schedules[i].Agent == st.Agent && fs.Schedules[i].Name == st.Name {
				fs.Schedules[i] = st
				found = true
				break
			}
		}
		if !found {
			fs.Schedules = append(fs.Schedules, st)
		}
		return s.WriteFleetState(fs)
	})
}

// RemoveScheduleState drops a (agent, name) entry, used when hot reload
// determines the pair no longer exists in the resolved config.
func (s *Store) RemoveScheduleState(agent, name string) error {
	return s.withLock(stateLockID, func() error {
		fs, err := s.ReadFleetState()
		if err != nil {
			return err
		}
		out := fs.Schedules[:0]
		for _, st := range fs.Schedules {
			if st.Agent == agent && st.Name == name {
				continue
			}
			out = append(out, st)
		}
		fs.Schedules = out
		return s.WriteFleetState(fs)
	})
}

// ListScheduleStates returns every persisted schedule state.
func (s *Store) ListScheduleStates() ([]ScheduleState, error) {
	fs, err := s.ReadFleetState()
	if err != nil {
		return nil, err
	}
	return fs.Schedules, nil
}
