package server

import "fmt"

type sagaState string

const (
	sagaIdle       sagaState = "idle"
	sagaStaged     sagaState = "staged"
	sagaCommitted  sagaState = "committed"
	sagaRolledBack sagaState = "rolled_back"
)

// replaceSaga tracks one attachment replacement. Committed and RolledBack
// are terminal.
type replaceSaga struct {
	state        sagaState
	oldFilename  string
	tempFilename string
}

var sagaTransitions = map[sagaState][]sagaState{
	sagaIdle:   {sagaStaged, sagaCommitted, sagaRolledBack},
	sagaStaged: {sagaCommitted, sagaRolledBack},
}

func newReplaceSaga() *replaceSaga {
	return &replaceSaga{state: sagaIdle}
}

func (s *replaceSaga) advance(next sagaState) error {
	for _, allowed := range sagaTransitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid saga transition %s -> %s", s.state, next)
}

func (s *replaceSaga) stage(oldFilename, tempFilename string) error {
	if err := s.advance(sagaStaged); err != nil {
		return err
	}
	s.oldFilename = oldFilename
	s.tempFilename = tempFilename
	return nil
}

func (s *replaceSaga) staged() bool {
	return s.tempFilename != ""
}
