package model

import "github.com/sirupsen/logrus"

// Annotate bounds every hidden dimension of the current data.
//
// Blocks run in reverse order: bounds near the observable end follow
// directly from the data, and deeper hidden variables are bounded using
// the already-bounded downstream ones.
func (s *Source) Annotate() error {
	if s.data == nil {
		return ErrNoData
	}
	for i := len(s.blocks) - 1; i >= 0; i-- {
		if err := s.blocks[i].annotate(s.data); err != nil {
			return err
		}
	}
	logrus.Debugf("annotated %d events for %s", s.data.Len(), s.cfg.inner)
	return nil
}
