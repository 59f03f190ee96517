package batch

import (
	"context"

	"github.com/xob0t/CertStencil/pkg/session"
)

// Service runs batches against the session store.
type Service struct {
	store    *session.Store
	pipeline *Pipeline
}

// NewService binds a pipeline to a store.
func NewService(store *session.Store, pipeline *Pipeline) *Service {
	return &Service{store: store, pipeline: pipeline}
}

// Run generates certificates for the session's current name list. Precondition
// failures return before any state changes. Once a run starts it always finishes:
// results are published and the in-progress flag cleared even when every capture fails.
func (s *Service) Run(ctx context.Context) (Result, error) {
	st, err := s.store.BeginGeneration()
	if err != nil {
		return Result{}, err
	}
	s.pipeline.Metrics.setInProgress(true)
	defer s.pipeline.Metrics.setInProgress(false)

	stamp := &st.Stamp
	if !stamp.Enabled {
		stamp = nil
	}
	res, err := s.pipeline.Generate(ctx, Input{
		RunID:    st.RunID,
		Template: st.Template,
		Elements: st.Elements,
		Names:    st.Names(),
		Stamp:    stamp,
	})
	res.RunID = st.RunID

	if ferr := s.store.FinishGeneration(st.RunID, res.Certificates, SessionFailures(res.Failures)); ferr != nil && err == nil {
		err = ferr
	}
	return res, err
}

// SessionFailures converts pipeline failures into their stored form.
func SessionFailures(fs []Failure) []session.Failure {
	out := make([]session.Failure, 0, len(fs))
	for _, f := range fs {
		out = append(out, session.Failure{Name: f.Name, Error: f.Err.Error()})
	}
	return out
}
