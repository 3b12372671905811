package frontier

import "context"

// Observer receives the outcome of every frontier operation.
type Observer interface {
	ObserveMerge(result MergeResult, err error)
	ObserveLease(leased int, err error)
	ObserveScores(requested, found int, err error)
}

// Instrument wraps store so each operation is reported to obs.
func Instrument(store Store, obs Observer) Store {
	if obs == nil {
		return store
	}
	return &instrumentedStore{Store: store, obs: obs}
}

type instrumentedStore struct {
	Store
	obs Observer
}

func (s *instrumentedStore) UpdateFoundURLs(ctx context.Context, reports []FoundURL) (MergeResult, error) {
	result, err := s.Store.UpdateFoundURLs(ctx, reports)
	s.obs.ObserveMerge(result, err)
	return result, err //nolint:wrapcheck // decorator is transparent
}

func (s *instrumentedStore) GetNewBatchForUser(ctx context.Context, userIDHash string) ([]string, error) {
	urls, err := s.Store.GetNewBatchForUser(ctx, userIDHash)
	s.obs.ObserveLease(len(urls), err)
	return urls, err //nolint:wrapcheck // decorator is transparent
}

func (s *instrumentedStore) GetURLScores(ctx context.Context, urls []string) (map[string]float64, error) {
	scores, err := s.Store.GetURLScores(ctx, urls)
	s.obs.ObserveScores(len(urls), len(scores), err)
	return scores, err //nolint:wrapcheck // decorator is transparent
}
