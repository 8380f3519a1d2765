package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/model"
)

// Random picks a joke uniformly from the whole collection.
//
// It counts the jokes, draws an offset in [0, count) and reads the joke at
// that offset of the (created_at, id) ordering. The two reads are not in one
// transaction: an insert or delete in between can skew the pick or land past
// the end, which is reported as NotFound. The offset read is a linear scan on
// most databases.
func (s *JokeService) Random(ctx context.Context) (*model.Joke, error) {
	n, err := s.jokes.CountJokes(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting jokes: %w", err)
	}
	if n == 0 {
		return nil, apperror.NotFoundf("no jokes to pick from")
	}

	offset := s.intn(int(n))

	joke, err := s.jokes.JokeAtOffset(ctx, offset)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundf("no random joke found")
		}
		return nil, fmt.Errorf("fetching joke at offset %d: %w", offset, err)
	}

	s.metrics.RandomPicks.Inc()
	return joke, nil
}
