package memstore

import (
	"context"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/users"
)

func (s *Store) CreateUser(_ context.Context, u *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return apperr.Conflict("a user with this email already exists")
	}
	s.users[u.ID] = cloneUser(*u)
	s.emails[u.Email] = u.ID
	s.userSeq = append(s.userSeq, u.ID)
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return users.User{}, apperr.NotFound("user not found")
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (users.User, error) {
	s.mu.RLock()
	id, ok := s.emails[email]
	s.mu.RUnlock()
	if !ok {
		return users.User{}, apperr.NotFound("user not found")
	}
	return s.GetUser(ctx, id)
}

func (s *Store) ListUsers(_ context.Context, f users.Filter, p paging.Page) ([]users.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := newestFirst(s.userSeq, func(id string) (users.User, bool) {
		u, ok := s.users[id]
		return u, ok
	}, func(u users.User) time.Time { return u.CreatedAt })
	var match []users.User
	for _, u := range all {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Search != "" && !containsFold(u.Email, f.Search) && !containsFold(u.FirstName, f.Search) && !containsFold(u.LastName, f.Search) {
			continue
		}
		match = append(match, cloneUser(u))
	}
	return paging.Slice(match, p), len(match), nil
}

func (s *Store) UpdateUser(_ context.Context, u users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return apperr.NotFound("user not found")
	}
	if u.Email != old.Email {
		if id, taken := s.emails[u.Email]; taken && id != u.ID {
			return apperr.Conflict("a user with this email already exists")
		}
		delete(s.emails, old.Email)
		s.emails[u.Email] = u.ID
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}
