package repository

import (
	"context"
	"regexp"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/princinho/eventhub/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryUserStore enforces the same unique username/email constraints as the
// Mongo indexes. Records are copied in and out.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[bson.ObjectID]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[bson.ObjectID]models.User)}
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *MemoryUserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username })
}

func (s *MemoryUserStore) FindByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	if _, ok := s.users[user.ID]; ok || s.conflicts(user.ID, user.Username, user.Email) {
		return nil, ErrDuplicate
	}

	now := time.Now().UTC()
	if user.Subscriptions == nil {
		user.Subscriptions = []bson.ObjectID{}
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *cloneUser(*user)
	return user, nil
}

func (s *MemoryUserStore) Update(_ context.Context, id bson.ObjectID, upd models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneUser(u)
	upd.Apply(cp)
	if s.conflicts(id, cp.Username, cp.Email) {
		return nil, ErrDuplicate
	}
	cp.UpdatedAt = time.Now().UTC()
	s.users[id] = *cp
	return cloneUser(*cp), nil
}

// conflicts reports whether another user holds username or email.
func (s *MemoryUserStore) conflicts(self bson.ObjectID, username, email string) bool {
	for id, other := range s.users {
		if id != self && (other.Username == username || other.Email == email) {
			return true
		}
	}
	return false
}

func (s *MemoryUserStore) CountByIDs(_ context.Context, ids []bson.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	seen := make(map[bson.ObjectID]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.users[id]; ok && !seen[id] {
			seen[id] = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryUserStore) AddSubscription(_ context.Context, userID, eventID bson.ObjectID) error {
	return s.mutate(userID, func(u *models.User) {
		if !slices.Contains(u.Subscriptions, eventID) {
			u.Subscriptions = append(u.Subscriptions, eventID)
		}
	})
}

func (s *MemoryUserStore) RemoveSubscription(_ context.Context, userID, eventID bson.ObjectID) error {
	return s.mutate(userID, func(u *models.User) {
		u.Subscriptions = slices.DeleteFunc(u.Subscriptions, func(id bson.ObjectID) bool { return id == eventID })
	})
}

func (s *MemoryUserStore) mutate(id bson.ObjectID, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	cp := cloneUser(u)
	fn(cp)
	cp.UpdatedAt = time.Now().UTC()
	s.users[id] = *cp
	return nil
}

func (s *MemoryUserStore) find(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func cloneUser(u models.User) *models.User {
	u.Subscriptions = slices.Clone(u.Subscriptions)
	return &u
}

// MemoryTokenLedger mirrors the unique userId and tokenHash indexes.
type MemoryTokenLedger struct {
	mu     sync.Mutex
	byHash map[string]models.RefreshToken
}

func NewMemoryTokenLedger() *MemoryTokenLedger {
	return &MemoryTokenLedger{byHash: make(map[string]models.RefreshToken)}
}

func (l *MemoryTokenLedger) FindByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.byHash[HashToken(token)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rt, nil
}

func (l *MemoryTokenLedger) DeleteByUser(_ context.Context, userID bson.ObjectID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for hash, rt := range l.byHash {
		if rt.UserID == userID {
			delete(l.byHash, hash)
		}
	}
	return nil
}

func (l *MemoryTokenLedger) DeleteByToken(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byHash, HashToken(token))
	return nil
}

func (l *MemoryTokenLedger) Insert(_ context.Context, userID bson.ObjectID, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash := HashToken(token)
	if _, ok := l.byHash[hash]; ok {
		return nil, ErrDuplicate
	}
	for _, rt := range l.byHash {
		if rt.UserID == userID {
			return nil, ErrDuplicate
		}
	}

	rt := models.RefreshToken{
		ID:        bson.NewObjectID(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	l.byHash[hash] = rt
	return &rt, nil
}

// Len reports the number of stored tokens.
func (l *MemoryTokenLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byHash)
}

type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[bson.ObjectID]models.Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[bson.ObjectID]models.Event)}
}

func (s *MemoryEventStore) Create(_ context.Context, event *models.Event) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	event.ID = bson.NewObjectID()
	event.CreatedAt = now
	event.UpdatedAt = now
	normalizeEvent(event)
	s.events[event.ID] = *cloneEvent(*event)
	return event, nil
}

func (s *MemoryEventStore) FindByID(_ context.Context, id bson.ObjectID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEvent(e), nil
}

func (s *MemoryEventStore) List(_ context.Context, filter models.EventFilter, skip, limit int64) ([]models.Event, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nameRe *regexp.Regexp
	if filter.Name != "" {
		nameRe = regexp.MustCompile("(?i)" + regexp.QuoteMeta(filter.Name))
	}

	matched := make([]models.Event, 0)
	for _, e := range s.events {
		if matchesEvent(e, filter, nameRe) {
			matched = append(matched, *cloneEvent(e))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].ID.Hex() < matched[j].ID.Hex()
	})

	total := int64(len(matched))
	if skip < 0 || skip >= total {
		return []models.Event{}, total, nil
	}
	end := total
	if limit > 0 && limit < total-skip {
		end = skip + limit
	}
	return matched[skip:end], total, nil
}

func (s *MemoryEventStore) AddAdministrators(_ context.Context, eventID bson.ObjectID, adminIDs []bson.ObjectID) (*models.Event, error) {
	return s.mutate(eventID, nil, func(e *models.Event) {
		for _, id := range adminIDs {
			if !slices.Contains(e.Administrators, id) {
				e.Administrators = append(e.Administrators, id)
			}
		}
	})
}

func (s *MemoryEventStore) RemoveAdministrator(_ context.Context, eventID, adminID bson.ObjectID) (*models.Event, error) {
	return s.mutate(eventID, nil, func(e *models.Event) {
		e.Administrators = slices.DeleteFunc(e.Administrators, func(id bson.ObjectID) bool { return id == adminID })
	})
}

func (s *MemoryEventStore) AddApplicant(_ context.Context, eventID, userID bson.ObjectID) (*models.Event, error) {
	guard := func(e *models.Event) bool {
		return e.IsPublished && !e.HasApplicant(userID) && !e.Full()
	}
	return s.mutate(eventID, guard, func(e *models.Event) {
		e.Applicants = append(e.Applicants, userID)
	})
}

func (s *MemoryEventStore) RemoveApplicant(_ context.Context, eventID, userID bson.ObjectID) (*models.Event, error) {
	guard := func(e *models.Event) bool { return e.HasApplicant(userID) }
	return s.mutate(eventID, guard, func(e *models.Event) {
		e.Applicants = slices.DeleteFunc(e.Applicants, func(id bson.ObjectID) bool { return id == userID })
	})
}

func (s *MemoryEventStore) mutate(id bson.ObjectID, guard func(*models.Event) bool, fn func(*models.Event)) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneEvent(e)
	if guard != nil && !guard(cp) {
		return nil, ErrNotFound
	}
	fn(cp)
	cp.UpdatedAt = time.Now().UTC()
	s.events[id] = *cloneEvent(*cp)
	return cp, nil
}

func matchesEvent(e models.Event, f models.EventFilter, nameRe *regexp.Regexp) bool {
	switch {
	case f.PublishedOnly && !e.IsPublished:
		return false
	case nameRe != nil && !nameRe.MatchString(e.Name):
		return false
	case f.Creator != nil && e.Creator != *f.Creator:
		return false
	case f.Category != "" && e.Category != f.Category:
		return false
	case f.Place != "" && e.Place != f.Place:
		return false
	case f.Date != nil && !e.Date.Equal(*f.Date):
		return false
	case f.IsFree != nil && e.IsFree != *f.IsFree:
		return false
	case f.Price != nil && (e.Price == nil || *e.Price != *f.Price):
		return false
	}
	return true
}

func cloneEvent(e models.Event) *models.Event {
	e.Administrators = slices.Clone(e.Administrators)
	e.Applicants = slices.Clone(e.Applicants)
	e.Tags = slices.Clone(e.Tags)
	if e.Price != nil {
		p := *e.Price
		e.Price = &p
	}
	return &e
}
