package fakeuserrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-ordering-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory user store. Records are copied in and out so
// callers never share state with the store.
type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	phoneIds map[string]string // phone number to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
		phoneIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, ok := ur.users[user.ID]; ok {
		return users.ErrDuplicateUser
	}
	if ur.clashes(user) {
		return users.ErrDuplicateUser
	}
	ur.put(user)
	return nil
}

func (ur *FakeUserRepo) Update(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	existing, ok := ur.users[user.ID]
	if !ok {
		return users.ErrUserNotFound
	}
	if ur.clashes(user) {
		return users.ErrDuplicateUser
	}
	delete(ur.emailIds, existing.Email)
	delete(ur.phoneIds, existing.PhoneNumber)
	ur.put(user)
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	delete(ur.emailIds, user.Email)
	delete(ur.phoneIds, user.PhoneNumber)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return copyUser(ur.users[id]), nil
}

func (ur *FakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if id, ok := ur.emailIds[identifier]; ok {
		return copyUser(ur.users[id]), nil
	}
	if id, ok := ur.phoneIds[identifier]; ok && identifier != "" {
		return copyUser(ur.users[id]), nil
	}
	return nil, users.ErrUserNotFound
}

func (ur *FakeUserRepo) List(_ context.Context, offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0, len(ur.users))
	for _, v := range ur.users {
		userList = append(userList, copyUser(v))
	}

	sort.Slice(userList, func(i, j int) bool {
		return userList[i].Email < userList[j].Email
	})

	if offset >= len(userList) {
		return []*users.User{}, nil
	}
	end := len(userList)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return userList[offset:end], nil
}

// clashes reports whether another user already owns user's email or phone.
func (ur *FakeUserRepo) clashes(user *users.User) bool {
	if id, ok := ur.emailIds[user.Email]; ok && id != user.ID {
		return true
	}
	if user.PhoneNumber == "" {
		return false
	}
	id, ok := ur.phoneIds[user.PhoneNumber]
	return ok && id != user.ID
}

func (ur *FakeUserRepo) put(user *users.User) {
	ur.users[user.ID] = copyUser(user)
	ur.emailIds[user.Email] = user.ID
	if user.PhoneNumber != "" {
		ur.phoneIds[user.PhoneNumber] = user.ID
	}
}

func copyUser(u *users.User) *users.User {
	c := *u
	return &c
}
