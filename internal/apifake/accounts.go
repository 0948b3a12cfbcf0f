package apifake

import (
	"errors"
	"strings"
	"sync"

	"github.com/jrsteele09/go-blog-client/apimodel"
	"github.com/jrsteele09/go-blog-client/users"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields    = errors.New("all fields are required")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrUnknownAccount   = errors.New("unknown account")
	ErrInvalidPassword  = errors.New("invalid username or password")
	ErrReservedUsername = users.ErrReservedUsername
)

type account struct {
	identity     users.Identity
	passwordHash string
	profile      apimodel.UserProfile
}

type accounts struct {
	cost int

	lock   sync.RWMutex
	byName map[string]*account
	byID   map[int64]*account
	nextID int64
}

func newAccounts(cost int) *accounts {
	return &accounts{
		cost:   cost,
		byName: make(map[string]*account),
		byID:   make(map[int64]*account),
		nextID: 1,
	}
}

func hashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Register creates an account from a sign up request
func (a *accounts) Register(req apimodel.SignupRequest) (users.Identity, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" || strings.TrimSpace(req.Email) == "" ||
		strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return users.Identity{}, ErrMissingFields
	}
	if err := users.ValidateUsername(req.Username); err != nil {
		return users.Identity{}, err
	}

	hash, err := hashPassword(req.Password, a.cost)
	if err != nil {
		return users.Identity{}, err
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	if _, ok := a.byName[req.Username]; ok {
		return users.Identity{}, ErrUsernameTaken
	}
	id := a.nextID
	a.nextID++

	acc := &account{
		identity:     users.Identity{ID: id, Username: req.Username, Role: users.RoleUser},
		passwordHash: hash,
		profile: apimodel.UserProfile{
			ID:        id,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
		},
	}
	a.byName[req.Username] = acc
	a.byID[id] = acc
	return acc.identity, nil
}

// Authenticate checks username and password
func (a *accounts) Authenticate(username, password string) (users.Identity, error) {
	a.lock.RLock()
	acc, ok := a.byName[username]
	a.lock.RUnlock()
	if !ok || !checkPasswordHash(password, acc.passwordHash) {
		return users.Identity{}, ErrInvalidPassword
	}
	return acc.identity, nil
}

func (a *accounts) ByID(id int64) (*account, bool) {
	a.lock.RLock()
	defer a.lock.RUnlock()
	acc, ok := a.byID[id]
	return acc, ok
}

func (a *accounts) ByName(username string) (*account, bool) {
	a.lock.RLock()
	defer a.lock.RUnlock()
	acc, ok := a.byName[username]
	return acc, ok
}

// Rename changes the username of account id
func (a *accounts) Rename(id int64, username string) error {
	if err := users.ValidateUsername(username); err != nil {
		return err
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	acc, ok := a.byID[id]
	if !ok {
		return ErrUnknownAccount
	}
	if other, taken := a.byName[username]; taken && other != acc {
		return ErrUsernameTaken
	}
	delete(a.byName, acc.identity.Username)
	acc.identity.Username = username
	acc.profile.Username = username
	a.byName[username] = acc
	return nil
}
