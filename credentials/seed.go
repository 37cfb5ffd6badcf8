package credentials

import (
	"github.com/MrEthical07/goSession/password"
)

// DemoUsers returns the development accounts the demo server starts with,
// hashed with h:
//
//	john  / password123  USER
//	asraf / mypassword   USER
//	admin / adminpass    ADMIN, USER
func DemoUsers(h password.Hasher) ([]User, error) {
	if h == nil {
		h = password.Default()
	}
	seed := []struct {
		id, pw string
		roles  []string
	}{
		{"john", "password123", []string{"USER"}},
		{"asraf", "mypassword", []string{"USER"}},
		{"admin", "adminpass", []string{"ADMIN", "USER"}},
	}

	users := make([]User, 0, len(seed))
	for _, s := range seed {
		hash, err := h.Hash(s.pw)
		if err != nil {
			return nil, err
		}
		users = append(users, User{ID: s.id, PasswordHash: hash, Roles: s.roles})
	}
	return users, nil
}
