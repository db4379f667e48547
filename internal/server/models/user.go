// Package models defines server-side data records persisted in the database.
package models

import "time"

// User is an account record. ActivatedAt is set if and only if Activated is true.
type User struct {
	ID          int64
	UserName    string
	Nickname    string
	Email       string
	Password    string
	Activated   bool
	ActivatedAt *time.Time
}

// Snapshot returns an independent copy of u. Later changes to u do not
// affect the returned value.
func (u *User) Snapshot() User {
	c := *u
	if u.ActivatedAt != nil {
		t := *u.ActivatedAt
		c.ActivatedAt = &t
	}
	return c
}
