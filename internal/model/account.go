package model

import "time"

// Role is the authorization role carried by a registered account and by
// its session token.
type Role string

const (
    RoleUser  Role = "user"
    RoleAdmin Role = "admin"
)

// ParseRole accepts only the two known roles.
func ParseRole(s string) (Role, bool) {
    switch Role(s) {
    case RoleUser, RoleAdmin:
        return Role(s), true
    }
    return "", false
}

// AccountKind is the value of the accounts.kind discriminator column.
type AccountKind string

const (
    KindRegistered AccountKind = "registered"
    KindGuest      AccountKind = "guest"
)

// Account is either a *RegisteredAccount or a *GuestAccount.  Only the
// registered variant holds a credential, so only it can log in.
type Account interface {
    AccountID() uint64
    AccountEmail() string
    Kind() AccountKind
}

// RegisteredAccount is created by signup.
//
// Fields:
//  ID           – accounts.id
//  Email        – unique, lower-cased
//  PasswordHash – bcrypt hash
//  Role         – user or admin
//  Gender       – free-form profile field
//  IDNumber     – national id / passport number
type RegisteredAccount struct {
    ID           uint64
    Email        string
    PasswordHash string
    Role         Role
    Gender       string
    IDNumber     string
    CreatedAt    time.Time
}

func (a *RegisteredAccount) AccountID() uint64    { return a.ID }
func (a *RegisteredAccount) AccountEmail() string { return a.Email }
func (a *RegisteredAccount) Kind() AccountKind    { return KindRegistered }

// GuestAccount is created implicitly by the first booking for an unseen
// email.  It has no credential and no role.
type GuestAccount struct {
    ID        uint64
    Email     string
    Name      string
    Phone     string
    CreatedAt time.Time
}

func (a *GuestAccount) AccountID() uint64    { return a.ID }
func (a *GuestAccount) AccountEmail() string { return a.Email }
func (a *GuestAccount) Kind() AccountKind    { return KindGuest }
