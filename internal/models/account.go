package models

import "time"

// AccountStatus classifies a stored account's credential state.
type AccountStatus string

const (
	// StatusValid means the stored refresh token worked on last use.
	StatusValid AccountStatus = "valid"
	// StatusExpired means the access token lapsed but a refresh may still succeed.
	StatusExpired AccountStatus = "expired"
	// StatusInvalid means the credential was permanently rejected.
	StatusInvalid AccountStatus = "invalid"
)

// Usable reports whether the account can be used for triggering. Expired
// accounts count: a refresh attempt is cheap and usually succeeds.
func (s AccountStatus) Usable() bool {
	return s == StatusValid || s == StatusExpired
}

// Account is one entry in the local account directory.
type Account struct {
	Email     string        `json:"email"`
	Status    AccountStatus `json:"status"`
	ProjectID string        `json:"projectId,omitempty"`
	Tier      string        `json:"tier,omitempty"`
	AddedAt   time.Time     `json:"addedAt,omitempty"`
}

// AccountSlice is a slice of accounts with lookup helpers.
type AccountSlice []Account

// FindByEmail returns the account with the given email.
func (as AccountSlice) FindByEmail(email string) (*Account, bool) {
	for i := range as {
		if as[i].Email == email {
			return &as[i], true
		}
	}
	return nil, false
}

// FilterUsable returns accounts whose status permits triggering, preserving
// directory order.
func (as AccountSlice) FilterUsable() AccountSlice {
	var result AccountSlice
	for _, a := range as {
		if a.Status.Usable() {
			result = append(result, a)
		}
	}
	return result
}

// Emails projects the slice to its account identifiers.
func (as AccountSlice) Emails() []string {
	emails := make([]string, 0, len(as))
	for _, a := range as {
		emails = append(emails, a.Email)
	}
	return emails
}
