package domain

// GuestUserID identifies submissions made without a token.
const GuestUserID int64 = 0

type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email,omitempty"`
}

func GuestUser() *User {
	return &User{ID: GuestUserID}
}

func (u *User) IsGuest() bool {
	return u == nil || u.ID == GuestUserID
}
