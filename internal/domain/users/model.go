package users

import "time"

// User es la cuenta registrada en el servicio de auth.
type User struct {
	ID          string
	Email       string
	DisplayName string

	PasswordHash []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}
