package app

import "github.com/google/uuid"

// randomSecret signs sessions for a single process lifetime.
func randomSecret() string {
	return uuid.NewString() + uuid.NewString()
}
