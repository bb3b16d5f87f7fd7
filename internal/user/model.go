package user

import "time"

// Roles carried in access tokens. Clients post jobs; workers bid on them.
const (
	RoleClient = "client"
	RoleWorker = "worker"
)

// User is the read-only view of an account. Accounts are created by the
// identity service; this API only reads them to populate responses.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email,omitempty" bson:"email"`
	Role      string    `json:"role" bson:"role"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Summary is the subset of a user embedded in populated job and bid responses.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// Summarize returns the embedded form of u.
func (u User) Summarize() Summary {
	return Summary{ID: u.ID, Name: u.Name, Role: u.Role}
}

// ValidRole reports whether role is one this service understands.
func ValidRole(role string) bool {
	return role == RoleClient || role == RoleWorker
}
