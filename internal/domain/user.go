package domain

// Plan names a subscription plan as reported by the backend.
type Plan struct {
	Name string `json:"name"`
}

// Subscription is one entry of a user's subscription list.
type Subscription struct {
	Plan Plan `json:"plan"`
}

// User is the verified identity projected into the session store.
type User struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Role          Role           `json:"role"`
	Subscriptions []Subscription `json:"subscriptions"`
}

// Clone returns a deep copy so callers never share the subscriptions slice.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Subscriptions != nil {
		out.Subscriptions = make([]Subscription, len(u.Subscriptions))
		copy(out.Subscriptions, u.Subscriptions)
	}
	return &out
}
