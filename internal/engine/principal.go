package engine

// Principal identifies the caller of an engine operation. The zero value is
// anonymous; lesson and attempt operations require an authenticated user.
type Principal struct {
	UserID        int64
	Authenticated bool
}

// User builds an authenticated principal for the given learner.
func User(id int64) Principal {
	return Principal{UserID: id, Authenticated: true}
}

// Anonymous builds the unauthenticated principal. Anonymous callers may browse
// the catalog but cannot start or submit attempts.
func Anonymous() Principal {
	return Principal{}
}

func (p Principal) requireUser() (int64, error) {
	if !p.Authenticated {
		return 0, ErrAuthenticationRequired
	}
	return p.UserID, nil
}
