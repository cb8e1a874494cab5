package types

// LoginResult is the outcome of a UserReq login attempt. Created once per
// connection attempt and discarded after dispatch.
type LoginResult struct {
	Success bool
	// Status is the raw UserStat value, kept as a diagnostic on failure.
	Status string
}
