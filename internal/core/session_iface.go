package core

// ConnectionID identifies one live transport session. It is opaque and never
// reused while the session is in flight.
type ConnectionID string
