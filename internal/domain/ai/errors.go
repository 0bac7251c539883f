package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error
// (HTTP 429 or similar). Kept as a sentinel so callers can special-case it
// (e.g. HTTP 429 passthrough) without the adapter ever raising.
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrUnavailable is the general AI_UNAVAILABLE condition: transport, auth,
// or parse-precondition failure. Stages match on this to pick their
// deterministic fallback path.
var ErrUnavailable = errors.New("ai collaborator unavailable")
