package shared

import "time"

// Clock supplies the current time to guard functions. Transitions that
// compare against "now" (expense commit, allocator prefixes) take a Clock
// instead of reading the ambient clock so tests can pin time.
type Clock func() time.Time

// SystemClock reads the real time in UTC.
func SystemClock() time.Time { return time.Now().UTC() }
