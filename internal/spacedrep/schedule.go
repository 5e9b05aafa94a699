package spacedrep

// Initial values for a word's first review.
const (
	InitialIntervalDays = 1
	DefaultEaseFactor   = 2.5
)

// MinEaseFactor is the floor for the ease factor. There is no ceiling.
const MinEaseFactor = 1.3

// MaxMasteryLevel is the highest mastery level. A word reaching it for the
// first time counts as learned.
const MaxMasteryLevel = 5

// Interval and ease adjustments per response bucket.
const (
	hardIntervalMultiplier = 1.2
	easyIntervalBonus      = 1.3

	againEasePenalty = 0.2
	hardEasePenalty  = 0.15
	easyEaseBonus    = 0.15
)

// recentWindow is how many prior responses are kept on a word to decide
// whether a "good" answer may raise mastery.
const recentWindow = 2

// overdueGraceFactor is the fraction of the current interval a word may be
// late before it is reported overdue rather than merely due.
const overdueGraceFactor = 0.5
