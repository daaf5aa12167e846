package bundler

// stopWords is the fixed keyword-extraction stop list (80 entries). It is
// a committed constant, not tunable at runtime, pinned once rather than
// grown ad hoc from observed prompts.
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "again": {}, "all": {}, "am": {},
	"an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"because": {}, "been": {}, "before": {}, "being": {}, "below": {},
	"between": {}, "both": {}, "but": {}, "by": {}, "can": {}, "did": {},
	"do": {}, "does": {}, "doing": {}, "down": {}, "during": {}, "each": {},
	"few": {}, "for": {}, "from": {}, "further": {}, "had": {}, "has": {},
	"have": {}, "having": {}, "here": {}, "how": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "me": {}, "more": {}, "most": {}, "my": {},
	"nor": {}, "not": {}, "now": {}, "of": {}, "on": {},
	"only": {}, "or": {}, "other": {}, "our": {}, "out": {},
	"over": {}, "she": {}, "should": {}, "so": {},
	"some": {}, "such": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"those": {}, "through": {}, "to": {}, "under": {},
	"up": {}, "very": {},
}
