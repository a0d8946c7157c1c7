package signals

import (
	"regexp"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// biasPattern is the closed detection table for one bias type. Keeping the
// table as typed data keyed by models.BiasType means a missing entry is a
// compile-visible gap rather than a silent string-lookup miss.
type biasPattern struct {
	Type           models.BiasType
	Keywords       []string
	Phrases        []*regexp.Regexp
	Recommendation string
}

var biasPatterns = []biasPattern{
	{
		Type:     models.BiasConfirmation,
		Keywords: []string{"obviously", "clearly", "everyone knows", "as expected", "proves"},
		Phrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)this (just )?confirms`),
			regexp.MustCompile(`(?i)exactly what i (said|thought|predicted)`),
		},
		Recommendation: "Invite someone to argue the opposite case before settling.",
	},
	{
		Type:     models.BiasAnchoring,
		Keywords: []string{"original estimate", "first number", "as initially", "stick with"},
		Phrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)we (already )?said (it would|it was)`),
			regexp.MustCompile(`(?i)going back to the (first|original)`),
		},
		Recommendation: "Re-estimate from scratch without referencing the first figure.",
	},
	{
		Type:     models.BiasGroupthink,
		Keywords: []string{"we all agree", "everyone agrees", "no objections", "unanimous", "consensus"},
		Phrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)let'?s not (rock the boat|argue)`),
			regexp.MustCompile(`(?i)(nobody|no one) disagrees`),
		},
		Recommendation: "Assign a devil's advocate for the next decision point.",
	},
	{
		Type:     models.BiasSunkCost,
		Keywords: []string{"already invested", "come this far", "wasted", "too late to change"},
		Phrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)we('ve| have) (already )?(spent|put in|invested)`),
			regexp.MustCompile(`(?i)can'?t (stop|quit|abandon) now`),
		},
		Recommendation: "Evaluate the decision on forward cost and value only.",
	},
	{
		Type:     models.BiasAvailability,
		Keywords: []string{"last time", "remember when", "just like", "recently saw"},
		Phrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)this (reminds me|is exactly like)`),
			regexp.MustCompile(`(?i)happened (before|last (week|month|sprint))`),
		},
		Recommendation: "Check whether the recalled case is actually representative.",
	},
	{
		Type:     models.BiasAuthority,
		Keywords: []string{"the boss said", "management wants", "ceo", "expert says", "per leadership"},
		Phrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(because|since) [a-z]+ (said|wants|decided) so`),
			regexp.MustCompile(`(?i)who are we to (question|argue)`),
		},
		Recommendation: "Weigh the argument on its merits, independent of its source.",
	},
	{
		Type:     models.BiasOverconfidence,
		Keywords: []string{"definitely", "guaranteed", "no doubt", "certain", "100%", "can't fail"},
		Phrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)there'?s no way (this|it) (fails|breaks|goes wrong)`),
			regexp.MustCompile(`(?i)absolutely (sure|certain)`),
		},
		Recommendation: "List the top three ways this could fail before committing.",
	},
	{
		Type:     models.BiasRecency,
		Keywords: []string{"latest", "newest", "just released", "this week's"},
		Phrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(everyone|everybody) is (using|switching to)`),
			regexp.MustCompile(`(?i)the new (hot|trending)`),
		},
		Recommendation: "Compare against the option you would have picked a quarter ago.",
	},
	{
		Type:     models.BiasFraming,
		Keywords: []string{"only option", "either we", "no choice", "worst case"},
		Phrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)it'?s (either|between) .+ or`),
			regexp.MustCompile(`(?i)(the )?only (way|option|choice)`),
		},
		Recommendation: "Reframe the question; ask for a third option explicitly.",
	},
}

// Cognitive pattern tags attached to SignalRecords. The aggregator counts
// distinct tags for the diversity index, so tags stay short and canonical.
const (
	TagQuestioning  = "questioning"
	TagAnalysis     = "analysis"
	TagDecision     = "decision"
	TagAgreement    = "agreement"
	TagDisagreement = "disagreement"
	TagStructure    = "structure"
	TagUncertainty  = "uncertainty"
	TagConclusion   = "conclusion"
)

var (
	agreementRe    = regexp.MustCompile(`(?i)\b(agree|agreed|yes|yep|yeah|sounds good|lgtm|sure|ok|okay|exactly|makes sense)\b|\+1`)
	disagreementRe = regexp.MustCompile(`(?i)\b(disagree|no|nope|but|however|not sure|don'?t think|doubt|object|push back)\b`)

	positiveWords = []string{"great", "good", "love", "excellent", "nice", "happy", "awesome", "perfect", "excited", "works", "thanks", "helpful", "clear"}
	negativeWords = []string{"bad", "hate", "terrible", "awful", "frustrated", "angry", "broken", "worried", "confused", "blocked", "stuck", "problem", "fail"}

	uncertaintyWords = []string{"maybe", "perhaps", "possibly", "might", "unsure", "not sure", "unclear"}

	conclusionMarkers = []string{"in conclusion", "to summarize", "therefore", "so in short", "bottom line", "in summary"}
	argumentWords     = []string{"because", "therefore", "however", "thus", "hence", "since", "consequently"}
	decisionWords     = []string{"decide", "decision", "we will", "let's go with", "final", "approved", "choose", "commit to"}

	listItemRe      = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+`)
	canonicalAgrees = regexp.MustCompile(`(?i)^(ok|okay|yes|yep|yeah|sure|agreed?|sounds good|lgtm|\+1|makes sense|will do|done|thanks?|thank you)[\s!.]*$`)
)
