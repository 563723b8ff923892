package core

import "context"

// ContextEngine classifies raw text into an emotional and activity profile.
// The real implementation lives outside this daemon; creation endpoints call
// it once per item and persist the result alongside the item.
type ContextEngine interface {
	Analyze(ctx context.Context, text string) (EmotionProfile, ActivitySnapshot, error)
}

// ToneAdapter restyles a draft message to match a user's tone profile.
// The scheduler calls it for reminder deliveries only; nudges and capsule
// reveals go out as composed.
type ToneAdapter interface {
	Adapt(ctx context.Context, userID UserID, draft string) (string, error)
}

// NeutralContext is the fallback context engine used when no classifier is
// wired in. It reports a neutral reading so item creation never blocks.
type NeutralContext struct{}

func (NeutralContext) Analyze(ctx context.Context, text string) (EmotionProfile, ActivitySnapshot, error) {
	return EmotionProfile{Primary: "neutral", Intensity: 0.5, Confidence: 0.0},
		ActivitySnapshot{Primary: "unknown"}, nil
}

// PlainTone is the fallback tone adapter: it returns the draft unchanged.
type PlainTone struct{}

func (PlainTone) Adapt(ctx context.Context, userID UserID, draft string) (string, error) {
	return draft, nil
}
