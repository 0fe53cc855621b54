package core

import (
	"context"
	"errors"
	"fmt"
)

// Confidence grades how a resolved card was found.
type Confidence int

const (
	ConfidenceHigh Confidence = iota + 1 // exact marketplace id match
	ConfidenceLow                        // first hit of the fallback search
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// OutcomeKind is the top-level classification of a resolution.
type OutcomeKind int

const (
	OutcomeResolved OutcomeKind = iota + 1
	OutcomeUnmatched
	OutcomeFatal
)

// UnmatchedReason says why no card was found.
type UnmatchedReason int

const (
	ReasonNone UnmatchedReason = iota
	// NoFallbackAttempted: id unknown and the row has only part of the text
	// the structured search needs.
	NoFallbackAttempted
	// FallbackNotFound: id unknown and the structured search found nothing.
	FallbackNotFound
	// ServiceUnknownID: id unknown and the row carries no descriptive text.
	ServiceUnknownID
)

func (r UnmatchedReason) String() string {
	switch r {
	case NoFallbackAttempted:
		return "no_fallback_attempted"
	case FallbackNotFound:
		return "fallback_not_found"
	case ServiceUnknownID:
		return "service_unknown_id"
	default:
		return "none"
	}
}

// Stage names the lookup step a service error came from.
type Stage string

const (
	StagePrimary  Stage = "primary"
	StageFallback Stage = "fallback"
)

// Outcome is the result of resolving one NormalizedQuery.
type Outcome struct {
	Kind       OutcomeKind
	Card       CanonicalCard
	Confidence Confidence
	Reason     UnmatchedReason
	Err        error
}

// Missing returns the diagnostic the outcome calls for, if any.
// Fallback misses are reported only for single-card rows; other rows are
// dropped without a diagnostic.
func (o Outcome) Missing(q NormalizedQuery) (MissingEntry, bool) {
	switch {
	case o.Kind == OutcomeResolved && o.Confidence == ConfidenceLow:
		return MissingEntry{ID: q.MarketplaceID, Name: o.Card.Name, URI: o.Card.ScryfallURI}, true
	case o.Kind != OutcomeUnmatched:
		return MissingEntry{}, false
	case o.Reason == FallbackNotFound:
		if q.Category != SingleCardCategory {
			return MissingEntry{}, false
		}
		return MissingEntry{ID: q.MarketplaceID, Name: q.ArticleText, Expansion: q.ExpansionCode}, true
	default:
		return MissingEntry{ID: q.MarketplaceID, Name: UnknownIDMessage}, true
	}
}

// ServiceError is a non-not-found failure from the card service. It aborts
// the batch.
type ServiceError struct {
	Row   int
	ID    string
	Stage Stage
	Err   error
}

func (e *ServiceError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("card lookup: %v", e.Err)
	}
	return fmt.Sprintf("row %d (id %q) %s lookup: %v", e.Row+1, e.ID, e.Stage, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Resolver runs the primary lookup and, when needed, the fallback search for
// one query.
type Resolver struct {
	source CardSource
}

// NewResolver creates a Resolver backed by source.
func NewResolver(source CardSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve classifies q against the card service.
func (r *Resolver) Resolve(ctx context.Context, q NormalizedQuery) Outcome {
	card, err := r.primary(ctx, q.MarketplaceID)
	if err == nil {
		return Outcome{Kind: OutcomeResolved, Card: card, Confidence: ConfidenceHigh}
	}
	if !errors.Is(err, ErrNotFound) {
		return Outcome{Kind: OutcomeFatal, Err: stageError(StagePrimary, err)}
	}

	switch {
	case q.FallbackEligible:
	case q.Described:
		return Outcome{Kind: OutcomeUnmatched, Reason: NoFallbackAttempted}
	default:
		return Outcome{Kind: OutcomeUnmatched, Reason: ServiceUnknownID}
	}

	cards, err := r.source.Search(ctx, q.SearchQuery())
	switch {
	case err == nil && len(cards) > 0:
		return Outcome{Kind: OutcomeResolved, Card: cards[0], Confidence: ConfidenceLow}
	case err == nil, errors.Is(err, ErrNotFound):
		return Outcome{Kind: OutcomeUnmatched, Reason: FallbackNotFound}
	default:
		return Outcome{Kind: OutcomeFatal, Err: stageError(StageFallback, err)}
	}
}

// primary looks a card up by marketplace id. A blank id cannot match
// anything, so it is treated as not found without a request.
func (r *Resolver) primary(ctx context.Context, id string) (CanonicalCard, error) {
	if id == "" {
		return CanonicalCard{}, ErrNotFound
	}
	return r.source.LookupByMarketplaceID(ctx, id)
}

type stagedError struct {
	stage Stage
	err   error
}

func (e *stagedError) Error() string { return e.err.Error() }
func (e *stagedError) Unwrap() error { return e.err }

func stageError(stage Stage, err error) error {
	return &stagedError{stage: stage, err: err}
}

// stageOf recovers the lookup stage recorded by stageError.
func stageOf(err error) Stage {
	var se *stagedError
	if errors.As(err, &se) {
		return se.stage
	}
	return StagePrimary
}
