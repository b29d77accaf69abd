// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"github.com/danielhkuo/pollgate/models"
)

// Ballot is a single Stage-1 choice presented to a poll type's validator.
type Ballot struct {
	Poll    *models.Poll
	Option  *models.Option
	VoterID string
}

// TypeBehavior is what a poll type contributes: ballot validation and
// result calculation. Unavailable types are known but cannot be created.
type TypeBehavior struct {
	Available bool
	Validate  func(Ballot) error
	Results   func(models.PollType, []models.OptionTally) models.Results
}

var pollTypes = map[models.PollType]TypeBehavior{
	models.PollTypeSimple: {
		Available: true,
		Validate:  validateSingleChoice,
		Results:   pluralityResults,
	},
	models.PollTypeRanked:    {},
	models.PollTypeApproval:  {},
	models.PollTypeQuadratic: {},
	models.PollTypeWeighted:  {},
}

// behaviorFor returns the behavior of an available poll type.
func behaviorFor(t models.PollType) (TypeBehavior, error) {
	b, ok := pollTypes[t]
	if !ok {
		return TypeBehavior{}, newError(ErrInvalid, "unknown poll type %q", t)
	}
	if !b.Available {
		return TypeBehavior{}, newError(ErrInvalid, "poll type %q is not available yet", t)
	}
	return b, nil
}

// AvailableTypes lists the poll types that can be created.
func AvailableTypes() []models.PollType {
	var types []models.PollType
	for _, t := range []models.PollType{
		models.PollTypeSimple,
		models.PollTypeRanked,
		models.PollTypeApproval,
		models.PollTypeQuadratic,
		models.PollTypeWeighted,
	} {
		if pollTypes[t].Available {
			types = append(types, t)
		}
	}
	return types
}

func validateSingleChoice(b Ballot) error {
	if b.Option == nil || b.Option.PollID != b.Poll.ID {
		return newError(ErrInvalid, "option does not belong to this poll")
	}
	return nil
}

// pluralityResults fills in percentages and picks the option with the most
// votes. On a tie the later option wins.
func pluralityResults(t models.PollType, tallies []models.OptionTally) models.Results {
	total := 0
	for _, o := range tallies {
		total += o.VoteCount
	}

	options := make([]models.OptionTally, len(tallies))
	for i, o := range tallies {
		if total > 0 {
			o.Percentage = float64(o.VoteCount) / float64(total) * 100
		}
		options[i] = o
	}

	res := models.Results{Type: t, TotalVotes: total, Options: options}
	if total > 0 {
		winner := options[0]
		for _, o := range options[1:] {
			if o.VoteCount >= winner.VoteCount {
				winner = o
			}
		}
		res.Winner = &winner
	}
	return res
}

// resultsFor tallies a poll with its type's rules. Types without their own
// results fall back to plurality.
func resultsFor(poll *models.Poll, tallies []models.OptionTally) models.Results {
	behavior, ok := pollTypes[poll.PollType]
	if !ok || behavior.Results == nil {
		behavior = pollTypes[models.PollTypeSimple]
	}
	return behavior.Results(poll.PollType, tallies)
}

// progress is the share of the vote threshold reached, capped at 100.
func progress(voters int, threshold *int) *float64 {
	if threshold == nil || *threshold <= 0 {
		return nil
	}
	p := min(100, float64(voters)/float64(*threshold)*100)
	return &p
}
