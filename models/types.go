// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Poll status values (derived, never stored)
const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusDeleted = "deleted"
)

// ActionStatus is the stage of an action initiative's approval workflow.
// It only ever moves forward: pending -> stage2_voting -> {stage2_approved, action_rejected}.
type ActionStatus string

const (
	ActionPending        ActionStatus = "pending"
	ActionStage2Voting   ActionStatus = "stage2_voting"
	ActionStage2Approved ActionStatus = "stage2_approved"
	ActionRejected       ActionStatus = "action_rejected"
)

// Terminal reports whether no further transition is possible.
func (s ActionStatus) Terminal() bool {
	return s == ActionStage2Approved || s == ActionRejected
}

// Approval is a Stage-2 ballot.
type Approval string

const (
	ApprovalApprove Approval = "approve"
	ApprovalReject  Approval = "reject"
)

func (a Approval) Valid() bool {
	return a == ApprovalApprove || a == ApprovalReject
}

// PollType tags the voting method of a poll
type PollType string

const (
	PollTypeSimple    PollType = "simple"
	PollTypeRanked    PollType = "ranked"
	PollTypeApproval  PollType = "approval"
	PollTypeQuadratic PollType = "quadratic"
	PollTypeWeighted  PollType = "weighted"
)

// Sort orders for the active polls list
const (
	SortPopular = "popular"
	SortRecent  = "recent"
	SortActive  = "active"
)

// Request types

type CreatePollRequest struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Options            []string   `json:"options"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	VoteThreshold      *int       `json:"vote_threshold,omitempty"`
	Category           string     `json:"category"`
	PollType           PollType   `json:"poll_type"`
	IsActionInitiative bool       `json:"is_action_initiative"`
	ActionPlan         *string    `json:"action_plan,omitempty"`
	ActionDeadline     *time.Time `json:"action_deadline,omitempty"`
}

type CastVoteRequest struct {
	OptionID string `json:"option_id"`
}

type Stage2VoteRequest struct {
	Approval Approval `json:"approval"`
}

// Response types

type CreatePollResponse struct {
	PollID   string `json:"poll_id"`
	AdminKey string `json:"admin_key"`
}

type CastVoteResponse struct {
	VoteID  string `json:"vote_id"`
	Message string `json:"message"`
}

type Stage2VoteResponse struct {
	ActionStatus ActionStatus `json:"action_status"`
	Finalized    bool         `json:"finalized"`
	Message      string       `json:"message"`
}

type ActivePollsResponse struct {
	Polls []PollSummary `json:"polls"`
	Sort  string        `json:"sort"`
}

type ActiveInitiativesResponse struct {
	Initiatives []InitiativeSummary `json:"initiatives"`
	Message     string              `json:"message,omitempty"`
}

// Domain types

type Poll struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	CreatedBy          string       `json:"created_by"`
	CreatedAt          time.Time    `json:"created_at"`
	EndDate            time.Time    `json:"end_date"`
	IsActive           bool         `json:"is_active"`
	IsDeleted          bool         `json:"is_deleted"`
	VoteThreshold      *int         `json:"vote_threshold,omitempty"`
	IsApproved         bool         `json:"is_approved"`
	ApprovedAt         *time.Time   `json:"approved_at,omitempty"`
	Category           string       `json:"category"`
	PollType           PollType     `json:"poll_type"`
	IsActionInitiative bool         `json:"is_action_initiative"`
	ActionPlan         *string      `json:"action_plan,omitempty"`
	ActionDeadline     *time.Time   `json:"action_deadline,omitempty"`
	ActionStatus       ActionStatus `json:"action_status"`
	Stage2Deadline     *time.Time   `json:"stage2_deadline,omitempty"`
}

// Status derives active/expired/deleted as of now.
func (p *Poll) Status(now time.Time) string {
	if !p.IsActive || p.IsDeleted {
		return StatusDeleted
	}
	if p.Expired(now) {
		return StatusExpired
	}
	return StatusActive
}

// Expired reports whether the poll's end date has been reached.
func (p *Poll) Expired(now time.Time) bool {
	return !now.Before(p.EndDate)
}

// Open reports whether the poll accepts Stage-1 votes.
func (p *Poll) Open(now time.Time) bool {
	return p.Status(now) == StatusActive
}

type Option struct {
	ID       string `json:"id"`
	PollID   string `json:"poll_id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

type Vote struct {
	ID       string    `json:"id"`
	UserID   string    `json:"-"` // Never expose in JSON
	PollID   string    `json:"poll_id"`
	OptionID string    `json:"option_id"`
	VotedAt  time.Time `json:"voted_at"`
}

type Stage2Vote struct {
	UserID   string    `json:"-"` // Never expose in JSON
	PollID   string    `json:"poll_id"`
	Approval Approval  `json:"approval"`
	VotedAt  time.Time `json:"voted_at"`
}

// Tally types

type OptionTally struct {
	Option
	VoteCount  int     `json:"vote_count"`
	Percentage float64 `json:"percentage"`
}

type Results struct {
	Type       PollType      `json:"type"`
	TotalVotes int           `json:"total_votes"`
	Options    []OptionTally `json:"options"`
	Winner     *OptionTally  `json:"winner,omitempty"`
}

type Stage2Tally struct {
	Approve int `json:"approve"`
	Reject  int `json:"reject"`
}

func (t Stage2Tally) Total() int {
	return t.Approve + t.Reject
}

// Display types

type Stage2Display struct {
	Deadline      *time.Time  `json:"deadline,omitempty"`
	Expired       bool        `json:"expired"`
	Eligible      bool        `json:"eligible"`
	UserVote      *Stage2Vote `json:"user_vote,omitempty"`
	Approve       int         `json:"approve"`
	Reject        int         `json:"reject"`
	TotalVotes    int         `json:"total_votes"`
	Stage1Voters  int         `json:"stage1_voters"`
	QuorumNeeded  int         `json:"quorum_needed"`
	QuorumReached bool        `json:"quorum_reached"`
}

type PollDisplay struct {
	Poll          Poll           `json:"poll"`
	Status        string         `json:"status"`
	IsOpen        bool           `json:"is_open"`
	Options       []OptionTally  `json:"options"`
	Results       Results        `json:"results"`
	HasVoted      bool           `json:"has_voted"`
	UserVote      *Vote          `json:"user_vote,omitempty"`
	CanChangeVote bool           `json:"can_change_vote"`
	Progress      *float64       `json:"progress_percentage,omitempty"`
	Stage2        *Stage2Display `json:"stage2,omitempty"`
	AssembledAt   time.Time      `json:"assembled_at"`
}

type PollSummary struct {
	Poll
	VoteCount int      `json:"vote_count"`
	Progress  *float64 `json:"progress_percentage,omitempty"`
}

// InitiativeSummary is an action initiative as listed for one viewer:
// tallies, plus the viewer's own Stage-1 and Stage-2 votes.
type InitiativeSummary struct {
	PollSummary
	Options        []OptionTally `json:"options"`
	HasVoted       bool          `json:"has_voted"`
	UserVote       *Vote         `json:"user_vote,omitempty"`
	HasVotedStage2 bool          `json:"has_voted_stage2"`
	Stage2Vote     *Stage2Vote   `json:"stage2_vote,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
