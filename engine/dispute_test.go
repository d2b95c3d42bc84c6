package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-ledger/engine"
	"escrow-ledger/events"
	"escrow-ledger/models"
)

func TestRaiseDispute(t *testing.T) {
	env := newTestEnv(t)
	id := env.submittedMilestone(t)

	_, err := env.eng.RaiseDispute("0xstranger", id, 0, "not delivered")
	assert.Equal(t, engine.KindAuthorization, engine.KindOf(err))

	_, err = env.eng.RaiseDispute(payer, id, 1, "not delivered")
	assert.Equal(t, engine.KindState, engine.KindOf(err)) // milestone 1 still pending

	disputeID, err := env.eng.RaiseDispute(payer, id, 0, "not delivered")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), disputeID)

	p, err := env.eng.GetProject(id)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusDisputed, p.Status)
	assert.Equal(t, models.MilestoneStatusDisputed, p.Milestones[0].Status)

	// disputing moved the milestone out of SUBMITTED, so a second
	// dispute on the same milestone is impossible
	_, err = env.eng.RaiseDispute(payee, id, 0, "counter claim")
	assert.Equal(t, engine.KindState, engine.KindOf(err))

	// approval is blocked while disputed
	err = env.eng.ApproveMilestone(payer, id, 0)
	assert.Equal(t, engine.KindState, engine.KindOf(err))
}

func TestRaiseDisputeAfterWindowFails(t *testing.T) {
	env := newTestEnv(t)
	id := env.submittedMilestone(t)

	env.advance(3*24*time.Hour + time.Second)
	_, err := env.eng.RaiseDispute(payer, id, 0, "too late")
	assert.Equal(t, engine.KindTimeout, engine.KindOf(err))
}

func TestRaiseDisputeAtWindowBoundarySucceeds(t *testing.T) {
	env := newTestEnv(t)
	id := env.submittedMilestone(t)

	env.advance(3 * 24 * time.Hour)
	_, err := env.eng.RaiseDispute(payee, id, 0, "on the line")
	require.NoError(t, err)
}

func TestVoteOnDispute(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.eng.AddAdmin(owner, admin2))
	id := env.submittedMilestone(t)
	disputeID, err := env.eng.RaiseDispute(payer, id, 0, "quality")
	require.NoError(t, err)

	err = env.eng.VoteOnDispute(payer, disputeID, 50)
	assert.Equal(t, engine.KindAuthorization, engine.KindOf(err))

	err = env.eng.VoteOnDispute(owner, disputeID, 101)
	assert.Equal(t, engine.KindValidation, engine.KindOf(err))

	err = env.eng.VoteOnDispute(owner, 99, 50)
	assert.Equal(t, engine.KindValidation, engine.KindOf(err))

	require.NoError(t, env.eng.VoteOnDispute(owner, disputeID, 60))

	err = env.eng.VoteOnDispute(owner, disputeID, 60)
	assert.Equal(t, engine.KindState, engine.KindOf(err))

	count, resolved, voters, percentages, err := env.eng.GetDisputeVotes(disputeID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, resolved)
	assert.Equal(t, []string{owner}, voters)
	assert.Equal(t, []uint64{60}, percentages)
}

// Quorum vote: {60, 40} averages to 50, the milestone amount is split
// evenly, and no platform fee is taken.
func TestQuorumResolvesDispute(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.eng.AddAdmin(owner, admin2))
	id := env.submittedMilestone(t)
	disputeID, err := env.eng.RaiseDispute(payer, id, 0, "quality")
	require.NoError(t, err)

	require.NoError(t, env.eng.VoteOnDispute(owner, disputeID, 60))
	require.NoError(t, env.eng.VoteOnDispute(admin2, disputeID, 40))

	// milestone amount 100 at 50%: payee 50, payer 50, zero fee
	assert.Equal(t, uint64(50), env.treasury.Total(payee))
	assert.Equal(t, uint64(50), env.treasury.Total(payer))
	assert.Equal(t, uint64(0), env.treasury.Total(owner))

	count, resolved, _, _, err := env.eng.GetDisputeVotes(disputeID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, resolved)

	p, err := env.eng.GetProject(id)
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusApproved, p.Milestones[0].Status)
	assert.Equal(t, models.ProjectStatusActive, p.Status)

	err = env.eng.VoteOnDispute(owner, disputeID, 10)
	assert.Equal(t, engine.KindState, engine.KindOf(err))

	assert.Contains(t, env.eventTypes(), events.TypeDisputeResolved)

	balance, err := env.eng.GetContractBalance()
	require.NoError(t, err)
	assert.Equal(t, uint64(200), balance) // milestone 1 still escrowed
}

// Resolution puts the project back to ACTIVE without re-checking
// completion. A single-milestone project resolved by quorum therefore
// stays ACTIVE forever with every milestone approved.
func TestResolveLastMilestoneLeavesProjectActive(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.eng.AddAdmin(owner, admin2))

	id, err := env.eng.CreateProject(payer, "one shot", "ref",
		[]string{"only"}, []uint64{100}, []int64{env.deadline()}, 100)
	require.NoError(t, err)
	require.NoError(t, env.eng.AcceptProject(payee, id))
	require.NoError(t, env.eng.SubmitMilestone(payee, id, 0, "ref:d"))

	disputeID, err := env.eng.RaiseDispute(payer, id, 0, "quality")
	require.NoError(t, err)
	require.NoError(t, env.eng.VoteOnDispute(owner, disputeID, 100))
	require.NoError(t, env.eng.VoteOnDispute(admin2, disputeID, 100))

	p, err := env.eng.GetProject(id)
	require.NoError(t, err)
	assert.True(t, p.AllMilestonesApproved())
	assert.Equal(t, models.ProjectStatusActive, p.Status)
	assert.Equal(t, uint64(100), env.treasury.Total(payee))
}

func TestDisputeVotesFollowRosterOrder(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.eng.AddAdmin(owner, admin2))
	id := env.submittedMilestone(t)
	disputeID, err := env.eng.RaiseDispute(payer, id, 0, "quality")
	require.NoError(t, err)

	require.NoError(t, env.eng.VoteOnDispute(owner, disputeID, 60))
	require.NoError(t, env.eng.VoteOnDispute(admin2, disputeID, 40))

	// removing a voter afterwards drops them from the enumeration but
	// not from the recorded vote count
	require.NoError(t, env.eng.RemoveAdmin(owner, admin2))
	count, resolved, voters, percentages, err := env.eng.GetDisputeVotes(disputeID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, resolved)
	assert.Equal(t, []string{owner}, voters)
	assert.Equal(t, []uint64{60}, percentages)
}

func TestDisputeWhilePausedIsRejected(t *testing.T) {
	env := newTestEnv(t)
	id := env.submittedMilestone(t)
	require.NoError(t, env.eng.Pause(owner))

	_, err := env.eng.RaiseDispute(payer, id, 0, "quality")
	assert.Equal(t, engine.KindUnavailable, engine.KindOf(err))
}
