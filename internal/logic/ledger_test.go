package logic

import (
	"testing"
	"time"

	"github.com/Hylozoic/hylo-sub001/internal/apperr"
	"github.com/Hylozoic/hylo-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// votingRound 建好一个投票期轮次和一名持有满额预算的投票者
func votingRound(t *testing.T, env *testEnv, totalTokens int) (*model.FundingRound, int64) {
	t.Helper()
	now := env.clock.Now()
	round := env.createRound(t, &model.FundingRound{
		Phase:              model.PhaseVoting,
		TotalTokens:        totalTokens,
		PublishedAt:        timePtr(now.Add(-4 * time.Hour)),
		SubmissionsOpenAt:  timePtr(now.Add(-3 * time.Hour)),
		SubmissionsCloseAt: timePtr(now.Add(-2 * time.Hour)),
		VotingOpensAt:      timePtr(now.Add(-time.Hour)),
	})
	voterId := env.addMember(t, 10, model.RoleMember)
	env.addParticipant(t, round.Id, voterId, totalTokens)
	return round, voterId
}

func TestAllocateTracksBudget(t *testing.T) {
	env := newTestEnv(t)
	round, voterId := votingRound(t, env, 100)
	authorId := env.addMember(t, 11, model.RoleMember)
	postA := env.addSubmission(t, round.Id, authorId)
	postB := env.addSubmission(t, round.Id, authorId)

	result, err := env.logic.Allocate(voterId, postA.Id, 80)
	require.NoError(t, err)
	assert.Equal(t, 80, result.Allocation.Tokens)
	assert.Equal(t, 20, result.TokensRemaining)

	// 余额只剩 20，再分配 30 超出预算
	_, err = env.logic.Allocate(voterId, postB.Id, 30)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBudget, apperr.KindOf(err))
	assert.EqualError(t, err, "Not enough tokens remaining")

	// 把 A 的分配从 80 降到 30，差额退回余额
	result, err = env.logic.Allocate(voterId, postA.Id, 30)
	require.NoError(t, err)
	assert.Equal(t, 70, result.TokensRemaining)

	// 现在 30 放得下了
	result, err = env.logic.Allocate(voterId, postB.Id, 30)
	require.NoError(t, err)
	assert.Equal(t, 40, result.TokensRemaining)
}

func TestAllocateZeroKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	round, voterId := votingRound(t, env, 100)
	authorId := env.addMember(t, 11, model.RoleMember)
	post := env.addSubmission(t, round.Id, authorId)

	_, err := env.logic.Allocate(voterId, post.Id, 40)
	require.NoError(t, err)

	result, err := env.logic.Allocate(voterId, post.Id, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, result.TokensRemaining)

	// 清零后记录保留
	var count int64
	require.NoError(t, env.db.Model(&model.TokenAllocation{}).
		Where("post_id = ? AND user_id = ?", post.Id, voterId).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAllocateSameTargetIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	round, voterId := votingRound(t, env, 100)
	authorId := env.addMember(t, 11, model.RoleMember)
	post := env.addSubmission(t, round.Id, authorId)

	_, err := env.logic.Allocate(voterId, post.Id, 60)
	require.NoError(t, err)
	result, err := env.logic.Allocate(voterId, post.Id, 60)
	require.NoError(t, err)
	assert.Equal(t, 40, result.TokensRemaining)
}

func TestAllocateRejectsNegativeTokens(t *testing.T) {
	env := newTestEnv(t)
	round, voterId := votingRound(t, env, 100)
	post := env.addSubmission(t, round.Id, env.addMember(t, 11, model.RoleMember))

	_, err := env.logic.Allocate(voterId, post.Id, -1)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.EqualError(t, err, "tokens must be non-negative")
}

func TestAllocateRequiresSubmissionPost(t *testing.T) {
	env := newTestEnv(t)
	_, voterId := votingRound(t, env, 100)

	discussion := &model.Post{Type: model.PostTypeDiscussion, CreatorId: 99}
	require.NoError(t, env.db.Create(discussion).Error)

	_, err := env.logic.Allocate(voterId, discussion.Id, 10)
	require.Error(t, err)
	assert.EqualError(t, err, "Post must be a submission")

	// 提交物类型正确但没挂到任何轮次
	orphan := &model.Post{Type: model.PostTypeSubmission, CreatorId: 99}
	require.NoError(t, env.db.Create(orphan).Error)

	_, err = env.logic.Allocate(voterId, orphan.Id, 10)
	require.Error(t, err)
	assert.EqualError(t, err, "Post is not part of a funding round")

	_, err = env.logic.Allocate(voterId, 424242, 10)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAllocateRequiresParticipation(t *testing.T) {
	env := newTestEnv(t)
	round, _ := votingRound(t, env, 100)
	post := env.addSubmission(t, round.Id, env.addMember(t, 11, model.RoleMember))

	outsiderId := env.addMember(t, 12, model.RoleMember)
	_, err := env.logic.Allocate(outsiderId, post.Id, 10)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	assert.EqualError(t, err, "You must be participating in this round to allocate tokens")
}

func TestAllocateRequiresVotingPhase(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	round := env.createRound(t, &model.FundingRound{
		Phase:              model.PhaseDiscussion,
		TotalTokens:        100,
		PublishedAt:        timePtr(now.Add(-3 * time.Hour)),
		SubmissionsOpenAt:  timePtr(now.Add(-2 * time.Hour)),
		SubmissionsCloseAt: timePtr(now.Add(-time.Hour)),
	})
	voterId := env.addMember(t, 10, model.RoleMember)
	env.addParticipant(t, round.Id, voterId, 0)
	post := env.addSubmission(t, round.Id, env.addMember(t, 11, model.RoleMember))

	_, err := env.logic.Allocate(voterId, post.Id, 10)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPhase, apperr.KindOf(err))
	assert.EqualError(t, err, "Voting has not started yet")
}

func TestAllocateSelfVotePolicy(t *testing.T) {
	env := newTestEnv(t)
	round, voterId := votingRound(t, env, 100)
	ownPost := env.addSubmission(t, round.Id, voterId)

	_, err := env.logic.Allocate(voterId, ownPost.Id, 10)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	require.NoError(t, env.db.Model(round).Update("allow_self_voting", true).Error)

	result, err := env.logic.Allocate(voterId, ownPost.Id, 10)
	require.NoError(t, err)
	assert.Equal(t, 90, result.TokensRemaining)
}

func TestAllocateRespectsVoterRoles(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	round := env.createRound(t, &model.FundingRound{
		Phase:              model.PhaseVoting,
		TotalTokens:        100,
		VoterRoles:         []byte(`["coordinator"]`),
		PublishedAt:        timePtr(now.Add(-4 * time.Hour)),
		SubmissionsOpenAt:  timePtr(now.Add(-3 * time.Hour)),
		SubmissionsCloseAt: timePtr(now.Add(-2 * time.Hour)),
		VotingOpensAt:      timePtr(now.Add(-time.Hour)),
	})
	memberId := env.addMember(t, 10, model.RoleMember)
	env.addParticipant(t, round.Id, memberId, 100)
	post := env.addSubmission(t, round.Id, env.addMember(t, 11, model.RoleMember))

	_, err := env.logic.Allocate(memberId, post.Id, 10)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	assert.EqualError(t, err, "You are not eligible to vote in this round")
}
