package logic

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Hylozoic/hylo-sub001/internal/apperr"
	"github.com/Hylozoic/hylo-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoundValidation(t *testing.T) {
	env := newTestEnv(t)
	coordinatorId := env.addMember(t, 40, model.RoleCoordinator)

	err := env.logic.CreateRound(coordinatorId, &model.FundingRound{GroupId: env.group.Id})
	require.Error(t, err)
	assert.EqualError(t, err, "title is required")

	err = env.logic.CreateRound(coordinatorId, &model.FundingRound{Title: "Spring Grants"})
	require.Error(t, err)
	assert.EqualError(t, err, "groupId is required")

	err = env.logic.CreateRound(coordinatorId, &model.FundingRound{Title: "Spring Grants", GroupId: 9999})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.EqualError(t, err, "Invalid group")

	err = env.logic.CreateRound(coordinatorId, &model.FundingRound{
		Title:        "Spring Grants",
		GroupId:      env.group.Id,
		VotingMethod: "quadratic",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateRoundRequiresManagePermission(t *testing.T) {
	env := newTestEnv(t)
	memberId := env.addMember(t, 41, model.RoleMember)

	err := env.logic.CreateRound(memberId, &model.FundingRound{
		Title:   "Spring Grants",
		GroupId: env.group.Id,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	assert.EqualError(t, err, "You do not have permission to create funding rounds")
}

func TestCreateRoundStartsAsDraft(t *testing.T) {
	env := newTestEnv(t)
	coordinatorId := env.addMember(t, 40, model.RoleCoordinator)

	round := &model.FundingRound{Title: "Spring Grants", GroupId: env.group.Id, TotalTokens: 100}
	require.NoError(t, env.logic.CreateRound(coordinatorId, round))

	assert.Equal(t, model.PhaseDraft, round.Phase)
	assert.Equal(t, model.VotingMethodTokenConstant, round.VotingMethod)
	assert.Equal(t, 0, round.NumParticipants)
}

func TestCreateRoundWithPastPublishDateJoinsCreator(t *testing.T) {
	env := newTestEnv(t)
	coordinatorId := env.addMember(t, 40, model.RoleCoordinator)
	now := env.clock.Now()

	round := &model.FundingRound{
		Title:       "Spring Grants",
		GroupId:     env.group.Id,
		TotalTokens: 100,
		PublishedAt: timePtr(now.Add(-time.Minute)),
	}
	require.NoError(t, env.logic.CreateRound(coordinatorId, round))

	assert.Equal(t, model.PhasePublished, round.Phase)
	participant := env.reloadParticipant(t, round.Id, coordinatorId)
	assert.Equal(t, 0, participant.TokensRemaining)
}

func TestOptionalTimeUnmarshal(t *testing.T) {
	var updates RoundUpdates
	require.NoError(t, json.Unmarshal([]byte(`{"title":"New name"}`), &updates))
	assert.False(t, updates.PublishedAt.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"published_at":null}`), &updates))
	assert.True(t, updates.PublishedAt.Set)
	assert.Nil(t, updates.PublishedAt.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"published_at":"2026-03-01T12:00:00Z"}`), &updates))
	assert.True(t, updates.PublishedAt.Set)
	require.NotNil(t, updates.PublishedAt.Value)
	assert.Equal(t, 2026, updates.PublishedAt.Value.Year())
}

func TestUpdateRoundClearingDateRevertsPhase(t *testing.T) {
	env := newTestEnv(t)
	coordinatorId := env.addMember(t, 40, model.RoleCoordinator)
	now := env.clock.Now()

	round := env.createRound(t, &model.FundingRound{
		Phase:       model.PhasePublished,
		PublishedAt: timePtr(now.Add(-time.Hour)),
	})

	var updates RoundUpdates
	require.NoError(t, json.Unmarshal([]byte(`{"published_at":null}`), &updates))

	updated, err := env.logic.UpdateRound(coordinatorId, round.Id, &updates)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDraft, updated.Phase)
	assert.Nil(t, env.reloadRound(t, round.Id).PublishedAt)
}

func TestUpdateRoundRequiresManagePermission(t *testing.T) {
	env := newTestEnv(t)
	memberId := env.addMember(t, 41, model.RoleMember)
	round := submissionsRound(t, env)

	title := "Renamed"
	_, err := env.logic.UpdateRound(memberId, round.Id, &RoundUpdates{Title: &title})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
}

func TestUpdateRoundRejectsEmptyTitle(t *testing.T) {
	env := newTestEnv(t)
	coordinatorId := env.addMember(t, 40, model.RoleCoordinator)
	round := submissionsRound(t, env)

	title := ""
	_, err := env.logic.UpdateRound(coordinatorId, round.Id, &RoundUpdates{Title: &title})
	require.Error(t, err)
	assert.EqualError(t, err, "title is required")
}

func TestDisablingSelfVotingClawsBackTokens(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	coordinatorId := env.addMember(t, 40, model.RoleCoordinator)
	round := env.createRound(t, &model.FundingRound{
		Phase:              model.PhaseVoting,
		TotalTokens:        100,
		AllowSelfVoting:    true,
		PublishedAt:        timePtr(now.Add(-4 * time.Hour)),
		SubmissionsOpenAt:  timePtr(now.Add(-3 * time.Hour)),
		SubmissionsCloseAt: timePtr(now.Add(-2 * time.Hour)),
		VotingOpensAt:      timePtr(now.Add(-time.Hour)),
	})
	env.addParticipant(t, round.Id, coordinatorId, 100)
	ownPost := env.addSubmission(t, round.Id, coordinatorId)

	result, err := env.logic.Allocate(coordinatorId, ownPost.Id, 40)
	require.NoError(t, err)
	assert.Equal(t, 60, result.TokensRemaining)

	disabled := false
	updated, err := env.logic.UpdateRound(coordinatorId, round.Id, &RoundUpdates{AllowSelfVoting: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.AllowSelfVoting)

	// 自投代币退回余额，分配记录清零保留
	participant := env.reloadParticipant(t, round.Id, coordinatorId)
	assert.Equal(t, 100, participant.TokensRemaining)

	var allocation model.TokenAllocation
	require.NoError(t, env.db.Where("post_id = ? AND user_id = ?", ownPost.Id, coordinatorId).
		First(&allocation).Error)
	assert.Equal(t, 0, allocation.Tokens)
}

func TestDisablingSelfVotingBeforeVotingIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	coordinatorId := env.addMember(t, 40, model.RoleCoordinator)
	round := submissionsRound(t, env)
	require.NoError(t, env.db.Model(round).Update("allow_self_voting", true).Error)
	env.addParticipant(t, round.Id, coordinatorId, 55)

	disabled := false
	_, err := env.logic.UpdateRound(coordinatorId, round.Id, &RoundUpdates{AllowSelfVoting: &disabled})
	require.NoError(t, err)

	// 投票未开启，不触发回收
	participant := env.reloadParticipant(t, round.Id, coordinatorId)
	assert.Equal(t, 55, participant.TokensRemaining)
}

func TestDeleteRoundSoftDeletes(t *testing.T) {
	env := newTestEnv(t)
	coordinatorId := env.addMember(t, 40, model.RoleCoordinator)
	memberId := env.addMember(t, 41, model.RoleMember)
	round := submissionsRound(t, env)

	err := env.logic.DeleteRound(memberId, round.Id)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	require.NoError(t, env.logic.DeleteRound(coordinatorId, round.Id))

	_, err = env.logic.GetRound(round.Id)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.EqualError(t, err, "FundingRound not found")

	// 行还在，只是打了停用标记
	assert.NotNil(t, env.reloadRound(t, round.Id).DeactivatedAt)
}

func TestListRoundsExcludesDeactivated(t *testing.T) {
	env := newTestEnv(t)
	coordinatorId := env.addMember(t, 40, model.RoleCoordinator)

	first := env.createRound(t, &model.FundingRound{Title: "First"})
	env.createRound(t, &model.FundingRound{Title: "Second"})
	require.NoError(t, env.logic.DeleteRound(coordinatorId, first.Id))

	rounds, total, err := env.logic.ListRounds(env.group.Id, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rounds, 1)
	assert.Equal(t, "Second", rounds[0].Title)

	rounds, total, err = env.logic.ListRounds(0, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rounds, 1)
}
