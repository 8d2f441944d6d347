package logic

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Hylozoic/hylo-sub001/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var testDBSeq atomic.Int64

// newTestDB 每个测试一个独立的内存库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:logictest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.Group{},
		&model.GroupMembership{},
		&model.Post{},
		&model.FundingRound{},
		&model.RoundParticipant{},
		&model.RoundSubmission{},
		&model.TokenAllocation{},
		&model.JoinRequest{},
		&model.Notification{},
	)
	require.NoError(t, err)

	return db
}

// fakeClock 可手动拨动的时钟
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// recordingNotifier 记录所有通知调用
type recordingNotifier struct {
	mu           sync.Mutex
	phaseChanges []model.RoundPhase
	createdIds   []int64
	acceptedIds  []int64
	rejectedIds  []int64
}

func (n *recordingNotifier) PhaseChanged(roundId int64, phase model.RoundPhase) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.phaseChanges = append(n.phaseChanges, phase)
}

func (n *recordingNotifier) JoinRequestCreated(request *model.JoinRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.createdIds = append(n.createdIds, request.Id)
}

func (n *recordingNotifier) JoinRequestAccepted(request *model.JoinRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.acceptedIds = append(n.acceptedIds, request.Id)
}

func (n *recordingNotifier) JoinRequestRejected(request *model.JoinRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejectedIds = append(n.rejectedIds, request.Id)
}

// testEnv 一套带固定时钟和记录通知器的测试环境
type testEnv struct {
	db       *gorm.DB
	logic    *RoundLogic
	clock    *fakeClock
	notifier *recordingNotifier
	group    *model.Group
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}

	l := NewRoundLogic(db, notifier)
	l.clock = clock

	group := &model.Group{Name: "Makers Collective"}
	require.NoError(t, db.Create(group).Error)

	return &testEnv{db: db, logic: l, clock: clock, notifier: notifier, group: group}
}

// addMember 添加社群成员并返回用户 id
func (e *testEnv) addMember(t *testing.T, userId int64, role string) int64 {
	t.Helper()
	membership := &model.GroupMembership{GroupId: e.group.Id, UserId: userId, Role: role}
	require.NoError(t, e.db.Create(membership).Error)
	return userId
}

// createRound 直接落库一个轮次
func (e *testEnv) createRound(t *testing.T, round *model.FundingRound) *model.FundingRound {
	t.Helper()
	if round.GroupId == 0 {
		round.GroupId = e.group.Id
	}
	if round.Title == "" {
		round.Title = "Spring Grants"
	}
	if round.VotingMethod == "" {
		round.VotingMethod = model.VotingMethodTokenConstant
	}
	if round.Phase == "" {
		round.Phase = model.PhaseDraft
	}
	require.NoError(t, e.db.Create(round).Error)
	return round
}

// addParticipant 直接落库一个参与者
func (e *testEnv) addParticipant(t *testing.T, roundId, userId int64, tokensRemaining int) *model.RoundParticipant {
	t.Helper()
	participant := &model.RoundParticipant{RoundId: roundId, UserId: userId, TokensRemaining: tokensRemaining}
	require.NoError(t, e.db.Create(participant).Error)
	require.NoError(t, e.db.Model(&model.FundingRound{}).
		Where("id = ?", roundId).
		Update("num_participants", gorm.Expr("num_participants + 1")).Error)
	return participant
}

// addSubmission 创建提交物帖子并关联到轮次
func (e *testEnv) addSubmission(t *testing.T, roundId, creatorId int64) *model.Post {
	t.Helper()
	post := &model.Post{Type: model.PostTypeSubmission, CreatorId: creatorId, Title: "Community garden"}
	require.NoError(t, e.db.Create(post).Error)
	link := &model.RoundSubmission{RoundId: roundId, PostId: post.Id}
	require.NoError(t, e.db.Create(link).Error)
	return post
}

// reloadRound 重新读取轮次
func (e *testEnv) reloadRound(t *testing.T, id int64) *model.FundingRound {
	t.Helper()
	var round model.FundingRound
	require.NoError(t, e.db.First(&round, id).Error)
	return &round
}

// reloadParticipant 重新读取参与者台账行
func (e *testEnv) reloadParticipant(t *testing.T, roundId, userId int64) *model.RoundParticipant {
	t.Helper()
	var participant model.RoundParticipant
	require.NoError(t, e.db.Where("round_id = ? AND user_id = ?", roundId, userId).First(&participant).Error)
	return &participant
}

// timePtr 便捷取地址
func timePtr(t time.Time) *time.Time {
	return &t
}
