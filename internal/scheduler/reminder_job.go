package scheduler

import (
	"time"

	"github.com/Hylozoic/hylo-sub001/internal/config"
	"github.com/Hylozoic/hylo-sub001/internal/logger"
	"github.com/Hylozoic/hylo-sub001/internal/logic"
	"github.com/Hylozoic/hylo-sub001/internal/model"
	"github.com/Hylozoic/hylo-sub001/internal/notify"
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ReminderJob 截止提醒任务：提交截止和投票截止前 3 天与 1 天
// 各提醒一次，通过通知表去重
type ReminderJob struct {
	db       *gorm.DB
	notifier *notify.Notifier
	perms    logic.PermissionChecker
	config   *config.Config
}

// reminderWindow 一类提醒的筛选条件。
// dedup 是去重回看窗口：窗口外的历史提醒不算数，
// 截止日被挪动后同类提醒还能再发
type reminderWindow struct {
	reminderType string
	column       string
	daysAhead    int
	dedup        time.Duration
	submitters   bool // 仅提醒具备提交资格的参与者
}

var reminderWindows = []reminderWindow{
	{reminderType: "submissionsClosing3Days", column: "submissions_close_at", daysAhead: 3, dedup: 48 * time.Hour, submitters: true},
	{reminderType: "submissionsClosing1Day", column: "submissions_close_at", daysAhead: 1, dedup: 12 * time.Hour, submitters: true},
	{reminderType: "votingClosing3Days", column: "voting_closes_at", daysAhead: 3, dedup: 48 * time.Hour},
	{reminderType: "votingClosing1Day", column: "voting_closes_at", daysAhead: 1, dedup: 12 * time.Hour},
}

// NewReminderJob 创建提醒任务
func NewReminderJob(db *gorm.DB, notifier *notify.Notifier, cfg *config.Config) *ReminderJob {
	return &ReminderJob{
		db:       db,
		notifier: notifier,
		perms:    logic.NewPermissions(db),
		config:   cfg,
	}
}

// GetName 获取任务名称
func (j *ReminderJob) GetName() string {
	return "round_deadline_reminder"
}

// GetSchedule 获取调度配置
func (j *ReminderJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Scheduler.ReminderInterval) * time.Second)
}

// Execute 执行任务
func (j *ReminderJob) Execute() {
	logger.Debug("Starting round deadline reminder check")

	now := time.Now()
	count := 0
	for _, window := range reminderWindows {
		count += j.sendForWindow(now, window)
	}

	if count > 0 {
		logger.Info("Sent deadline reminders for %d rounds", count)
	}
}

// sendForWindow 处理一类提醒
func (j *ReminderJob) sendForWindow(now time.Time, window reminderWindow) int {
	// 截止日落在 N 天后的整天内
	day := now.AddDate(0, 0, window.daysAhead)
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var rounds []model.FundingRound
	err := j.db.Where("deactivated_at IS NULL").
		Where("published_at IS NOT NULL").
		Where(window.column+" >= ? AND "+window.column+" < ?", dayStart, dayEnd).
		Find(&rounds).Error
	if err != nil {
		logger.Error("Failed to fetch rounds for %s reminders: %v", window.reminderType, err)
		return 0
	}

	count := 0
	for i := range rounds {
		round := &rounds[i]
		if j.alreadySent(round.Id, window, now) {
			continue
		}

		readerIds, err := j.recipients(round, window.submitters)
		if err != nil {
			logger.Error("Failed to resolve reminder recipients for round %d: %v", round.Id, err)
			continue
		}
		if len(readerIds) == 0 {
			continue
		}

		j.notifier.Reminder(round, readerIds, window.reminderType)
		count++
	}
	return count
}

// alreadySent 该类提醒在回看窗口内是否已发过
func (j *ReminderJob) alreadySent(roundId int64, window reminderWindow, now time.Time) bool {
	var count int64
	err := j.db.Model(&model.Notification{}).
		Where("round_id = ? AND kind = ?", roundId, model.NotifyReminder).
		Where("meta LIKE ?", "%"+window.reminderType+"%").
		Where("created_at > ?", now.Add(-window.dedup)).
		Count(&count).Error
	if err != nil {
		logger.Error("Failed to check existing reminders for round %d: %v", roundId, err)
		return true
	}
	return count > 0
}

// recipients 提醒接收人：全部参与者；提交类提醒在设置了
// submitterRoles 时只发给具备提交资格的参与者
func (j *ReminderJob) recipients(round *model.FundingRound, submittersOnly bool) ([]int64, error) {
	var participants []model.RoundParticipant
	if err := j.db.Where("round_id = ?", round.Id).Find(&participants).Error; err != nil {
		return nil, err
	}

	filter := submittersOnly && len(round.SubmitterRoles) > 0
	readerIds := make([]int64, 0, len(participants))
	for _, participant := range participants {
		if filter {
			canSubmit, err := j.perms.CanUserSubmit(round, participant.UserId)
			if err != nil {
				return nil, err
			}
			if !canSubmit {
				continue
			}
		}
		readerIds = append(readerIds, participant.UserId)
	}
	return readerIds, nil
}
