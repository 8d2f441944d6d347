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

// PhaseTransitionJob 轮次阶段对账任务。
// 阶段转移在每个写操作里惰性求值，没有写流量的轮次会停在过期阶段，
// 这个任务定期补一次检查。
type PhaseTransitionJob struct {
	db         *gorm.DB
	roundLogic *logic.RoundLogic
	config     *config.Config
}

// NewPhaseTransitionJob 创建阶段对账任务
func NewPhaseTransitionJob(db *gorm.DB, notifier *notify.Notifier, cfg *config.Config) *PhaseTransitionJob {
	return &PhaseTransitionJob{
		db:         db,
		roundLogic: logic.NewRoundLogic(db, notifier),
		config:     cfg,
	}
}

// GetName 获取任务名称
func (j *PhaseTransitionJob) GetName() string {
	return "round_phase_reconciler"
}

// GetSchedule 获取调度配置
func (j *PhaseTransitionJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Scheduler.PhaseInterval) * time.Second)
}

// Execute 执行任务
func (j *PhaseTransitionJob) Execute() {
	logger.Debug("Starting round phase reconciliation")

	// 终态且没有可回退时间点变化的轮次不需要反复检查，
	// 但回退由显式更新触发，这里只兜底正向推进
	var rounds []model.FundingRound
	err := j.db.Where("deactivated_at IS NULL").
		Where("phase <> ?", model.PhaseCompleted).
		Find(&rounds).Error
	if err != nil {
		logger.Error("Failed to fetch rounds for reconciliation: %v", err)
		return
	}

	updated := 0
	for _, round := range rounds {
		before := round.Phase
		fresh, err := j.roundLogic.RunPhaseTransition(round.Id)
		if err != nil {
			logger.Error("Phase reconciliation failed for round %d: %v", round.Id, err)
			continue
		}
		if fresh.Phase != before {
			updated++
		}
	}

	if updated > 0 {
		logger.Info("Phase reconciliation advanced %d rounds", updated)
	}
}
