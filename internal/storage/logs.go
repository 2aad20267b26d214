package storage

import (
	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dkeye/danmaku/internal/domain"
)

const MaxPageSize = 200

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Insert(e *domain.LogEntry) error {
	return r.db.Create(e).Error
}

// Page returns entries newest first. page starts at 1; module filters when not empty.
func (r *LogRepository) Page(page, size int, module string) ([]domain.LogEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > MaxPageSize {
		size = MaxPageSize
	}
	q := r.db.Model(&domain.LogEntry{})
	if module != "" {
		q = q.Where("module = ?", module)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	entries := []domain.LogEntry{}
	err := q.Order("time desc").Order("id desc").Offset((page - 1) * size).Limit(size).Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// AuditLog writes entries off the caller's goroutine.
type AuditLog struct {
	repo *LogRepository
	pool *workerpool.WorkerPool
}

func NewAuditLog(repo *LogRepository, workers int) *AuditLog {
	if workers < 1 {
		workers = 1
	}
	return &AuditLog{repo: repo, pool: workerpool.New(workers)}
}

func (a *AuditLog) Record(e domain.LogEntry) {
	a.pool.Submit(func() {
		if err := a.repo.Insert(&e); err != nil {
			log.Error().Err(err).Str("module", "storage").Str("action", e.Action).Msg("audit insert")
		}
	})
}

// Close waits for queued writes.
func (a *AuditLog) Close() {
	a.pool.StopWait()
}
