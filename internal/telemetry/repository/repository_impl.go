package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/pkg/db/option"
	"github.com/smallbiznis/wisunmeter/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) store(db *gorm.DB) repository.Repository[domain.Record] {
	return repository.ProvideStore[domain.Record](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	return r.store(db).Create(ctx, record)
}

func (r *repo) Latest(ctx context.Context, db *gorm.DB, deviceID, nodeID string) (*domain.Record, error) {
	return r.store(db).FindOne(ctx,
		&domain.Record{DeviceID: deviceID, NodeID: nodeID},
		option.WithSortBy(newestFirst),
		option.WithSortBy(newestIDFirst),
	)
}

func (r *repo) History(ctx context.Context, db *gorm.DB, filter domain.HistoryFilter) ([]domain.Record, error) {
	items, err := r.store(db).Find(ctx,
		&domain.Record{DeviceID: filter.DeviceID, NodeID: filter.NodeID},
		option.WithTimeRange("timestamp", filter.From, filter.To),
		option.WithSortBy(newestFirst),
		option.WithSortBy(newestIDFirst),
		option.WithLimit(filter.Limit),
	)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	return r.store(db).Count(ctx, &domain.Record{})
}

func (r *repo) DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, errors.New("delete limit must be positive")
	}
	if db.Dialector.Name() == "mysql" {
		// mysql rejects LIMIT inside an IN subquery but supports it on DELETE directly
		res := db.WithContext(ctx).Exec(
			`DELETE FROM meter_records WHERE timestamp < ? ORDER BY timestamp ASC LIMIT ?`,
			cutoff,
			limit,
		)
		return res.RowsAffected, res.Error
	}
	res := db.WithContext(ctx).Exec(
		`DELETE FROM meter_records
		 WHERE id IN (
		   SELECT id FROM meter_records WHERE timestamp < ? ORDER BY timestamp ASC LIMIT ?
		 )`,
		cutoff,
		limit,
	)
	return res.RowsAffected, res.Error
}

var (
	newestFirst   = option.QuerySortBy{Column: "timestamp", Desc: true, Allow: map[string]bool{"timestamp": true}}
	newestIDFirst = option.QuerySortBy{Column: "id", Desc: true, Allow: map[string]bool{"id": true}}
)
