package data

import (
	"context"
	"errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"

	"moderation/internal/biz"
	"moderation/internal/data/postgres/sqlc"
)

type imageVerdictRepo struct {
	data *Data
	log  *log.Helper
}

func newPostgresImageVerdictRepo(data *Data, logger log.Logger) *imageVerdictRepo {
	return &imageVerdictRepo{
		data: data,
		log:  log.NewHelper(log.With(logger, "module", "data/image_verdict")),
	}
}

func (r *imageVerdictRepo) Get(ctx context.Context, url string) (*biz.ImageVerdict, error) {
	row, err := r.data.Queries.GetModeratedImage(ctx, url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return toBizImageVerdict(row), nil
}

func (r *imageVerdictRepo) InsertIfAbsent(ctx context.Context, url string, flagged bool) (bool, error) {
	n, err := r.data.Queries.InsertModeratedImage(ctx, sqlc.InsertModeratedImageParams{
		Url:     url,
		Flagged: flagged,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *imageVerdictRepo) Count(ctx context.Context) (int64, int64, error) {
	row, err := r.data.Queries.CountModeratedImages(ctx)
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Flagged, nil
}

func (r *imageVerdictRepo) List(ctx context.Context, after string, limit int) ([]*biz.ImageVerdict, error) {
	rows, err := r.data.Queries.ListModeratedImages(ctx, sqlc.ListModeratedImagesParams{
		Url:   after,
		Limit: int32(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]*biz.ImageVerdict, len(rows))
	for i, row := range rows {
		out[i] = toBizImageVerdict(row)
	}
	return out, nil
}

func toBizImageVerdict(r sqlc.ModeratedImage) *biz.ImageVerdict {
	v := &biz.ImageVerdict{URL: r.Url, Flagged: r.Flagged}
	if r.ModeratedAt.Valid {
		v.ModeratedAt = r.ModeratedAt.Time
	}
	return v
}
