// Package cleanup は添付ファイル用一時ファイルの定期削除ジョブを提供する。
// リクエスト処理中にプロセスが停止した場合など、リクエスト単位の削除から
// 漏れた一時ファイルを保持期間経過後に削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/yuit/yuit-site/internal/metrics"
	"github.com/yuit/yuit-site/internal/upload"
)

// Sweeper は保持期間を超過した一時ファイルの削除ジョブ。
// 削除対象はupload.FilePrefixで始まるファイルのみで、サブディレクトリは走査しない。
type Sweeper struct {
	fs      afero.Fs
	dir     string
	maxAge  time.Duration
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// NewSweeper は新しいSweeperを生成する。
func NewSweeper(fs afero.Fs, dir string, maxAge time.Duration, m metrics.MetricsCollector, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		fs:      fs,
		dir:     dir,
		maxAge:  maxAge,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Start は指定間隔のティッカーで削除ジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("一時ファイル削除ジョブを開始しました",
		slog.String("dir", s.dir),
		slog.Duration("interval", interval),
		slog.Duration("max_age", s.maxAge),
	)

	// 起動直後に1回実行
	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("一時ファイル削除ジョブを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Sweeper) runAndLog(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error("一時ファイル削除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Run は保持期間を超過した一時ファイルを削除し、削除件数を返す。
// 冪等: ディレクトリが存在しない場合や削除対象がない場合もエラーにならない。
// 個別ファイルの削除失敗はまとめて返すが、残りのファイルの処理は継続する。
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	start := time.Now()

	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("一時ディレクトリの読み込みに失敗: %w", err)
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	var errs []error

	for _, info := range infos {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if info.IsDir() || !strings.HasPrefix(info.Name(), upload.FilePrefix) {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, info.Name())
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		removed++
	}

	s.metrics.RecordUploadsSwept(removed)

	if removed > 0 || len(errs) > 0 {
		s.logger.Info("一時ファイル削除ジョブが完了しました",
			slog.Int("deleted_count", removed),
			slog.Int("error_count", len(errs)),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}

	return removed, errors.Join(errs...)
}
