// Package upload はお問い合わせフォームのマルチパート解析と
// 添付ファイル用一時ファイルのライフサイクル管理を提供する。
package upload

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"
)

// FilePrefix は一時ファイル名の接頭辞。スイーパーはこの接頭辞のファイルのみを削除対象とする。
const FilePrefix = "yuit-upload-"

// TempStore は添付ファイルの一時保存先。
// afero.Fsを差し替えることでテストではメモリ上のファイルシステムを使用できる。
type TempStore struct {
	fs  afero.Fs
	dir string
}

// NewTempStore はTempStoreを生成する。
func NewTempStore(fs afero.Fs, dir string) *TempStore {
	return &TempStore{
		fs:  fs,
		dir: dir,
	}
}

// Fs は一時ファイルが置かれるファイルシステムを返す。
func (s *TempStore) Fs() afero.Fs {
	return s.fs
}

// NewSet は1リクエスト分の一時ファイル集合を生成する。
// 呼び出し側は生成直後にdefer set.Release()すること。
func (s *TempStore) NewSet() *TempSet {
	return &TempSet{store: s}
}

// TempSet は1リクエストの間に作成した一時ファイルの集合。
// Releaseで作成したファイルをすべて削除する。
type TempSet struct {
	store *TempStore

	mu       sync.Mutex
	paths    []string
	released bool
}

// Create は拡張子extを持つ一時ファイルを作成し、集合に登録する。
// ファイルのCloseは呼び出し側の責務だが、削除はReleaseが行う。
func (s *TempSet) Create(ext string) (afero.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, errors.New("temp set already released")
	}

	if err := s.store.fs.MkdirAll(s.store.dir, 0o700); err != nil {
		return nil, fmt.Errorf("一時ディレクトリの作成に失敗: %w", err)
	}

	f, err := afero.TempFile(s.store.fs, s.store.dir, FilePrefix+"*"+ext)
	if err != nil {
		return nil, fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	s.paths = append(s.paths, f.Name())
	return f, nil
}

// Release は作成したすべての一時ファイルを削除する。
// 既に存在しないファイルは無視する。2回目以降の呼び出しは何もしない。
func (s *TempSet) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true

	var errs []error
	for _, p := range s.paths {
		if err := s.store.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	s.paths = nil
	return errors.Join(errs...)
}
