// Package staging 管理插件私有的暂存目录：被搬离资源的临时副本、
// 数据集备份、以及跨进程重试用的失败清单。
package staging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/LocPack/internal/domain"
	"github.com/John-Robertt/LocPack/internal/infra/fsx"
)

const (
	backupName = "i18n_backup.json"
	ledgerName = "failed_resources.json"
)

// Store 定位暂存目录里的各类文件。目录本身按需创建。
type Store struct {
	Dir string
}

func New(dir string) Store {
	return Store{Dir: filepath.Clean(strings.TrimSpace(dir))}
}

// BackupPath 数据集备份文件的绝对路径。
func (s Store) BackupPath() string { return filepath.Join(s.Dir, backupName) }

// LedgerPath 失败清单文件的绝对路径。
func (s Store) LedgerPath() string { return filepath.Join(s.Dir, ledgerName) }

// StagedName 返回资源暂存副本的文件名：<标识>_<原文件名>。
// 标识里的路径分隔符与冒号统一替换成下划线，避免嵌套目录。
func StagedName(resourceID, srcPath string) string {
	id := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		default:
			return r
		}
	}, resourceID)
	return id + "_" + filepath.Base(srcPath)
}

// StagedPath 返回资源暂存副本的绝对路径。
func (s Store) StagedPath(resourceID, srcPath string) string {
	return filepath.Join(s.Dir, StagedName(resourceID, srcPath))
}

// EnsureDir 确保暂存目录存在。
func (s Store) EnsureDir() error { return fsx.EnsureDir(s.Dir) }

// LoadLedger 读取失败清单。文件不存在返回 (nil, false, nil)。
func (s Store) LoadLedger() ([]domain.MovedFileRecord, bool, error) {
	b, err := os.ReadFile(s.LedgerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &domain.Error{Code: domain.ErrCodeIOFailed, Ref: ledgerName, Err: err}
	}
	var records []domain.MovedFileRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, false, &domain.Error{Code: domain.ErrCodeDataInvalid, Ref: ledgerName, Err: err}
	}
	return records, true, nil
}

// SaveLedger 原子落盘失败清单；空清单等价于 ClearLedger。
func (s Store) SaveLedger(records []domain.MovedFileRecord) error {
	if len(records) == 0 {
		return s.ClearLedger()
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := s.EnsureDir(); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(s.Dir, ledgerName, b)
}

// ClearLedger 删除失败清单文件；不存在不算错。
func (s Store) ClearLedger() error {
	if err := os.Remove(s.LedgerPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveIfEmpty 在暂存目录已无任何残留时删除目录本身；
// 还有暂存副本、备份或清单时保持原样。
func (s Store) RemoveIfEmpty() error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(s.Dir)
}
