package cache

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Store 负责管理本地目录中整文件的读写。磁盘布局：
//
//	<Directory>/<name>    # 文件正文，无附加元数据
type Store interface {
	// Get 读取整个文件。文件不存在时返回 ErrNotFound，其余错误原样返回。
	Get(ctx context.Context, name string) (*ReadResult, error)

	// Put 无条件覆盖写入，通过临时文件 + rename 保证原子替换。
	Put(ctx context.Context, name string, body io.Reader) (*Entry, error)

	// Remove 尽力删除，文件已不存在时视为成功。
	Remove(ctx context.Context, name string) error

	// Dir 返回存储根目录的绝对路径。
	Dir() string
}

// Entry 描述一个本地文件。
type Entry struct {
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// ReadResult 组合 Entry 与完整正文。
type ReadResult struct {
	Entry   Entry
	Content []byte
}

var (
	// ErrNotFound 表示本地不存在该文件。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidName 表示文件名不是单一路径段。
	ErrInvalidName = errors.New("invalid file name")
)

const tempPrefix = ".peer-hub-"

// ValidateName 要求文件名是单一路径段，避免逃逸出存储目录或命中写入中的临时文件。
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return ErrInvalidName
	case strings.HasPrefix(name, tempPrefix):
		return ErrInvalidName
	}
	return nil
}
