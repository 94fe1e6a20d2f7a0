package federation

import "fmt"

// StoreFault 表示本地存储出现非“不存在”的异常，对当前请求是致命的。
type StoreFault struct {
	Op   string
	Name string
	Err  error
}

func (e *StoreFault) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *StoreFault) Unwrap() error {
	return e.Err
}
