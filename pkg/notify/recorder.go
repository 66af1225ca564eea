package notify

import "sync"

// Entry 一条被记录的通知
type Entry struct {
	Level   string
	Message string
}

// Recorder 记录所有收到的通知，供测试断言使用
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Notifier = (*Recorder)(nil)

// NewRecorder 创建通知记录器
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg})
}

func (r *Recorder) Info(msg string)    { r.record("info", msg) }
func (r *Recorder) Warning(msg string) { r.record("warning", msg) }
func (r *Recorder) Error(msg string)   { r.record("error", msg) }
func (r *Recorder) Success(msg string) { r.record("success", msg) }
func (r *Recorder) Failure(msg string) { r.record("failure", msg) }

// Entries 返回已记录通知的副本
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages 返回指定级别的所有消息，level 为空时返回全部
func (r *Recorder) Messages(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if level == "" || e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Reset 清空已记录的通知
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
