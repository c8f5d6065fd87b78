package conversation

// Role 标识对话条目的发言方。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxHistory is the number of entries a client keeps and uploads.
const MaxHistory = 10

// Entry is one turn of a conversation as it travels on the wire.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserEntry 构造用户条目
func UserEntry(content string) Entry {
	return Entry{Role: RoleUser, Content: content}
}

// AssistantEntry 构造助手条目
func AssistantEntry(content string) Entry {
	return Entry{Role: RoleAssistant, Content: content}
}

// Tail returns the newest n entries of entries, in their original order.
func Tail(entries []Entry, n int) []Entry {
	if n <= 0 {
		return nil
	}
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
