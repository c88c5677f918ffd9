package explorer

// ConversationRecord is a conversation row in the explorer database.
type ConversationRecord struct {
	ChatID    string          `gorm:"primaryKey;column:chat_id" json:"chat_id"`
	CreatedAt string          `gorm:"column:created_at" json:"created_at"`
	Messages  []MessageRecord `gorm:"foreignKey:ChatID;references:ChatID" json:"messages,omitempty"`
}

// TableName overrides the default pluralization.
func (ConversationRecord) TableName() string { return "conversations" }

// MessageRecord is a single message within a conversation.
type MessageRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	ChatID    string `gorm:"index;column:chat_id" json:"chat_id"`
	Seq       int    `gorm:"column:seq" json:"seq"`
	Role      string `gorm:"column:role" json:"role"`
	Content   string `gorm:"column:content" json:"content"`
	CreatedAt string `gorm:"column:created_at" json:"created_at"`
}

func (MessageRecord) TableName() string { return "messages" }

// SummaryRecord is a per-conversation summary row. Metadata holds the
// summary's property set as a JSON object.
type SummaryRecord struct {
	ChatID   string `gorm:"primaryKey;column:chat_id" json:"chat_id"`
	Summary  string `gorm:"column:summary" json:"summary"`
	Metadata string `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (SummaryRecord) TableName() string { return "summaries" }

// ClusterRecord is a cluster row. Level and coordinates come from the
// projection stage; they are zero when the explorer was loaded from an
// unprojected checkpoint.
type ClusterRecord struct {
	ID          string  `gorm:"primaryKey;column:id" json:"id"`
	Name        string  `gorm:"column:name" json:"name"`
	Description string  `gorm:"column:description" json:"description"`
	ParentID    string  `gorm:"index;column:parent_id" json:"parent_id,omitempty"`
	Count       int     `gorm:"column:count" json:"count"`
	Level       int     `gorm:"index;column:level" json:"level"`
	XCoord      float64 `gorm:"column:x_coord" json:"x_coord"`
	YCoord      float64 `gorm:"column:y_coord" json:"y_coord"`
}

func (ClusterRecord) TableName() string { return "clusters" }

// ClusterConversation links a cluster to one member conversation.
type ClusterConversation struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	ClusterID string `gorm:"index;column:cluster_id" json:"cluster_id"`
	ChatID    string `gorm:"index;column:chat_id" json:"chat_id"`
}

func (ClusterConversation) TableName() string { return "cluster_conversations" }
