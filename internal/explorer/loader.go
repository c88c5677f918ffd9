package explorer

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/thebtf/prism/internal/checkpoint"
	"github.com/thebtf/prism/pkg/models"
)

const insertBatchSize = 500

// LoadCheckpoints replaces the explorer database contents with the state of
// a pipeline checkpoint directory. Projected clusters are preferred; when
// the projection stage has not run, reduced clusters are loaded with zero
// coordinates.
func LoadCheckpoints(store *Store, dir string) error {
	src, err := checkpoint.Open(dir, false)
	if err != nil {
		return err
	}

	conversations, err := checkpoint.Load[models.Conversation](src, checkpoint.ConversationsFile)
	if err != nil {
		return err
	}
	summaries, err := checkpoint.Load[models.ConversationSummary](src, checkpoint.SummariesFile)
	if err != nil {
		return err
	}
	clusters, err := loadClusters(src)
	if err != nil {
		return err
	}

	start := time.Now()
	err = store.DB.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{
			"cluster_conversations", "clusters", "summaries", "messages", "conversations",
		} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		if err := insertConversations(tx, conversations); err != nil {
			return err
		}
		if err := insertSummaries(tx, summaries); err != nil {
			return err
		}
		return insertClusters(tx, clusters)
	})
	if err != nil {
		return fmt.Errorf("load checkpoints into explorer db: %w", err)
	}

	log.Info().
		Int("conversations", len(conversations)).
		Int("summaries", len(summaries)).
		Int("clusters", len(clusters)).
		Dur("took", time.Since(start)).
		Msg("Loaded checkpoints into explorer database")
	return nil
}

// loadClusters reads the most processed cluster checkpoint available.
func loadClusters(src *checkpoint.Store) ([]models.ProjectedCluster, error) {
	projected, err := checkpoint.Load[models.ProjectedCluster](src, checkpoint.DimensionalityFile)
	if err != nil {
		return nil, err
	}
	if len(projected) > 0 {
		return projected, nil
	}

	for _, name := range []string{checkpoint.MetaClustersFile, checkpoint.ClustersFile} {
		reduced, err := checkpoint.Load[models.Cluster](src, name)
		if err != nil {
			return nil, err
		}
		if len(reduced) > 0 {
			flat := make([]models.ProjectedCluster, len(reduced))
			for i, c := range reduced {
				flat[i] = models.ProjectedCluster{Cluster: c}
			}
			return flat, nil
		}
	}
	return nil, nil
}

func insertConversations(tx *gorm.DB, conversations []models.Conversation) error {
	records := make([]ConversationRecord, 0, len(conversations))
	var messages []MessageRecord
	for _, c := range conversations {
		records = append(records, ConversationRecord{
			ChatID:    c.ChatID,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
		for i, m := range c.Messages {
			messages = append(messages, MessageRecord{
				ChatID:    c.ChatID,
				Seq:       i,
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: m.CreatedAt.Format(time.RFC3339),
			})
		}
	}
	if len(records) > 0 {
		if err := tx.CreateInBatches(records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert conversations: %w", err)
		}
	}
	if len(messages) > 0 {
		if err := tx.CreateInBatches(messages, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
	}
	return nil
}

func insertSummaries(tx *gorm.DB, summaries []models.ConversationSummary) error {
	records := make([]SummaryRecord, 0, len(summaries))
	for _, s := range summaries {
		var metadata string
		if s.Metadata != nil {
			data, err := json.Marshal(s.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata for %s: %w", s.ChatID, err)
			}
			metadata = string(data)
		}
		records = append(records, SummaryRecord{
			ChatID:   s.ChatID,
			Summary:  s.Summary,
			Metadata: metadata,
		})
	}
	if len(records) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(records, insertBatchSize).Error; err != nil {
		return fmt.Errorf("insert summaries: %w", err)
	}
	return nil
}

func insertClusters(tx *gorm.DB, clusters []models.ProjectedCluster) error {
	records := make([]ClusterRecord, 0, len(clusters))
	var links []ClusterConversation
	for _, c := range clusters {
		records = append(records, ClusterRecord{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			ParentID:    c.ParentID,
			Count:       c.Count,
			Level:       c.Level,
			XCoord:      c.X,
			YCoord:      c.Y,
		})
		for _, chatID := range c.ChatIDs {
			links = append(links, ClusterConversation{
				ClusterID: c.ID,
				ChatID:    chatID,
			})
		}
	}
	if len(records) > 0 {
		if err := tx.CreateInBatches(records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert clusters: %w", err)
		}
	}
	if len(links) > 0 {
		if err := tx.CreateInBatches(links, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert cluster members: %w", err)
		}
	}
	return nil
}
