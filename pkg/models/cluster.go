package models

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Cluster is a named, described group of conversations, optionally parented
// by another cluster. Clusters are created once per pipeline stage and never
// mutated in place: a later stage supersedes a record by emitting a copy with
// an updated ParentID.
type Cluster struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	ChatIDs     []string     `json:"chat_ids"`
	ParentID    string       `json:"parent_id,omitempty"`
	Count       int          `json:"count"`
	Metadata    *PropertySet `json:"metadata,omitempty"`
}

// NewClusterID generates a fresh globally unique cluster id.
func NewClusterID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// NewLeafCluster builds a base-level cluster with no parent. Count is fixed
// at creation to the number of member conversations.
func NewLeafCluster(name, description string, chatIDs []string, metadata *PropertySet) Cluster {
	return Cluster{
		ID:          NewClusterID(),
		Name:        name,
		Description: description,
		ChatIDs:     chatIDs,
		Count:       len(chatIDs),
		Metadata:    metadata,
	}
}

// WithParent returns a copy of the cluster pointing at the given parent.
// Identity and membership are preserved.
func (c Cluster) WithParent(parentID string) Cluster {
	c.ParentID = parentID
	return c
}

// GeneratedCluster is the structured response of the cluster labeling model.
type GeneratedCluster struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// ClusterTreeNode is a rendering-only projection of Cluster built by
// inverting parent pointers. Children holds cluster ids in insertion order.
type ClusterTreeNode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Count       int      `json:"count"`
	Children    []string `json:"children"`
}

// ProjectedCluster is a cluster with 2D coordinates and a hierarchy level,
// produced by the dimensionality projector for visualization.
type ProjectedCluster struct {
	Cluster
	X     float64 `json:"x_coord"`
	Y     float64 `json:"y_coord"`
	Level int     `json:"level"`
}
