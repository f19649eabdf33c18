package services

import (
	"github.com/google/uuid"

	"github.com/arborlabs/taxonomy-engine/pkg/models"
)

// BuildCategoryTree assembles the flat, ordered row sequence produced by
// CategoryRepository.MaterializeTree into a nested forest. It is pure and
// O(n) in the number of rows.
//
// The source query orders rows by (level, sort_order, name), so children
// slices come out in execution order with no secondary sort.
//
// A row whose parent_id is absent from the input set (for example because
// a depth limit excluded the parent) is an orphan and is dropped silently.
// Tree assembly is total: it never fails on malformed input.
func BuildCategoryTree(rows []*models.CategoryTreeRow) []*models.CategoryTreeNode {
	index := make(map[uuid.UUID]*models.CategoryTreeNode, len(rows))
	for _, row := range rows {
		index[row.ID] = &models.CategoryTreeNode{
			Category: row.Category,
			Children: []*models.CategoryTreeNode{},
		}
	}

	roots := make([]*models.CategoryTreeNode, 0)
	for _, row := range rows {
		node := index[row.ID]
		if row.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := index[*row.ParentID]
		if !ok {
			// Orphan: parent excluded from the row set. Dropped.
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return roots
}

// CountTreeNodes returns the number of nodes reachable from the given roots.
func CountTreeNodes(roots []*models.CategoryTreeNode) int {
	count := 0
	stack := append([]*models.CategoryTreeNode{}, roots...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, node.Children...)
	}
	return count
}
