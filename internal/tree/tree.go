// Package tree projects the flat folder and file records of a workspace
// into the nested structure clients render, and computes the subtree
// closures that folder deletion cascades over.
package tree

import (
	"sort"

	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/google/uuid"
)

// Node is one folder with everything nested under it.
type Node struct {
	Folder  models.Folder `json:"folder"`
	Folders []*Node       `json:"folders"`
	Files   []models.File `json:"files"`
}

// Forest is the render-ready view of a workspace: root folders plus the
// files that sit directly at root. Files whose folder id does not match
// any known folder are orphans (e.g. a cascade that never finished);
// they surface in Files at the root rather than disappearing.
type Forest struct {
	Folders []*Node       `json:"folders"`
	Files   []models.File `json:"files"`
}

// Project builds the forest from flat records. Arbitrary nesting depth is
// supported. A visited set per recursion path guards against cyclic
// parent chains: a folder reached twice on the same path is skipped, so
// corrupt data degrades to a truncated tree instead of an infinite loop.
func Project(folders []models.Folder, files []models.File) *Forest {
	byParent := make(map[uuid.UUID][]models.Folder)
	known := make(map[uuid.UUID]bool, len(folders))
	var roots []models.Folder
	for _, f := range folders {
		known[f.ID] = true
		if f.ParentFolderID == nil {
			roots = append(roots, f)
		} else {
			byParent[*f.ParentFolderID] = append(byParent[*f.ParentFolderID], f)
		}
	}

	filesByFolder := make(map[uuid.UUID][]models.File)
	var rootFiles []models.File
	for _, f := range files {
		if f.FolderID == nil || !known[*f.FolderID] {
			rootFiles = append(rootFiles, f)
			continue
		}
		filesByFolder[*f.FolderID] = append(filesByFolder[*f.FolderID], f)
	}

	// Folders whose parent id points at a missing folder are orphans too;
	// promote them to roots so their contents stay reachable.
	for _, f := range folders {
		if f.ParentFolderID != nil && !known[*f.ParentFolderID] {
			roots = append(roots, f)
		}
	}

	sortFolders(roots)
	sortFiles(rootFiles)

	forest := &Forest{Files: rootFiles}
	path := make(map[uuid.UUID]bool)
	reached := make(map[uuid.UUID]bool)
	for _, root := range roots {
		if n := build(root, byParent, filesByFolder, path, reached); n != nil {
			forest.Folders = append(forest.Folders, n)
		}
	}

	// A cyclic parent chain detached from every root (a↔b, both parents
	// present) is reachable from nowhere above, so the loops did not
	// touch it. Promote such islands at an arbitrary member: the path
	// guard breaks the cycle one level down and the files inside stay
	// reachable instead of vanishing.
	for _, f := range folders {
		if reached[f.ID] {
			continue
		}
		if n := build(f, byParent, filesByFolder, path, reached); n != nil {
			forest.Folders = append(forest.Folders, n)
		}
	}
	return forest
}

// build assembles one node. path is the current recursion path and cuts
// cycles; reached is permanent and keeps a folder from materializing
// twice across roots and the island sweep.
func build(folder models.Folder, byParent map[uuid.UUID][]models.Folder, filesByFolder map[uuid.UUID][]models.File, path, reached map[uuid.UUID]bool) *Node {
	if path[folder.ID] || reached[folder.ID] {
		return nil
	}
	path[folder.ID] = true
	reached[folder.ID] = true
	defer delete(path, folder.ID)

	node := &Node{
		Folder: folder,
		Files:  filesByFolder[folder.ID],
	}
	sortFiles(node.Files)

	children := byParent[folder.ID]
	sortFolders(children)
	for _, child := range children {
		if n := build(child, byParent, filesByFolder, path, reached); n != nil {
			node.Folders = append(node.Folders, n)
		}
	}
	return node
}

// Subtree returns root and every folder id transitively under it. The
// result feeds the cascade delete: files referencing any id in the set
// are removed together with the folders, in one transaction.
func Subtree(folders []models.Folder, root uuid.UUID) []uuid.UUID {
	byParent := make(map[uuid.UUID][]uuid.UUID)
	for _, f := range folders {
		if f.ParentFolderID != nil {
			byParent[*f.ParentFolderID] = append(byParent[*f.ParentFolderID], f.ID)
		}
	}

	seen := map[uuid.UUID]bool{root: true}
	ids := []uuid.UUID{root}
	for i := 0; i < len(ids); i++ {
		for _, child := range byParent[ids[i]] {
			if seen[child] {
				continue
			}
			seen[child] = true
			ids = append(ids, child)
		}
	}
	return ids
}

// WouldCycle reports whether reparenting folderID under newParentID would
// create a cycle, i.e. newParentID is folderID itself or lives inside
// folderID's subtree. A nil parent (move to root) never cycles.
func WouldCycle(folders []models.Folder, folderID uuid.UUID, newParentID *uuid.UUID) bool {
	if newParentID == nil {
		return false
	}
	for _, id := range Subtree(folders, folderID) {
		if id == *newParentID {
			return true
		}
	}
	return false
}

func sortFolders(fs []models.Folder) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].Name < fs[j].Name })
}

func sortFiles(fs []models.File) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].Name < fs[j].Name })
}
