package tree

import (
	"testing"

	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/google/uuid"
)

func folder(name string, parent *uuid.UUID) models.Folder {
	return models.Folder{ID: uuid.New(), Name: name, ParentFolderID: parent}
}

func file(name string, folderID *uuid.UUID) models.File {
	return models.File{ID: uuid.New(), Name: name, FolderID: folderID}
}

// countFiles walks the forest and tallies how often each file id appears.
func countFiles(forest *Forest) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, f := range forest.Files {
		counts[f.ID]++
	}
	var walk func(*Node)
	walk = func(n *Node) {
		for _, f := range n.Files {
			counts[f.ID]++
		}
		for _, child := range n.Folders {
			walk(child)
		}
	}
	for _, n := range forest.Folders {
		walk(n)
	}
	return counts
}

func TestProjectNesting(t *testing.T) {
	a := folder("a", nil)
	b := folder("b", &a.ID)
	c := folder("c", &b.ID)
	folders := []models.Folder{a, b, c}

	deep := file("deep.go", &c.ID)
	mid := file("mid.go", &b.ID)
	top := file("top.go", nil)
	files := []models.File{deep, mid, top}

	forest := Project(folders, files)

	if len(forest.Folders) != 1 {
		t.Fatalf("expected 1 root folder, got %d", len(forest.Folders))
	}
	if len(forest.Files) != 1 || forest.Files[0].ID != top.ID {
		t.Fatalf("expected top.go at root, got %+v", forest.Files)
	}

	nodeA := forest.Folders[0]
	if nodeA.Folder.ID != a.ID || len(nodeA.Folders) != 1 {
		t.Fatalf("unexpected root node: %+v", nodeA)
	}
	nodeB := nodeA.Folders[0]
	if len(nodeB.Files) != 1 || nodeB.Files[0].ID != mid.ID {
		t.Fatalf("expected mid.go under b, got %+v", nodeB.Files)
	}
	nodeC := nodeB.Folders[0]
	if len(nodeC.Files) != 1 || nodeC.Files[0].ID != deep.ID {
		t.Fatalf("expected deep.go under c, got %+v", nodeC.Files)
	}

	// Every file appears exactly once in the forest.
	for id, n := range countFiles(forest) {
		if n != 1 {
			t.Fatalf("file %s appears %d times", id, n)
		}
	}
}

func TestProjectOrphanFileSurfacesAtRoot(t *testing.T) {
	a := folder("a", nil)
	ghost := uuid.New()
	orphan := file("orphan.go", &ghost)

	forest := Project([]models.Folder{a}, []models.File{orphan})

	if len(forest.Files) != 1 || forest.Files[0].ID != orphan.ID {
		t.Fatalf("expected orphan at root, got %+v", forest.Files)
	}
	if countFiles(forest)[orphan.ID] != 1 {
		t.Fatalf("orphan should appear exactly once")
	}
}

func TestProjectOrphanFolderPromotedToRoot(t *testing.T) {
	ghost := uuid.New()
	lost := folder("lost", &ghost)
	inLost := file("in_lost.go", &lost.ID)

	forest := Project([]models.Folder{lost}, []models.File{inLost})

	if len(forest.Folders) != 1 || forest.Folders[0].Folder.ID != lost.ID {
		t.Fatalf("expected lost folder promoted to root, got %+v", forest.Folders)
	}
	if len(forest.Folders[0].Files) != 1 {
		t.Fatalf("expected file kept inside promoted folder")
	}
}

func TestProjectDoesNotLoopOnCycle(t *testing.T) {
	a := folder("a", nil)
	b := folder("b", &a.ID)
	// Corrupt duplicate record: a second row for folder a claims b as its
	// parent, closing the loop a -> b -> a. Without the per-path visited
	// set this recursion never terminates.
	aDup := models.Folder{ID: a.ID, Name: "a", ParentFolderID: &b.ID}

	forest := Project([]models.Folder{a, b, aDup}, nil)

	if len(forest.Folders) != 1 {
		t.Fatalf("expected 1 root folder, got %d", len(forest.Folders))
	}
	nodeA := forest.Folders[0]
	if len(nodeA.Folders) != 1 || nodeA.Folders[0].Folder.ID != b.ID {
		t.Fatalf("expected b under a, got %+v", nodeA.Folders)
	}
	// The cyclic re-entry into a was cut off.
	if len(nodeA.Folders[0].Folders) != 0 {
		t.Fatalf("cycle was not cut: %+v", nodeA.Folders[0].Folders)
	}
}

func TestProjectDetachedCycleIslandSurfaces(t *testing.T) {
	// Two folders parenting each other, attached to nothing: neither is a
	// root and both parents exist, so no root or orphan rule fires. Such
	// an island can form when two concurrent moves each pass the cycle
	// check against a stale folder list.
	a := folder("a", nil)
	b := folder("b", &a.ID)
	a.ParentFolderID = &b.ID
	inA := file("in_a.go", &a.ID)
	normal := folder("normal", nil)

	forest := Project([]models.Folder{a, b, normal}, []models.File{inA})

	if countFiles(forest)[inA.ID] != 1 {
		t.Fatalf("file inside detached cycle must appear exactly once, got %d", countFiles(forest)[inA.ID])
	}

	seen := make(map[uuid.UUID]int)
	var walk func(*Node)
	walk = func(n *Node) {
		seen[n.Folder.ID]++
		for _, child := range n.Folders {
			walk(child)
		}
	}
	for _, n := range forest.Folders {
		walk(n)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID, normal.ID} {
		if seen[id] != 1 {
			t.Fatalf("folder %s appears %d times, want 1", id, seen[id])
		}
	}
}

func TestSubtreeClosure(t *testing.T) {
	a := folder("a", nil)
	b := folder("b", &a.ID)
	c := folder("c", &b.ID)
	d := folder("d", &a.ID)
	other := folder("other", nil)
	folders := []models.Folder{a, b, c, d, other}

	ids := Subtree(folders, a.ID)
	if len(ids) != 4 {
		t.Fatalf("expected 4 folders in subtree, got %d", len(ids))
	}
	want := map[uuid.UUID]bool{a.ID: true, b.ID: true, c.ID: true, d.ID: true}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("unexpected id %s in subtree", id)
		}
	}

	leaf := Subtree(folders, c.ID)
	if len(leaf) != 1 || leaf[0] != c.ID {
		t.Fatalf("leaf subtree should contain only itself, got %v", leaf)
	}
}

func TestSubtreeTerminatesOnCycle(t *testing.T) {
	a := folder("a", nil)
	b := folder("b", &a.ID)
	a.ParentFolderID = &b.ID // corrupt cycle

	ids := Subtree([]models.Folder{a, b}, a.ID)
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids despite cycle, got %d", len(ids))
	}
}

func TestWouldCycle(t *testing.T) {
	a := folder("a", nil)
	b := folder("b", &a.ID)
	c := folder("c", &b.ID)
	other := folder("other", nil)
	folders := []models.Folder{a, b, c, other}

	if !WouldCycle(folders, a.ID, &c.ID) {
		t.Fatalf("moving a under its own descendant must cycle")
	}
	if !WouldCycle(folders, a.ID, &a.ID) {
		t.Fatalf("moving a under itself must cycle")
	}
	if WouldCycle(folders, b.ID, &other.ID) {
		t.Fatalf("moving b under an unrelated folder must not cycle")
	}
	if WouldCycle(folders, b.ID, nil) {
		t.Fatalf("moving to root never cycles")
	}
}
