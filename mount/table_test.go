package mount

import (
	"testing"

	"github.com/wildland-go/wildland/sig"
)

func TestTablePutAssignsMountID(t *testing.T) {
	tbl := NewTable()
	entry := &MountedStorage{Identity: StorageIdentity{ContainerUUID: "c1", BackendID: "b1"}}
	tbl.Put(entry)
	if entry.MountID == 0 {
		t.Error("expected Put to assign a non-zero mount id")
	}

	got, ok := tbl.Get(entry.Identity)
	if !ok {
		t.Fatal("expected Get to find the entry just put")
	}
	if got != entry {
		t.Error("Get returned a different entry than was put")
	}
}

func TestTablePutPreservesExplicitMountID(t *testing.T) {
	tbl := NewTable()
	entry := &MountedStorage{Identity: StorageIdentity{ContainerUUID: "c1", BackendID: "b1"}, MountID: 42}
	tbl.Put(entry)
	if entry.MountID != 42 {
		t.Errorf("MountID = %d, want 42 preserved", entry.MountID)
	}
}

func TestTableDeleteRemovesEntry(t *testing.T) {
	tbl := NewTable()
	id := StorageIdentity{ContainerUUID: "c1", BackendID: "b1"}
	tbl.Put(&MountedStorage{Identity: id})

	removed, ok := tbl.Delete(id)
	if !ok || removed == nil {
		t.Fatal("expected Delete to find and return the entry")
	}
	if _, ok := tbl.Get(id); ok {
		t.Error("expected Get to fail after Delete")
	}
}

func TestTableDeleteMissingReportsFalse(t *testing.T) {
	tbl := NewTable()
	if _, ok := tbl.Delete(StorageIdentity{ContainerUUID: "nope"}); ok {
		t.Error("expected Delete of a missing identity to report false")
	}
}

func TestTableChildrenOfTracksParenthood(t *testing.T) {
	tbl := NewTable()
	parent := StorageIdentity{ContainerUUID: "parent", BackendID: "b0"}
	child := StorageIdentity{ContainerUUID: "child", BackendID: "b1"}
	tbl.Put(&MountedStorage{Identity: parent})
	tbl.Put(&MountedStorage{Identity: child, ParentUUID: "parent"})

	kids := tbl.ChildrenOf("parent")
	if len(kids) != 1 || kids[0] != child {
		t.Errorf("ChildrenOf(parent) = %v, want [%v]", kids, child)
	}
	if len(tbl.ChildrenOf("child")) != 0 {
		t.Error("expected no children recorded for the child identity")
	}
}

func TestTableAllReturnsEveryEntry(t *testing.T) {
	tbl := NewTable()
	tbl.Put(&MountedStorage{Identity: StorageIdentity{ContainerUUID: "a", BackendID: "b"}})
	tbl.Put(&MountedStorage{Identity: StorageIdentity{ContainerUUID: "c", BackendID: "d"}})
	if len(tbl.All()) != 2 {
		t.Errorf("All() = %d entries, want 2", len(tbl.All()))
	}
}

func TestTableHasPrimary(t *testing.T) {
	tbl := NewTable()
	if tbl.HasPrimary("c1") {
		t.Error("expected HasPrimary to be false before any mount")
	}
	tbl.Put(&MountedStorage{Identity: StorageIdentity{ContainerUUID: "c1", BackendID: "b1"}, Owner: sig.Owner("0xaa")})
	if !tbl.HasPrimary("c1") {
		t.Error("expected HasPrimary to be true after a mount for c1")
	}
	if tbl.HasPrimary("c2") {
		t.Error("expected HasPrimary(c2) to stay false, unrelated container")
	}
}
