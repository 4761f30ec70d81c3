// Package mount implements the mount controller of spec section 4.7: a live
// table of mounted storages, the mount_many planning/reconciliation
// operation, the path-space layout consumed by an FS layer, subcontainer
// (delegate) mounting, a manifest watch daemon, and a sync daemon. Grounded
// on original_source/wildland/fuse_utils.py and cleaner/cleaner.py, with the
// concurrency shape (fan-out per plan entry, rollback on partial failure)
// following golang.org/x/sync/errgroup for the fan-out itself.
package mount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/wildland-go/wildland/backend"
	"github.com/wildland-go/wildland/backend/pseudomanifest"
	"github.com/wildland-go/wildland/client"
	"github.com/wildland-go/wildland/config"
	"github.com/wildland-go/wildland/errcode"
	"github.com/wildland-go/wildland/internal/wlcontext"
	"github.com/wildland-go/wildland/object"
	"github.com/wildland-go/wildland/sig"
)

// Controller owns the live mount table and drives mount_many plans against
// it.
type Controller struct {
	Client *client.Client
	Config *config.Configuration
	Table  *Table
}

// New builds a Controller over an already-loaded client, wiring the
// backend-side resolver hooks (delegate/date-proxy/categorization
// "reference-container" lookups, and client's backend-support check) so
// manifests naming layered storage types resolve correctly from here on.
func New(c *client.Client, cfg *config.Configuration) *Controller {
	ctl := &Controller{Client: c, Config: cfg, Table: NewTable()}
	ctl.wireBackendResolvers()
	return ctl
}

// PlanEntry is one (container, storages, user-paths, parent?) tuple of a
// mount_many plan, spec section 4.7.
type PlanEntry struct {
	Container   *object.Container
	Storages    []*object.Storage
	UserPaths   []string
	Parent      *object.Container
	BridgePaths []string
	Remount     bool
}

// MountMany mounts every plan entry in parallel. If any entry hits
// BackendInitError, everything mounted so far by this call is rolled back
// and the first such error is returned; independent AlreadyMounted failures
// on other entries do not trigger a rollback, since they leave the table in
// a perfectly consistent (if unsurprising) state.
func (ctl *Controller) MountMany(ctx context.Context, plan []PlanEntry) error {
	cleanup := NewCleanup()
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var errs []error
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, entry := range plan {
		entry := entry
		g.Go(func() error {
			record(ctl.mountOne(gctx, entry, cleanup))
			return nil
		})
	}
	_ = g.Wait()

	if initErr := firstInitError(errs); initErr != nil {
		cleanup.Rollback()
		return fmt.Errorf("mount: plan failed, rolled back: %w", initErr)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func firstInitError(errs []error) error {
	for _, err := range errs {
		var e errcode.Error
		if errors.As(err, &e) && e.Code == errcode.ErrorCodeBackendInitError {
			return err
		}
	}
	return nil
}

func (ctl *Controller) mountOne(ctx context.Context, entry PlanEntry, cleanup *Cleanup) error {
	logger := wlcontext.GetLogger(ctx)
	c := entry.Container
	owner := c.Owner()
	uuid := c.EnsureUUID()

	if ctl.Table.HasPrimary(uuid) && !entry.Remount {
		return errcode.ErrorCodeAlreadyMounted.WithArgs(uuid)
	}

	primary := choosePrimary(entry.Storages)

	for _, st := range entry.Storages {
		identity := StorageIdentity{ContainerUUID: uuid, BackendID: st.BackendID()}
		fp := fingerprint(st.Params(), entry.UserPaths)

		if existing, ok := ctl.Table.Get(identity); ok {
			if existing.Fingerprint == fp {
				continue
			}
			if !entry.Remount {
				return errcode.ErrorCodeAlreadyMounted.WithArgs(identity.BackendID)
			}
		}

		b, err := backend.FromParams(st.Params(), st.ReadOnly())
		if err != nil {
			return errcode.ErrorCodeBackendInitError.WithArgs(err.Error())
		}
		if err := b.Mount(ctx); err != nil {
			return errcode.ErrorCodeBackendInitError.WithArgs(err.Error())
		}
		cleanup.Push(func() { _ = b.Unmount(ctx) })

		mounted := &MountedStorage{
			Identity:    identity,
			Owner:       owner,
			Paths:       append([]string{backendMountPath(owner, uuid, st.BackendID())}, aliasSymlinks(owner, c, entry.BridgePaths)...),
			Params:      st.Params(),
			Fingerprint: fp,
			Backend:     b,
		}
		if entry.Parent != nil {
			mounted.ParentUUID = entry.Parent.EnsureUUID()
		}
		ctl.Table.Put(mounted)
		cleanup.Push(func() { ctl.Table.Delete(identity) })

		if st == primary {
			if err := ctl.mountPseudomanifest(ctx, c, owner, uuid, st.BackendID()); err != nil {
				logger.Warnf("mount: pseudomanifest for %s failed: %v", uuid, err)
			}
			if children, err := b.GetChildren(""); err == nil && len(children) > 0 {
				ctl.mountChildren(ctx, c, children, cleanup)
			}
		}
	}

	ctl.reconcileOrphans(uuid, entry.Storages)
	return nil
}

// choosePrimary picks the first writable storage, else the first listed,
// per spec section 4.7's "primary backend" rule.
func choosePrimary(storages []*object.Storage) *object.Storage {
	if len(storages) == 0 {
		return nil
	}
	for _, s := range storages {
		if !s.ReadOnly() {
			return s
		}
	}
	return storages[0]
}

// mountPseudomanifest mounts the synthetic .manifest.wildland.yaml storage
// alongside a container's primary backend, spec section 4.7's "paired with
// a synthetic pseudomanifest storage" clause.
func (ctl *Controller) mountPseudomanifest(ctx context.Context, c *object.Container, owner sig.Owner, uuid, backendID string) error {
	text := c.M.Body
	if len(text) == 0 {
		return nil
	}
	b, err := pseudomanifest.New(map[string]any{"manifest-content": string(text)}, true)
	if err != nil {
		return err
	}
	if err := b.Mount(ctx); err != nil {
		return err
	}
	identity := StorageIdentity{ContainerUUID: uuid, BackendID: backendID + "#pseudomanifest"}
	ctl.Table.Put(&MountedStorage{
		Identity: identity,
		Owner:    owner,
		Paths:    []string{pseudomanifestMountPath(owner, uuid, backendID)},
		Backend:  b,
	})
	return nil
}

// mountChildren mounts a container's get_children subcontainers as delegate
// storages rooted at the discovered subdirectory, spec section 4.7's
// subcontainer mounting clause; the controller tracks parenthood via
// MountedStorage.ParentUUID so unmounting the parent cascades.
func (ctl *Controller) mountChildren(ctx context.Context, parent *object.Container, children []backend.Child, cleanup *Cleanup) {
	logger := wlcontext.GetLogger(ctx)
	for _, child := range children {
		childBackend, err := backend.FromParams(child.Link.StorageParams, true)
		if err != nil {
			logger.Warnf("mount: subcontainer backend for %s: %v", child.Path, err)
			continue
		}
		if err := childBackend.Mount(ctx); err != nil {
			logger.Warnf("mount: subcontainer mount for %s: %v", child.Path, err)
			continue
		}
		cleanup.Push(func() { _ = childBackend.Unmount(ctx) })

		parentUUID, _ := parent.UUID()
		identity := StorageIdentity{ContainerUUID: parentUUID + child.Path, BackendID: "delegate"}
		ctl.Table.Put(&MountedStorage{
			Identity:   identity,
			Owner:      parent.Owner(),
			Paths:      []string{userPath(parent.Owner(), child.Path)},
			Backend:    childBackend,
			ParentUUID: parentUUID,
		})
	}
}

// reconcileOrphans unmounts any storage previously mounted for containerUUID
// that no longer appears in the freshly-mounted plan, spec section 4.7's
// "storages present in the live table but absent from the plan are
// considered orphaned and unmounted" rule.
func (ctl *Controller) reconcileOrphans(containerUUID string, planStorages []*object.Storage) {
	want := map[string]bool{}
	for _, st := range planStorages {
		want[st.BackendID()] = true
	}
	for _, m := range ctl.Table.All() {
		if m.Identity.ContainerUUID != containerUUID || m.ParentUUID != "" {
			continue
		}
		if want[strings.TrimSuffix(m.Identity.BackendID, "#pseudomanifest")] {
			continue
		}
		ctl.unmountOrphan(m)
	}
}

func (ctl *Controller) unmountOrphan(m *MountedStorage) {
	logger := wlcontext.GetLogger(context.Background())
	logger.Infof("mount: unmounting orphaned storage %s/%s", m.Identity.ContainerUUID, m.Identity.BackendID)
	if m.Backend != nil {
		_ = m.Backend.Unmount(context.Background())
	}
	children := ctl.Table.ChildrenOf(m.Identity.ContainerUUID)
	ctl.Table.Delete(m.Identity)
	for _, child := range children {
		if cm, ok := ctl.Table.Get(child); ok {
			ctl.unmountOrphan(cm)
		}
	}
}

// Unmount removes identity from the table, unmounting its backend and every
// descendant delegate mount.
func (ctl *Controller) Unmount(identity StorageIdentity) error {
	m, ok := ctl.Table.Get(identity)
	if !ok {
		return errcode.ErrorCodeNotFound.WithArgs(identity.BackendID)
	}
	ctl.unmountOrphan(m)
	return nil
}

// fingerprint digests (params, paths) so remount can detect which storages
// actually changed, the comparison spec section 4.7 names directly.
func fingerprint(params map[string]any, paths []string) string {
	d := digest.FromString(fmt.Sprintf("%v|%v", params, paths))
	return d.String()
}
