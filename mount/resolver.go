package mount

import (
	"fmt"

	"github.com/wildland-go/wildland/backend"
	"github.com/wildland-go/wildland/backend/categorization"
	"github.com/wildland-go/wildland/backend/dateproxy"
	"github.com/wildland-go/wildland/backend/delegate"
	"github.com/wildland-go/wildland/client"
	"github.com/wildland-go/wildland/object"
)

// wireBackendResolvers installs the package-level resolver hooks that let
// the delegate, date-proxy and categorization backends look up the storage
// a "reference-container" field names, without those packages importing
// client (which would cycle back through backend.FromParams). This mirrors
// the injection points described in SPEC_FULL.md's domain stack: only the
// mount controller imports both backend and client.
func (ctl *Controller) wireBackendResolvers() {
	client.SetBackendSupportCheck(backend.IsTypeSupported)
	delegate.SetResolver(ctl.resolveReferenceContainer)
	dateproxy.Resolver = ctl.resolveReferenceContainer
	categorization.Resolver = ctl.resolveReferenceContainer
}

// resolveReferenceContainer looks up a container by UUID path
// (/.uuid/<uuid>) or by one of its declared paths among the client's
// locally loaded containers, then constructs a backend for its selected
// storage, the way original_source's storage_backends resolve a
// "reference-container" field back into a live backend.
func (ctl *Controller) resolveReferenceContainer(referenceContainer string) (backend.Backend, error) {
	var found *object.Container
	for _, c := range ctl.Client.Containers() {
		for _, p := range c.ExpandedPaths() {
			if p == referenceContainer {
				found = c
				break
			}
		}
		if found != nil {
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("mount: reference-container %q not found among local containers", referenceContainer)
	}

	storage, err := ctl.Client.SelectStorage(found)
	if err != nil {
		return nil, err
	}
	return backend.FromParams(storage.Params(), storage.ReadOnly())
}
