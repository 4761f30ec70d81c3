package errcode

const groupManifest = "wildland.manifest"
const groupResolver = "wildland.resolver"
const groupMount = "wildland.mount"

var (
	// ErrorCodeUnknown is the catch-all for an error with no specific
	// classification.
	ErrorCodeUnknown = Register("errcode", ErrorDescriptor{
		Value:       "UNKNOWN",
		Message:     "unknown error",
		Description: "Generic error with no Wildland-specific classification.",
	})

	// ErrorCodeMalformedManifest is returned when a manifest envelope
	// can't be split into header and body, or the YAML in either half
	// doesn't parse.
	ErrorCodeMalformedManifest = Register(groupManifest, ErrorDescriptor{
		Value:       "MALFORMED_MANIFEST",
		Message:     "malformed manifest: %s",
		Description: "The manifest envelope is not well-formed YAML, or is missing the header/body delimiter.",
		Recoverable: false,
	})

	// ErrorCodeSchemaError is returned when a manifest's body fails
	// validation against its object type's JSON-schema subset.
	ErrorCodeSchemaError = Register(groupManifest, ErrorDescriptor{
		Value:       "SCHEMA_ERROR",
		Message:     "manifest failed schema validation: %s",
		Description: "The manifest body does not conform to the schema for its declared object type.",
		Recoverable: false,
	})

	// ErrorCodeSignatureError is returned when a manifest's signature
	// does not verify against its owner's public key, or the owner is
	// unknown to the signature context.
	ErrorCodeSignatureError = Register(groupManifest, ErrorDescriptor{
		Value:       "SIGNATURE_ERROR",
		Message:     "signature verification failed: %s",
		Description: "The manifest's detached signature could not be verified against the claimed owner.",
		Recoverable: false,
	})

	// ErrorCodeNotFound is returned when a path, manifest, or object
	// can't be located.
	ErrorCodeNotFound = Register(groupResolver, ErrorDescriptor{
		Value:       "NOT_FOUND",
		Message:     "not found: %s",
		Description: "The requested path, manifest, or object does not exist.",
		Recoverable: true,
	})

	// ErrorCodePermissionDenied is returned when an operation is
	// disallowed by a backend's read_only flag or filesystem permission.
	ErrorCodePermissionDenied = Register(groupResolver, ErrorDescriptor{
		Value:       "PERMISSION_DENIED",
		Message:     "permission denied: %s",
		Description: "The operation is not permitted on a read-only backend or path.",
		Recoverable: false,
	})

	// ErrorCodePathError is returned when a WildlandPath string fails to
	// parse.
	ErrorCodePathError = Register(groupResolver, ErrorDescriptor{
		Value:       "PATH_ERROR",
		Message:     "invalid wildland path: %s",
		Description: "The path string does not match the wildland path grammar.",
		Recoverable: false,
	})

	// ErrorCodeUntrustedSigner is returned when a search step crosses a
	// bridge whose target user manifest is signed by a key that isn't
	// trusted in the directory the bridge lives in.
	ErrorCodeUntrustedSigner = Register(groupResolver, ErrorDescriptor{
		Value:       "UNTRUSTED_SIGNER",
		Message:     "untrusted signer for bridge target: %s",
		Description: "A .wildland-owners trust file does not grant trust to this signer in the directory the bridge manifest lives in.",
		Recoverable: true,
	})

	// ErrorCodeAlreadyMounted is returned when mount_many is asked to
	// mount a (container uuid, backend-id) pair already present in the
	// live mount table.
	ErrorCodeAlreadyMounted = Register(groupMount, ErrorDescriptor{
		Value:       "ALREADY_MOUNTED",
		Message:     "already mounted: %s",
		Description: "The container/backend pair is already present in the mount table.",
		Recoverable: true,
	})

	// ErrorCodeOrphanedStorage is returned when a storage's container
	// cannot be found during mount-table reconciliation.
	ErrorCodeOrphanedStorage = Register(groupMount, ErrorDescriptor{
		Value:       "ORPHANED_STORAGE",
		Message:     "orphaned storage: %s",
		Description: "A mounted storage no longer has a corresponding container in the mount plan.",
		Recoverable: true,
	})

	// ErrorCodeConflictDuringSync is returned when the sync daemon finds
	// that both the source and destination storage changed a file since
	// the last recorded hash.
	ErrorCodeConflictDuringSync = Register(groupMount, ErrorDescriptor{
		Value:       "CONFLICT_DURING_SYNC",
		Message:     "sync conflict: %s",
		Description: "Both storages changed the same file since the last synchronized hash; manual resolution is required.",
		Recoverable: true,
	})

	// ErrorCodeBackendInitError is returned when a storage backend fails
	// to construct from its manifest params.
	ErrorCodeBackendInitError = Register(groupMount, ErrorDescriptor{
		Value:       "BACKEND_INIT_ERROR",
		Message:     "backend initialization failed: %s",
		Description: "The storage backend could not be constructed from its manifest parameters.",
		Recoverable: false,
	})
)
