// Package errcode provides a registered-error-code taxonomy for Wildland
// operations, in the same shape as the teacher's registry/api/errcode: a
// group name, an ErrorDescriptor, and a process-unique ErrorCode returned by
// Register.
//
// Descriptors carry a Recoverable flag instead of an HTTP status: nothing
// here serves HTTP, but resolver code (wlpath/search) needs to know whether
// an error should abort a whole Search.ResolveContainers/ReadFile call or just let that one
// step try the next candidate, per the propagation policy of a
// multi-candidate path resolution.
package errcode

import (
	"fmt"
	"sort"
	"sync"
)

// ErrorCode represents a process-unique, registered error condition.
type ErrorCode int

// ErrorDescriptor describes a single error condition.
type ErrorDescriptor struct {
	// Code is assigned by Register.
	Code ErrorCode
	// Value is a unique human-readable identifier, e.g. "SIGNATURE_ERROR".
	Value string
	// Message is the default error text, may contain %s placeholders
	// filled by WithArgs.
	Message string
	// Description further explains the error condition.
	Description string
	// Recoverable reports whether a resolver step may keep trying other
	// candidates after hitting this error, rather than aborting outright.
	Recoverable bool
}

func (code ErrorCode) Descriptor() ErrorDescriptor {
	d, ok := errorCodeToDescriptors[code]
	if !ok {
		return ErrorCodeUnknown.Descriptor()
	}
	return d
}

func (code ErrorCode) String() string {
	return code.Descriptor().Value
}

func (code ErrorCode) Message() string {
	return code.Descriptor().Message
}

func (code ErrorCode) Error() string {
	return code.Message()
}

// WithDetail creates a new Error carrying additional detail.
func (code ErrorCode) WithDetail(detail any) Error {
	return Error{Code: code, Detail: detail}
}

// WithArgs creates a new Error with the Message's %s placeholders filled.
func (code ErrorCode) WithArgs(args ...any) Error {
	return Error{Code: code, Args: args}
}

// Error is an ErrorCode bound to request-specific detail or arguments.
type Error struct {
	Code    ErrorCode
	Args    []any
	Detail  any
	Wrapped error
}

func (e Error) Error() string {
	msg := e.Code.Message()
	if len(e.Args) > 0 {
		msg = fmt.Sprintf(msg, e.Args...)
	}
	if e.Detail != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Detail)
	}
	return msg
}

func (e Error) Unwrap() error {
	return e.Wrapped
}

// WithWrapped attaches an underlying cause, preserving errors.Is/As chains.
func (e Error) WithWrapped(err error) Error {
	e.Wrapped = err
	return e
}

var (
	errorCodeToDescriptors = map[ErrorCode]ErrorDescriptor{}
	idToDescriptors        = map[string]ErrorDescriptor{}
	groupToDescriptors     = map[string][]ErrorDescriptor{}
	registerLock           sync.Mutex
	nextCode               = 1000
)

// Register makes the passed-in error known to the package and returns a new
// ErrorCode. Panics on duplicate registration, the same as the teacher's
// registry/api/errcode: duplicate codes are a programming error, not a
// runtime condition.
func Register(group string, descriptor ErrorDescriptor) ErrorCode {
	registerLock.Lock()
	defer registerLock.Unlock()

	descriptor.Code = ErrorCode(nextCode)
	if _, ok := idToDescriptors[descriptor.Value]; ok {
		panic(fmt.Sprintf("errcode: value %q is already registered", descriptor.Value))
	}

	groupToDescriptors[group] = append(groupToDescriptors[group], descriptor)
	errorCodeToDescriptors[descriptor.Code] = descriptor
	idToDescriptors[descriptor.Value] = descriptor
	nextCode++
	return descriptor.Code
}

type byValue []ErrorDescriptor

func (a byValue) Len() int           { return len(a) }
func (a byValue) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byValue) Less(i, j int) bool { return a[i].Value < a[j].Value }

// GetGroupNames returns the list of registered error group names.
func GetGroupNames() []string {
	keys := make([]string, 0, len(groupToDescriptors))
	for k := range groupToDescriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetErrorCodeGroup returns the descriptors registered under a group.
func GetErrorCodeGroup(name string) []ErrorDescriptor {
	desc := groupToDescriptors[name]
	sort.Sort(byValue(desc))
	return desc
}
