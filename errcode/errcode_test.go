package errcode

import (
	"errors"
	"strings"
	"testing"
)

func TestWithArgsFillsMessage(t *testing.T) {
	err := ErrorCodeNotFound.WithArgs("/videos/cats")
	if got := err.Error(); !strings.Contains(got, "/videos/cats") {
		t.Errorf("Error() = %q, want it to contain the path", got)
	}
}

func TestWithDetailAppendsDetail(t *testing.T) {
	err := ErrorCodeUnknown.WithDetail("extra context")
	if got := err.Error(); !strings.Contains(got, "extra context") {
		t.Errorf("Error() = %q, want it to contain the detail", got)
	}
}

func TestWithWrappedPreservesErrorsAs(t *testing.T) {
	cause := errors.New("underlying cause")
	err := ErrorCodeSchemaError.WithArgs("bad field").WithWrapped(cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}

	var e Error
	if !errors.As(err, &e) {
		t.Fatal("expected errors.As to match Error")
	}
	if e.Code != ErrorCodeSchemaError {
		t.Errorf("Code = %v, want ErrorCodeSchemaError", e.Code)
	}
}

func TestDescriptorRecoverableFlag(t *testing.T) {
	if !ErrorCodeNotFound.Descriptor().Recoverable {
		t.Error("ErrorCodeNotFound should be recoverable")
	}
	if ErrorCodeSignatureError.Descriptor().Recoverable {
		t.Error("ErrorCodeSignatureError should not be recoverable")
	}
}

func TestUnknownCodeFallsBackToErrorCodeUnknown(t *testing.T) {
	var bogus ErrorCode = 999999
	if bogus.Descriptor().Value != ErrorCodeUnknown.Descriptor().Value {
		t.Errorf("Descriptor() for an unregistered code = %q, want %q", bogus.Descriptor().Value, ErrorCodeUnknown.Descriptor().Value)
	}
}

func TestRegisterPanicsOnDuplicateValue(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected Register to panic on a duplicate Value")
		}
	}()
	Register("test-group", ErrorDescriptor{Value: "NOT_FOUND", Message: "dup"})
}

func TestGetGroupNamesIncludesRegisteredGroups(t *testing.T) {
	names := GetGroupNames()
	found := false
	for _, n := range names {
		if n == groupManifest {
			found = true
		}
	}
	if !found {
		t.Errorf("GetGroupNames() = %v, want it to include %q", names, groupManifest)
	}
}

func TestGetErrorCodeGroupReturnsSortedDescriptors(t *testing.T) {
	descs := GetErrorCodeGroup(groupManifest)
	if len(descs) == 0 {
		t.Fatal("expected at least one descriptor in groupManifest")
	}
	for i := 1; i < len(descs); i++ {
		if descs[i-1].Value > descs[i].Value {
			t.Errorf("GetErrorCodeGroup not sorted: %q > %q", descs[i-1].Value, descs[i].Value)
		}
	}
}
