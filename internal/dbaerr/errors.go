// Package dbaerr defines the stable error codes used across the cluster
// admin engine, modeled on the SHERR_DBA_* codes in mysql-shell's adminapi.
package dbaerr

import (
	"errors"
	"fmt"
)

// Code identifies a specific admin-engine failure condition.
type Code string

const (
	CodeInstanceNotManaged        Code = "INSTANCE_NOT_MANAGED"
	CodeInstanceNotOnline         Code = "INSTANCE_NOT_ONLINE"
	CodeInstanceManagedInCluster  Code = "INSTANCE_MANAGED_IN_CLUSTER"
	CodeInstanceNotInClusterSet   Code = "INSTANCE_NOT_IN_CLUSTERSET"
	CodeInstanceManagedInReplSet  Code = "INSTANCE_MANAGED_IN_REPLICASET"
	CodeClusterAlreadyInClusterSet Code = "CLUSTER_ALREADY_IN_CLUSTERSET"
	CodeGroupHasNoQuorum          Code = "GROUP_HAS_NO_QUORUM"
	CodeCloneNoDonors             Code = "CLONE_NO_DONORS"
	CodeCloneNoSupport            Code = "CLONE_NO_SUPPORT"
	CodeCloneDisabled             Code = "CLONE_DISABLED"
	CodeDataErrantTransactions    Code = "DATA_ERRANT_TRANSACTIONS"
	CodeGroupReplicationMembersLimit Code = "GROUP_REPLICATION_MEMBERS_LIMIT"
	CodeMetadataIncompatible      Code = "METADATA_INCOMPATIBLE"
	CodeRoutingGuidelineInUse     Code = "ROUTING_GUIDELINE_IN_USE"
	CodeRouterUnsupportedFeature  Code = "ROUTER_UNSUPPORTED_FEATURE"
	CodePreconditionFailed        Code = "PRECONDITION_FAILED"
	CodeUnsupportedVersion        Code = "UNSUPPORTED_VERSION"
	CodeMetadataInconsistent      Code = "METADATA_INCONSISTENT"
	CodeOperationCancelled        Code = "OPERATION_CANCELLED"
	CodeInvalidArgument           Code = "INVALID_ARGUMENT"
	CodeConnectionLost            Code = "CONNECTION_LOST"
)

// Error is the engine's typed error, wrapping a Code, the offending
// operation name, and (if any) the underlying cause.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(op string, code Code, format string, args ...any) *Error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &Error{Code: code, Op: op, Err: err}
}

// Wrap builds an *Error around an existing error.
func Wrap(op string, code Code, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
