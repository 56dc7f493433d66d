package awsapi

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/smithy-go"
)

// Kind buckets an AWS API failure into the categories the pollers and their
// error counters distinguish.
type Kind int

const (
	// KindUnknown covers API failures with no more specific bucket.
	KindUnknown Kind = iota
	// KindInvalidCredentials means credentials could not be resolved or were
	// rejected outright.
	KindInvalidCredentials
	// KindInsufficientPermissions means the credentials are valid but lack
	// permission for the attempted operation.
	KindInsufficientPermissions
	// KindBadRegion means the configured region is not syntactically valid.
	KindBadRegion
	// KindNetwork means the request never produced an API response.
	KindNetwork
	// KindNoError is the answer to a dry-run request that would have
	// succeeded. Callers probing with DryRun must treat it as success.
	KindNoError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindInsufficientPermissions:
		return "insufficient permissions"
	case KindBadRegion:
		return "bad region"
	case KindNetwork:
		return "network"
	case KindNoError:
		return "no error"
	default:
		return "unknown"
	}
}

// EC2 API operations the exporter performs, as they appear in Error.Op and in
// IAM policy actions.
const (
	OpDescribeInstances        = "DescribeInstances"
	OpDescribeSpotPriceHistory = "DescribeSpotPriceHistory"

	opLoadConfig          = "LoadDefaultConfig"
	opRetrieveCredentials = "RetrieveCredentials"
)

// Error is a classified failure of a single AWS API operation.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "DescribeInstances"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes the EC2 API uses for the failure modes the pollers distinguish.
// Matching also scans message text, since middleware layers sometimes re-wrap
// these responses under a generic code with the original one left in the
// message.
const (
	codeDryRun       = "DryRunOperation"
	codeUnauthorized = "UnauthorizedOperation"
	codeAuthFailure  = "AuthFailure"
)

// Classify maps err onto the Kind taxonomy for the named operation. A nil err
// classifies to nil. Marker codes are checked in a fixed order, so a dry-run
// answer wins over anything else in the same response.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch {
		case matchesCode(apiErr, codeDryRun):
			return &Error{Kind: KindNoError, Op: op, Err: err}
		case matchesCode(apiErr, codeUnauthorized):
			return &Error{Kind: KindInsufficientPermissions, Op: op, Err: err}
		case matchesCode(apiErr, codeAuthFailure):
			return &Error{Kind: KindInvalidCredentials, Op: op, Err: err}
		}
		return &Error{Kind: KindUnknown, Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}

func matchesCode(apiErr smithy.APIError, code string) bool {
	return apiErr.ErrorCode() == code || strings.Contains(apiErr.ErrorMessage(), code)
}
