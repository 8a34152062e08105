package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/jkaninda/mealplanner/internal/storage"
)

type opKind int

const (
	opRead opKind = iota
	opScan
	opWrite
	opDelete
)

// translate maps a DynamoDB error onto the storage taxonomy, keeping err as the cause.
// A missing table is NotFound for keyed reads and deletes but Internal for
// scans and writes, where it can only mean a deployment fault.
func translate(op opKind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", storage.ErrInternal, err)
	}

	switch apiErr.ErrorCode() {
	case "ResourceNotFoundException":
		if op == opScan || op == opWrite {
			return fmt.Errorf("%w: %w", storage.ErrInternal, err)
		}
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case "ConditionalCheckFailedException":
		if op == opDelete {
			return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		}
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	case "TransactionConflictException":
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", storage.ErrInternal, err)
	}
}
