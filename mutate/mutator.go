package mutate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of *dynamodb.Client the mutator depends on.
// It mirrors the method signatures of the AWS SDK v2 client so either the
// real client or an in-memory fake satisfies it.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

var (
	commitsTotal   = metrics.GetOrCreateCounter(`plinth_mutate_commits_total`)
	conflictsTotal = metrics.GetOrCreateCounter(`plinth_mutate_conflicts_total`)
)

// Mutator performs linearizable single-record mutations on DynamoDB via a
// compare-and-retry loop over the item's version attribute. It holds no
// record state beyond the duration of one call; concurrent use is safe.
type Mutator struct {
	client DynamoAPI
	config Config
}

// New creates a new Mutator instance.
func New(client DynamoAPI, config Config) *Mutator {
	config.validate()
	return &Mutator{
		client: client,
		config: config,
	}
}

// Apply reads the current record, applies fn, and commits the result with
// a conditional write over the version the snapshot was read at. Rejected
// conditions re-read and retry up to Config.MaxAttempts before failing
// with ErrContention; an expired context fails with ErrTimeout instead.
// Errors returned by fn abort immediately and are never retried.
//
// Every successful call performs exactly one durable write. A nil current
// record is a valid state: fn receives nil and may build a record from
// scratch, or return ErrMissingBase if it needs a base.
func (m *Mutator) Apply(ctx context.Context, table string, key PK, fn Mutation) (*Record, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}

		current, err := m.read(ctx, table, key)
		if err != nil {
			return nil, m.mapDeadline(ctx, err)
		}

		next, err := fn(current)
		if err != nil {
			return nil, err
		}

		committed, err := m.write(ctx, table, key, current, next)
		if err == nil {
			commitsTotal.Inc()
			return committed, nil
		}

		var condErr *types.ConditionalCheckFailedException
		if !errors.As(err, &condErr) {
			return nil, m.mapDeadline(ctx, err)
		}

		conflictsTotal.Inc()
		switch nextStep(attempt, m.config.MaxAttempts, ctx.Err()) {
		case stepRetry:
			m.config.Logger.Debug("conditional write rejected, retrying",
				"table", table,
				"attempt", attempt,
			)
		case stepFailTimeout:
			return nil, fmt.Errorf("%w: after %d attempts", ErrTimeout, attempt)
		case stepFailContention:
			return nil, fmt.Errorf("%w: %d attempts on table %q", ErrContention, attempt, table)
		}
	}
}

// SetField sets a single field to value, creating the record if absent.
// value is marshalled with the standard attributevalue rules.
func (m *Mutator) SetField(ctx context.Context, table string, key PK, field string, value any) (*Record, error) {
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal field %q: %w", field, err)
	}

	return m.Apply(ctx, table, key, func(current *Record) (map[string]types.AttributeValue, error) {
		next := cloneAttributes(current)
		next[field] = av
		return next, nil
	})
}

// AddToField atomically adds delta to an integer field. The record must
// exist (ErrMissingBase otherwise) and the field must hold an integer
// number (ErrTypeMismatch otherwise); an overflowing sum fails with
// ErrOverflow rather than wrapping.
func (m *Mutator) AddToField(ctx context.Context, table string, key PK, field string, delta int64) (*Record, error) {
	return m.Apply(ctx, table, key, func(current *Record) (map[string]types.AttributeValue, error) {
		n, err := numericField(current, field)
		if err != nil {
			return nil, err
		}
		base, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q holds non-integer number %q", ErrTypeMismatch, field, n.Value)
		}
		sum, ok := addInt64(base, delta)
		if !ok {
			return nil, fmt.Errorf("%w: %d + %d on field %q", ErrOverflow, base, delta, field)
		}

		next := cloneAttributes(current)
		next[field] = &types.AttributeValueMemberN{Value: strconv.FormatInt(sum, 10)}
		return next, nil
	})
}

// AddFloatToField atomically adds delta to a floating-point field. Same
// base and type requirements as AddToField.
func (m *Mutator) AddFloatToField(ctx context.Context, table string, key PK, field string, delta float64) (*Record, error) {
	return m.Apply(ctx, table, key, func(current *Record) (map[string]types.AttributeValue, error) {
		n, err := numericField(current, field)
		if err != nil {
			return nil, err
		}
		base, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q holds non-numeric value %q", ErrTypeMismatch, field, n.Value)
		}

		next := cloneAttributes(current)
		next[field] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(base+delta, 'g', -1, 64)}
		return next, nil
	})
}

// Read returns the current record under key, or nil if none exists. The
// read is strongly consistent so a record committed by SetField is visible
// immediately.
func (m *Mutator) Read(ctx context.Context, table string, key PK) (*Record, error) {
	return m.read(ctx, table, key)
}

func (m *Mutator) read(ctx context.Context, table string, key PK) (*Record, error) {
	result, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, nil
	}
	return unmarshalRecord(result.Item), nil
}

// write commits next over the version current was read at. The version and
// updated_at attributes are stamped here; the key attributes are merged in
// so mutations need not repeat them.
func (m *Mutator) write(ctx context.Context, table string, key PK, current *Record, next map[string]types.AttributeValue) (*Record, error) {
	item := make(map[string]types.AttributeValue, len(next)+len(key)+2)
	for k, v := range next {
		item[k] = v
	}
	for k, v := range key {
		item[k] = v
	}

	var readVersion int64
	if current != nil {
		readVersion = current.Version
	}
	newVersion := readVersion + 1
	now := time.Now().UTC().Format(time.RFC3339)
	item["version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(newVersion, 10)}
	item["updated_at"] = &types.AttributeValueMemberS{Value: now}

	input := &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ExpressionAttributeNames: map[string]string{"#version": "version"},
	}
	if readVersion == 0 {
		// Absent record, or an item that predates version management.
		input.ConditionExpression = aws.String("attribute_not_exists(#version)")
	} else {
		input.ConditionExpression = aws.String("#version = :expected_version")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(readVersion, 10)},
		}
	}

	if _, err := m.client.PutItem(ctx, input); err != nil {
		return nil, err
	}

	return &Record{Attributes: item, Version: newVersion, UpdatedAt: now}, nil
}

// mapDeadline folds SDK-level deadline failures into ErrTimeout so callers
// see one timeout error regardless of where the deadline fired.
func (m *Mutator) mapDeadline(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// numericField extracts a number attribute for the increment operations.
func numericField(current *Record, field string) (*types.AttributeValueMemberN, error) {
	if current == nil {
		return nil, ErrMissingBase
	}
	attr, ok := current.Attributes[field]
	if !ok {
		return nil, fmt.Errorf("%w: field %q does not exist", ErrTypeMismatch, field)
	}
	n, ok := attr.(*types.AttributeValueMemberN)
	if !ok {
		return nil, fmt.Errorf("%w: field %q is not a number", ErrTypeMismatch, field)
	}
	return n, nil
}

// unmarshalRecord converts a raw DynamoDB item to a Record snapshot.
func unmarshalRecord(raw map[string]types.AttributeValue) *Record {
	rec := &Record{Attributes: raw}

	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		rec.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["updated_at"].(*types.AttributeValueMemberS); ok {
		rec.UpdatedAt = v.Value
	}

	return rec
}
