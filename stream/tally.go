// Package stream provides a DynamoDB Streams handler that maintains
// per-table tally records through atomic mutations.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/plinth/mutate"
)

// Handler processes DynamoDB stream events and keeps one tally record per
// source table, counting live items via the mutator's retry loop. Replayed
// batches re-apply their deltas, so the tally is an operational signal,
// not an exact count.
type Handler struct {
	mutator    *mutate.Mutator
	tallyTable string
	logger     *slog.Logger
}

// NewHandler creates a new stream handler writing tallies to tallyTable.
func NewHandler(m *mutate.Mutator, tallyTable string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		mutator:    m,
		tallyTable: tallyTable,
		logger:     logger,
	}
}

// HandleTally adjusts per-table item tallies from a stream batch. This
// function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleTally(ctx context.Context, event events.DynamoDBEvent) error {
	deltas := make(map[string]int64)
	for _, record := range event.Records {
		table := tableFromStreamARN(record.EventSourceArn)
		if table == "" {
			h.logger.Warn("skipping record with unrecognized source ARN",
				"eventID", record.EventID,
				"arn", record.EventSourceArn,
			)
			continue
		}
		switch record.EventName {
		case "INSERT":
			deltas[table]++
		case "REMOVE":
			deltas[table]--
		}
	}

	for table, delta := range deltas {
		if delta == 0 {
			continue
		}
		if err := h.applyDelta(ctx, table, delta); err != nil {
			h.logger.Error("failed to apply tally delta",
				"sourceTable", table,
				"delta", delta,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
		h.logger.Info("tally updated",
			"sourceTable", table,
			"delta", delta,
		)
	}
	return nil
}

// applyDelta commits one tally adjustment, creating the tally record on
// first sight of a table.
func (h *Handler) applyDelta(ctx context.Context, sourceTable string, delta int64) error {
	key := mutate.PK{
		"id": &types.AttributeValueMemberS{Value: sourceTable},
	}
	_, err := h.mutator.Apply(ctx, h.tallyTable, key, func(current *mutate.Record) (map[string]types.AttributeValue, error) {
		var count int64
		if current != nil {
			if n, ok := current.Field("item_count"); ok {
				num, isNum := n.(*types.AttributeValueMemberN)
				if !isNum {
					return nil, fmt.Errorf("%w: item_count on tally %q", mutate.ErrTypeMismatch, sourceTable)
				}
				count, _ = strconv.ParseInt(num.Value, 10, 64)
			}
		}
		return map[string]types.AttributeValue{
			"item_count": &types.AttributeValueMemberN{Value: strconv.FormatInt(count+delta, 10)},
		}, nil
	})
	return err
}

// tableFromStreamARN extracts the table name from a stream source ARN of
// the form arn:aws:dynamodb:region:account:table/NAME/stream/LABEL.
func tableFromStreamARN(arn string) string {
	_, rest, found := strings.Cut(arn, ":table/")
	if !found {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// ConvertStreamKey converts a DynamoDB stream key to a mutate.PK.
// Use this when feeding stream record keys into mutator operations.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) mutate.PK {
	result := make(mutate.PK)
	for k, v := range streamKey {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		}
	}
	return result
}
