package stream

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/plinth/mutate"
)

// fakeDynamo is a minimal conditional-put DynamoAPI for handler tests.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) key(table string, key map[string]types.AttributeValue) string {
	return table + "/" + key["id"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[f.key(*params.TableName, params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(*params.TableName, params.Item)
	existing := f.items[k]

	switch *params.ConditionExpression {
	case "attribute_not_exists(#version)":
		if existing != nil {
			if _, ok := existing["version"]; ok {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	case "#version = :expected_version":
		if existing == nil {
			return nil, &types.ConditionalCheckFailedException{}
		}
		current := existing["version"].(*types.AttributeValueMemberN)
		expected := params.ExpressionAttributeValues[":expected_version"].(*types.AttributeValueMemberN)
		if current.Value != expected.Value {
			return nil, &types.ConditionalCheckFailedException{}
		}
	default:
		return nil, fmt.Errorf("fake: unexpected condition %q", *params.ConditionExpression)
	}

	f.items[k] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) tally(t *testing.T, table, id string) int64 {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[table+"/"+id]
	if !ok {
		t.Fatalf("tally record %s/%s not found", table, id)
	}
	n := item["item_count"].(*types.AttributeValueMemberN)
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		t.Fatalf("item_count holds %q: %v", n.Value, err)
	}
	return v
}

func streamRecord(table, eventName string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:        "evt-" + table + "-" + eventName,
		EventName:      eventName,
		EventSourceArn: "arn:aws:dynamodb:us-east-1:123456789012:table/" + table + "/stream/2024-01-01T00:00:00.000",
	}
}

func newTestHandler(fake *fakeDynamo) *Handler {
	m := mutate.New(fake, mutate.DefaultConfig())
	return NewHandler(m, "tallies", nil)
}

func TestHandleTally_InsertsAndRemoves(t *testing.T) {
	fake := newFakeDynamo()
	h := newTestHandler(fake)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("orders", "INSERT"),
		streamRecord("orders", "INSERT"),
		streamRecord("orders", "INSERT"),
		streamRecord("orders", "REMOVE"),
	}}

	if err := h.HandleTally(context.Background(), event); err != nil {
		t.Fatalf("HandleTally returned error: %v", err)
	}
	if got := fake.tally(t, "tallies", "orders"); got != 2 {
		t.Errorf("expected tally 2, got %d", got)
	}
}

func TestHandleTally_MultipleSourceTables(t *testing.T) {
	fake := newFakeDynamo()
	h := newTestHandler(fake)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("orders", "INSERT"),
		streamRecord("users", "INSERT"),
		streamRecord("users", "INSERT"),
	}}

	if err := h.HandleTally(context.Background(), event); err != nil {
		t.Fatalf("HandleTally returned error: %v", err)
	}
	if got := fake.tally(t, "tallies", "orders"); got != 1 {
		t.Errorf("expected orders tally 1, got %d", got)
	}
	if got := fake.tally(t, "tallies", "users"); got != 2 {
		t.Errorf("expected users tally 2, got %d", got)
	}
}

func TestHandleTally_ModifyIgnored(t *testing.T) {
	fake := newFakeDynamo()
	h := newTestHandler(fake)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("orders", "MODIFY"),
	}}

	if err := h.HandleTally(context.Background(), event); err != nil {
		t.Fatalf("HandleTally returned error: %v", err)
	}
	if len(fake.items) != 0 {
		t.Errorf("expected no tally writes for MODIFY, got %d items", len(fake.items))
	}
}

func TestHandleTally_BalancedBatchWritesNothing(t *testing.T) {
	fake := newFakeDynamo()
	h := newTestHandler(fake)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("orders", "INSERT"),
		streamRecord("orders", "REMOVE"),
	}}

	if err := h.HandleTally(context.Background(), event); err != nil {
		t.Fatalf("HandleTally returned error: %v", err)
	}
	if len(fake.items) != 0 {
		t.Errorf("expected no write for net-zero delta, got %d items", len(fake.items))
	}
}

func TestHandleTally_UnrecognizedARNSkipped(t *testing.T) {
	fake := newFakeDynamo()
	h := newTestHandler(fake)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		{EventID: "evt-1", EventName: "INSERT", EventSourceArn: "arn:aws:dynamodb:malformed"},
		streamRecord("orders", "INSERT"),
	}}

	if err := h.HandleTally(context.Background(), event); err != nil {
		t.Fatalf("HandleTally returned error: %v", err)
	}
	if got := fake.tally(t, "tallies", "orders"); got != 1 {
		t.Errorf("expected orders tally 1, got %d", got)
	}
}

func TestHandleTally_AccumulatesAcrossBatches(t *testing.T) {
	fake := newFakeDynamo()
	h := newTestHandler(fake)
	ctx := context.Background()

	first := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("orders", "INSERT"),
		streamRecord("orders", "INSERT"),
	}}
	second := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("orders", "REMOVE"),
	}}

	if err := h.HandleTally(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := h.HandleTally(ctx, second); err != nil {
		t.Fatal(err)
	}
	if got := fake.tally(t, "tallies", "orders"); got != 1 {
		t.Errorf("expected tally 1 after both batches, got %d", got)
	}
}

// --- tableFromStreamARN Tests ---

func TestTableFromStreamARN(t *testing.T) {
	tests := []struct {
		arn      string
		expected string
	}{
		{"arn:aws:dynamodb:us-east-1:123456789012:table/orders/stream/2024-01-01T00:00:00.000", "orders"},
		{"arn:aws:dynamodb:eu-west-1:1:table/my-table/stream/x", "my-table"},
		{"arn:aws:dynamodb:us-east-1:1:table/bare", "bare"},
		{"arn:aws:s3:::bucket", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := tableFromStreamARN(tt.arn); got != tt.expected {
			t.Errorf("tableFromStreamARN(%q) = %q, want %q", tt.arn, got, tt.expected)
		}
	}
}

// --- ConvertStreamKey Tests ---

func TestConvertStreamKey_String(t *testing.T) {
	streamKey := map[string]events.DynamoDBAttributeValue{
		"id": events.NewStringAttribute("test-id"),
	}

	result := ConvertStreamKey(streamKey)

	v, ok := result["id"].(*types.AttributeValueMemberS)
	if !ok {
		t.Fatal("expected string attribute")
	}
	if v.Value != "test-id" {
		t.Errorf("expected 'test-id', got %q", v.Value)
	}
}

func TestConvertStreamKey_Number(t *testing.T) {
	streamKey := map[string]events.DynamoDBAttributeValue{
		"seq": events.NewNumberAttribute("42"),
	}

	result := ConvertStreamKey(streamKey)

	v, ok := result["seq"].(*types.AttributeValueMemberN)
	if !ok {
		t.Fatal("expected number attribute")
	}
	if v.Value != "42" {
		t.Errorf("expected '42', got %q", v.Value)
	}
}

func TestConvertStreamKey_Binary(t *testing.T) {
	streamKey := map[string]events.DynamoDBAttributeValue{
		"blob": events.NewBinaryAttribute([]byte{0x01, 0x02}),
	}

	result := ConvertStreamKey(streamKey)

	v, ok := result["blob"].(*types.AttributeValueMemberB)
	if !ok {
		t.Fatal("expected binary attribute")
	}
	if len(v.Value) != 2 || v.Value[0] != 0x01 {
		t.Errorf("unexpected binary value %v", v.Value)
	}
}

func TestConvertStreamKey_Empty(t *testing.T) {
	result := ConvertStreamKey(map[string]events.DynamoDBAttributeValue{})
	if len(result) != 0 {
		t.Errorf("expected empty PK, got %d entries", len(result))
	}
}
