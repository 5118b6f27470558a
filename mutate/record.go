package mutate

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Record is a snapshot of one item together with the version it was read
// at. Version 0 means the item carried no version attribute yet (or did
// not exist); a conditional write over such a snapshot commits only if the
// version attribute is still absent.
type Record struct {
	// Attributes is the raw DynamoDB item, including managed fields.
	Attributes map[string]types.AttributeValue

	// Version is the optimistic-lock version the snapshot was read at.
	Version int64

	// UpdatedAt is the ISO 8601 timestamp of the last committed mutation.
	UpdatedAt string
}

// Mutation computes the next attribute map from the current record.
// current is nil when no record exists under the key; returning an error
// aborts the surrounding mutation without retrying. The version and
// updated_at attributes are managed by the mutator and overwritten on
// commit regardless of what the mutation returns.
type Mutation func(current *Record) (map[string]types.AttributeValue, error)

// Field returns the named attribute, if present.
func (r *Record) Field(name string) (types.AttributeValue, bool) {
	if r == nil || r.Attributes == nil {
		return nil, false
	}
	v, ok := r.Attributes[name]
	return v, ok
}

// Unmarshal decodes the record's attributes into out using the standard
// attributevalue rules.
func (r *Record) Unmarshal(out any) error {
	return attributevalue.UnmarshalMap(r.Attributes, out)
}

// cloneAttributes copies the current record's attributes so a mutation can
// edit them without aliasing the snapshot. A nil record yields an empty map.
func cloneAttributes(current *Record) map[string]types.AttributeValue {
	if current == nil || current.Attributes == nil {
		return map[string]types.AttributeValue{}
	}
	next := make(map[string]types.AttributeValue, len(current.Attributes))
	for k, v := range current.Attributes {
		next[k] = v
	}
	return next
}
