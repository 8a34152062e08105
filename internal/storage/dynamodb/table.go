// Package dynamodb implements the storage port on Amazon DynamoDB.
// Entities are mapped reflectively with attributevalue using dynamodbav tags;
// every table is keyed by a string partition key "id" holding a hyphenated UUID.
package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jkaninda/mealplanner/internal/storage"
)

// KeyAttribute is the partition key attribute of every table.
const KeyAttribute = "id"

// API is the subset of *dynamodb.Client used by this package.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Table is a storage.Repository over one DynamoDB table.
type Table[T any] struct {
	client API
	name   string
}

var _ storage.Repository[struct{}] = (*Table[struct{}])(nil)

// NewTable binds a repository to the named table.
func NewTable[T any](client API, name string) *Table[T] {
	return &Table[T]{client: client, name: name}
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) key(id uuid.UUID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		KeyAttribute: &types.AttributeValueMemberS{Value: id.String()},
	}
}

// GetAll scans the whole table, following pagination.
func (t *Table[T]) GetAll(ctx context.Context) ([]T, error) {
	paginator := dynamodb.NewScanPaginator(t.client, &dynamodb.ScanInput{
		TableName: aws.String(t.name),
	})

	items := []T{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translate(opScan, fmt.Errorf("scanning %s: %w", t.name, err))
		}
		var batch []T
		if err := unmarshalList(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("%w: decoding %s items: %w", storage.ErrInternal, t.name, err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

// FindByID reads one item with a strongly consistent read.
func (t *Table[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            t.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, translate(opRead, fmt.Errorf("getting %s %s: %w", t.name, id, err))
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: %s %s", storage.ErrNotFound, t.name, id)
	}

	var entity T
	if err := unmarshal(out.Item, &entity); err != nil {
		return nil, fmt.Errorf("%w: decoding %s %s: %w", storage.ErrInternal, t.name, id, err)
	}
	return &entity, nil
}

// Save writes the item unconditionally and returns the attributes it replaced.
func (t *Table[T]) Save(ctx context.Context, entity *T) (*T, error) {
	item, err := marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s item: %w", storage.ErrInternal, t.name, err)
	}

	out, err := t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:    aws.String(t.name),
		Item:         item,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, translate(opWrite, fmt.Errorf("putting %s item: %w", t.name, err))
	}
	if len(out.Attributes) == 0 {
		return nil, nil
	}

	var prior T
	if err := unmarshal(out.Attributes, &prior); err != nil {
		return nil, fmt.Errorf("%w: decoding prior %s item: %w", storage.ErrInternal, t.name, err)
	}
	return &prior, nil
}

// DeleteByID deletes the item only if it exists, so a concurrent delete is
// reported as not found rather than silently succeeding.
func (t *Table[T]) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(t.name),
		Key:                 t.key(id),
		ConditionExpression: aws.String(fmt.Sprintf("attribute_exists(%s)", KeyAttribute)),
	})
	if err != nil {
		return translate(opDelete, fmt.Errorf("deleting %s %s: %w", t.name, id, err))
	}
	return nil
}

// Describe checks that the table exists and is reachable.
func (t *Table[T]) Describe(ctx context.Context) (types.TableStatus, error) {
	out, err := t.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(t.name),
	})
	if err != nil {
		return "", translate(opWrite, fmt.Errorf("describing %s: %w", t.name, err))
	}
	if out.Table == nil {
		return "", fmt.Errorf("%w: table %s has no description", storage.ErrInternal, t.name)
	}
	return out.Table.TableStatus, nil
}

// UUIDs and other encoding.TextMarshaler values are stored as strings.
func marshal(in any) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMapWithOptions(in, func(o *attributevalue.EncoderOptions) {
		o.UseEncodingMarshalers = true
	})
}

func unmarshal(item map[string]types.AttributeValue, out any) error {
	return attributevalue.UnmarshalMapWithOptions(item, out, func(o *attributevalue.DecoderOptions) {
		o.UseEncodingUnmarshalers = true
	})
}

func unmarshalList(items []map[string]types.AttributeValue, out any) error {
	return attributevalue.UnmarshalListOfMapsWithOptions(items, out, func(o *attributevalue.DecoderOptions) {
		o.UseEncodingUnmarshalers = true
	})
}
