package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"carbon-scribe/credit-registry-backend/internal/ids"
)

// dynamoItem is the single-table layout: partition key kind, sort key id.
type dynamoItem struct {
	Kind      string `dynamodbav:"kind"`
	ID        string `dynamodbav:"id"`
	Version   int64  `dynamodbav:"version"`
	CreatedAt string `dynamodbav:"created_at"`
	Body      string `dynamodbav:"body"`
}

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// EnsureDynamoTable creates the registry table when it does not exist yet.
func EnsureDynamoTable(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table %s: %w", table, err)
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("kind"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("kind"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, 2*time.Minute)
}

// DynamoCollection stores one entity kind as items of a shared table.
type DynamoCollection[T any, P Record[T]] struct {
	client DynamoAPI
	table  string
	kind   Kind
}

func NewDynamo[T any, P Record[T]](client DynamoAPI, table string, kind Kind) *DynamoCollection[T, P] {
	return &DynamoCollection[T, P]{client: client, table: table, kind: kind}
}

func (c *DynamoCollection[T, P]) Kind() Kind { return c.kind }

func (c *DynamoCollection[T, P]) Insert(ctx context.Context, rec *T) (string, error) {
	p := P(rec)
	meta := prepareInsert[T, P](c.kind, p, ids.New)

	item, err := c.encode(p)
	if err != nil {
		return "", err
	}
	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		if isConditionFailure(err) {
			return "", fmt.Errorf("%s %s: %w", c.kind.Name, meta.ID, ErrDuplicate)
		}
		return "", fmt.Errorf("failed to insert %s: %w", c.kind.Name, err)
	}
	return meta.ID, nil
}

func (c *DynamoCollection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.table),
		Key:            c.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", c.kind.Name, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return c.decode(out.Item)
}

func (c *DynamoCollection[T, P]) List(ctx context.Context, match func(*T) bool) ([]*T, error) {
	paginator := dynamodb.NewQueryPaginator(c.client, &dynamodb.QueryInput{
		TableName:                aws.String(c.table),
		KeyConditionExpression:   aws.String("#kind = :kind"),
		ExpressionAttributeNames: map[string]string{"#kind": "kind"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":kind": &types.AttributeValueMemberS{Value: c.kind.Name},
		},
		ConsistentRead: aws.Bool(true),
	})

	var out []*T
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", c.kind.Name, err)
		}
		for _, item := range page.Items {
			rec, err := c.decode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	sortByCreation[T, P](out)
	return matchAll(match, out), nil
}

func (c *DynamoCollection[T, P]) Update(ctx context.Context, id string, mutate func(*T) error) (*T, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		rec, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		prev, err := applyMutation[T, P](P(rec), mutate)
		if err != nil {
			return nil, err
		}
		item, err := c.encode(P(rec))
		if err != nil {
			return nil, err
		}
		_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                aws.String(c.table),
			Item:                     item,
			ConditionExpression:      aws.String("#version = :prev"),
			ExpressionAttributeNames: map[string]string{"#version": "version"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(prev, 10)},
			},
		})
		if err == nil {
			return rec, nil
		}
		if !isConditionFailure(err) {
			return nil, fmt.Errorf("failed to update %s: %w", c.kind.Name, err)
		}
	}
	return nil, ErrConflict
}

func (c *DynamoCollection[T, P]) Delete(ctx context.Context, id string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(c.table),
		Key:                      c.key(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		if isConditionFailure(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", c.kind.Name, err)
	}
	return nil
}

func (c *DynamoCollection[T, P]) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"kind": &types.AttributeValueMemberS{Value: c.kind.Name},
		"id":   &types.AttributeValueMemberS{Value: id},
	}
}

func (c *DynamoCollection[T, P]) encode(rec P) (map[string]types.AttributeValue, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", c.kind.Name, err)
	}
	meta := rec.RecordMeta()
	item, err := attributevalue.MarshalMap(dynamoItem{
		Kind:      c.kind.Name,
		ID:        meta.ID,
		Version:   meta.Version,
		CreatedAt: meta.CreatedAt.Format(time.RFC3339Nano),
		Body:      string(body),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", c.kind.Name, err)
	}
	return item, nil
}

func (c *DynamoCollection[T, P]) decode(item map[string]types.AttributeValue) (*T, error) {
	var row dynamoItem
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.kind.Name, err)
	}
	rec := new(T)
	if err := json.Unmarshal([]byte(row.Body), rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", c.kind.Name, row.ID, err)
	}
	P(rec).RecordMeta().Version = row.Version
	return rec, nil
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
