// Package dynamokv provides a kvstore.Provider backed by a single
// DynamoDB table.
//
// Table schema:
//   - Partition key: dataset (string)
//   - Sort key: k (string)
//   - Attribute: v (binary) holds the value
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name canvas \
//	  --attribute-definitions AttributeName=dataset,AttributeType=S AttributeName=k,AttributeType=S \
//	  --key-schema AttributeName=dataset,KeyType=HASH AttributeName=k,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
//
// An optional client-side rate limit smooths bursts against provisioned
// tables.
package dynamokv

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/time/rate"

	"github.com/idncsk/canvas/kvstore"
)

const (
	attrDataset = "dataset"
	attrKey     = "k"
	attrValue   = "v"

	// DynamoDB caps BatchGetItem at 100 items per request.
	batchGetLimit = 100
)

// Client is the subset of the DynamoDB API the provider uses.
// Satisfied by *dynamodb.Client; a fake suffices for tests.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
}

// Provider is a kvstore.Provider over one DynamoDB table.
type Provider struct {
	client    Client
	tableName string
	limiter   *rate.Limiter
}

var _ kvstore.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithRateLimit throttles requests to at most rps per second with the
// given burst. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Provider) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewProvider creates a provider over the given table.
func NewProvider(client Client, tableName string, opts ...Option) *Provider {
	p := &Provider{
		client:    client,
		tableName: tableName,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dataset implements kvstore.Provider.
func (p *Provider) Dataset(name string) kvstore.Store {
	return &store{
		provider: p,
		dataset:  name,
	}
}

func (p *Provider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// store is one dataset, a partition inside the table.
type store struct {
	provider *Provider
	dataset  string
}

var _ kvstore.Store = (*store)(nil)

func (s *store) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrDataset: &types.AttributeValueMemberS{Value: s.dataset},
		attrKey:     &types.AttributeValueMemberS{Value: key},
	}
}

// Get implements kvstore.Store.
func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.provider.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.provider.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.provider.tableName),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	if resp.Item == nil {
		return nil, fmt.Errorf("%q: %w", key, kvstore.ErrNotFound)
	}
	return itemValue(resp.Item)
}

// Put implements kvstore.Store.
func (s *store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.provider.wait(ctx); err != nil {
		return err
	}

	item := s.itemKey(key)
	item[attrValue] = &types.AttributeValueMemberB{Value: value}

	_, err := s.provider.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.provider.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// GetMany implements kvstore.Store. Missing keys are skipped. Requests
// are chunked to the BatchGetItem limit; unprocessed keys are retried.
func (s *store) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))

	for start := 0; start < len(keys); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(keys) {
			end = len(keys)
		}

		pending := make([]map[string]types.AttributeValue, 0, end-start)
		for _, key := range keys[start:end] {
			pending = append(pending, s.itemKey(key))
		}

		for len(pending) > 0 {
			if err := s.provider.wait(ctx); err != nil {
				return nil, err
			}

			resp, err := s.provider.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					s.provider.tableName: {Keys: pending, ConsistentRead: aws.Bool(true)},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("batch get: %w", err)
			}

			for _, item := range resp.Responses[s.provider.tableName] {
				keyAttr, ok := item[attrKey].(*types.AttributeValueMemberS)
				if !ok {
					return nil, errors.New("invalid key attribute in item")
				}
				value, err := itemValue(item)
				if err != nil {
					return nil, err
				}
				out[keyAttr.Value] = value
			}

			pending = resp.UnprocessedKeys[s.provider.tableName].Keys
		}
	}
	return out, nil
}

// Delete implements kvstore.Store. Absent keys are not errors.
func (s *store) Delete(ctx context.Context, key string) error {
	if err := s.provider.wait(ctx); err != nil {
		return err
	}

	_, err := s.provider.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.provider.tableName),
		Key:       s.itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// ListKeys implements kvstore.Store.
func (s *store) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.queryPages(ctx, []string{attrKey}, func(item map[string]types.AttributeValue) error {
		keyAttr, ok := item[attrKey].(*types.AttributeValueMemberS)
		if !ok {
			return errors.New("invalid key attribute in item")
		}
		keys = append(keys, keyAttr.Value)
		return nil
	})
	return keys, err
}

// ListValues implements kvstore.Store.
func (s *store) ListValues(ctx context.Context) ([][]byte, error) {
	var values [][]byte
	err := s.queryPages(ctx, []string{attrValue}, func(item map[string]types.AttributeValue) error {
		value, err := itemValue(item)
		if err != nil {
			return err
		}
		values = append(values, value)
		return nil
	})
	return values, err
}

// KeysCount implements kvstore.Store.
func (s *store) KeysCount(ctx context.Context) (int, error) {
	count := 0

	var startKey map[string]types.AttributeValue
	for {
		if err := s.provider.wait(ctx); err != nil {
			return 0, err
		}

		resp, err := s.provider.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.provider.tableName),
			KeyConditionExpression: aws.String("dataset = :d"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":d": &types.AttributeValueMemberS{Value: s.dataset},
			},
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, fmt.Errorf("count query: %w", err)
		}

		count += int(resp.Count)
		if resp.LastEvaluatedKey == nil {
			return count, nil
		}
		startKey = resp.LastEvaluatedKey
	}
}

func (s *store) queryPages(ctx context.Context, attrs []string, fn func(map[string]types.AttributeValue) error) error {
	projection := attrs[0]
	for _, a := range attrs[1:] {
		projection += ", " + a
	}

	var startKey map[string]types.AttributeValue
	for {
		if err := s.provider.wait(ctx); err != nil {
			return err
		}

		resp, err := s.provider.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.provider.tableName),
			KeyConditionExpression: aws.String("dataset = :d"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":d": &types.AttributeValueMemberS{Value: s.dataset},
			},
			ProjectionExpression: aws.String(projection),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}

		for _, item := range resp.Items {
			if err := fn(item); err != nil {
				return err
			}
		}

		if resp.LastEvaluatedKey == nil {
			return nil
		}
		startKey = resp.LastEvaluatedKey
	}
}

func itemValue(item map[string]types.AttributeValue) ([]byte, error) {
	valueAttr, ok := item[attrValue].(*types.AttributeValueMemberB)
	if !ok {
		return nil, errors.New("invalid value attribute in item")
	}
	return valueAttr.Value, nil
}
