// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package dynamodb implements [storage.KeyValueStore] on Amazon DynamoDB using
// the AWS SDK for Go v2. The table needs a string hash key named "key"; enabling
// DynamoDB TTL on the expires_at attribute lets AWS reclaim stale items.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

// ErrValidation is returned by [New] for a nil client or empty table name.
var ErrValidation = errors.New("dynamodb: invalid configuration")

// batchSize is the BatchWriteItem request limit.
const batchSize = 25

// maxBatchAttempts bounds resubmission of unprocessed batch items.
const maxBatchAttempts = 5

// API is the subset of [dynamodb.Client] used by the store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	dynamodb.ScanAPIClient
}

// Config defines the DynamoDB store options.
type Config struct {
	Table string
}

type item struct {
	Key       string `dynamodbav:"key"`
	Value     []byte `dynamodbav:"value"`
	Size      int64  `dynamodbav:"size"`
	CreatedAt int64  `dynamodbav:"created_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// KV is a [storage.KeyValueStore] backed by a DynamoDB table.
type KV struct {
	client API
	table  string
	now    func() time.Time
}

// New validates the configuration and returns a store.
func New(client API, cfg Config) (*KV, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil client", ErrValidation)
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("%w: empty table name", ErrValidation)
	}
	return &KV{client: client, table: cfg.Table, now: time.Now}, nil
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: key}}
}

// Get implements [storage.KeyValueStore]. Items past expires_at that DynamoDB
// has not reclaimed yet are deleted and reported as [storage.ErrExpired].
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := k.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(k.table),
		Key:            keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: get %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, storage.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("dynamodb: decode %s: %w", key, err)
	}

	if k.now().Unix() >= it.ExpiresAt {
		if err := k.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, storage.ErrExpired
	}
	return it.Value, nil
}

// Set implements [storage.KeyValueStore].
func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := storage.ValidateTTL(ttl); err != nil {
		return err
	}

	now := k.now()
	av, err := attributevalue.MarshalMap(item{
		Key:       key,
		Value:     value,
		Size:      int64(len(value)),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("dynamodb: encode %s: %w", key, err)
	}

	if _, err := k.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(k.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("dynamodb: put %s: %w", key, err)
	}
	return nil
}

// Delete implements [storage.KeyValueStore].
func (k *KV) Delete(ctx context.Context, key string) error {
	if _, err := k.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(k.table),
		Key:       keyAttr(key),
	}); err != nil {
		return fmt.Errorf("dynamodb: delete %s: %w", key, err)
	}
	return nil
}

// scanPrefix returns key and size of every item whose key starts with prefix.
// When liveOnly is set, items past expires_at are filtered out.
func (k *KV) scanPrefix(ctx context.Context, prefix string, liveOnly bool) ([]storage.KeyInfo, error) {
	filter := "begins_with(#k, :p)"
	values := map[string]types.AttributeValue{
		":p": &types.AttributeValueMemberS{Value: prefix},
	}
	if liveOnly {
		filter += " AND expires_at > :now"
		values[":now"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(k.now().Unix(), 10)}
	}

	paginator := dynamodb.NewScanPaginator(k.client, &dynamodb.ScanInput{
		TableName:                 aws.String(k.table),
		FilterExpression:          aws.String(filter),
		ProjectionExpression:      aws.String("#k, #s"),
		ExpressionAttributeNames:  map[string]string{"#k": "key", "#s": "size"},
		ExpressionAttributeValues: values,
	})

	var infos []storage.KeyInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb: scan %s: %w", prefix, err)
		}
		for _, raw := range page.Items {
			var it item
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, fmt.Errorf("dynamodb: decode scan item: %w", err)
			}
			infos = append(infos, storage.KeyInfo{Key: it.Key, Size: it.Size})
		}
	}
	return infos, nil
}

// Keys implements [storage.KeyValueStore].
func (k *KV) Keys(ctx context.Context, prefix string) ([]storage.KeyInfo, error) {
	return k.scanPrefix(ctx, prefix, true)
}

// DeletePrefix implements [storage.KeyValueStore] with a filtered scan
// followed by batched deletes.
func (k *KV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	infos, err := k.scanPrefix(ctx, prefix, false)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(infos); start += batchSize {
		end := min(start+batchSize, len(infos))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, info := range infos[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: keyAttr(info.Key)},
			})
		}

		n, err := k.batchDelete(ctx, requests)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (k *KV) batchDelete(ctx context.Context, requests []types.WriteRequest) (int, error) {
	pending := requests
	for attempt := 0; attempt < maxBatchAttempts && len(pending) > 0; attempt++ {
		out, err := k.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{k.table: pending},
		})
		if err != nil {
			return len(requests) - len(pending), fmt.Errorf("dynamodb: batch delete: %w", err)
		}
		pending = out.UnprocessedItems[k.table]
	}
	if len(pending) > 0 {
		return len(requests) - len(pending), fmt.Errorf("dynamodb: %d deletes left unprocessed", len(pending))
	}
	return len(requests), nil
}

var _ storage.KeyValueStore = (*KV)(nil)
