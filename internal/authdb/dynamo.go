package authdb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// Table layout of the auth key directory.
const (
	DefaultTable  = "tunnelto_auth"
	primaryKey    = "auth_key_hash"
	accountIDAttr = "account_id"
)

// dynamoAPI is the slice of the DynamoDB client this package uses.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoConfig selects the region, table and (for local development against
// dynamodb-local) a custom endpoint.
type DynamoConfig struct {
	Region   string
	Endpoint string
	Table    string
}

// DynamoDirectory looks accounts up in DynamoDB. No caching: every handshake
// attempt re-queries, trading a rare round trip for consistency.
type DynamoDirectory struct {
	client dynamoAPI
	table  string
}

// NewDynamoDirectory loads the ambient AWS configuration (env credentials,
// shared config) and builds the directory client.
func NewDynamoDirectory(ctx context.Context, cfg DynamoConfig) (*DynamoDirectory, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	return &DynamoDirectory{client: client, table: table}, nil
}

// AccountIDForKey performs the point lookup by hashed auth key.
func (d *DynamoDirectory) AccountIDForKey(ctx context.Context, lookupKey string) (uuid.UUID, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			primaryKey: &types.AttributeValueMemberS{Value: lookupKey},
		},
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	attr, ok := out.Item[accountIDAttr]
	if !ok {
		return uuid.Nil, ErrAccountNotFound
	}
	s, ok := attr.(*types.AttributeValueMemberS)
	if !ok {
		return uuid.Nil, ErrInvalidAccountID
	}
	accountID, err := uuid.Parse(s.Value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidAccountID, err)
	}
	return accountID, nil
}
