package database

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/rzpsarthak13/rematerializer/internal/config"
	"github.com/rzpsarthak13/rematerializer/internal/core"
	"github.com/rzpsarthak13/rematerializer/internal/schema"
)

// DynamoDBDialect implements core.Dialect for DynamoDB PartiQL. DynamoDB has
// no schemas, so the schema name is ignored.
type DynamoDBDialect struct{}

func (DynamoDBDialect) Name() string { return "dynamodb" }

func (DynamoDBDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d DynamoDBDialect) QualifiedTable(_, table string) string {
	return d.QuoteIdent(table)
}

func (DynamoDBDialect) Placeholder(int) string { return "?" }

// BindParam converts a key value to its attribute value.
func (DynamoDBDialect) BindParam(value any, kind core.ColumnKind) (any, error) {
	v, err := schema.Coerce(value, kind)
	if err != nil {
		return nil, err
	}
	return toAttributeValue(v)
}

// NormalizeValue converts attribute values to universal values. Numbers
// become decimals so the row mapper applies the usual narrowing.
func (DynamoDBDialect) NormalizeValue(value any) (any, error) {
	av, ok := value.(types.AttributeValue)
	if !ok {
		return value, nil
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		d, err := decimal.NewFromString(v.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid number attribute %q: %w", v.Value, err)
		}
		return d, nil
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", av)
	}
}

func toAttributeValue(v any) (types.AttributeValue, error) {
	switch b := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case int8:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(b), 10)}, nil
	case int16:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(b), 10)}, nil
	case int32:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(b), 10)}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(b, 10)}, nil
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(b, 'f', -1, 64)}, nil
	case decimal.Decimal:
		return &types.AttributeValueMemberN{Value: b.String()}, nil
	case string:
		return &types.AttributeValueMemberS{Value: b}, nil
	case []byte:
		return &types.AttributeValueMemberB{Value: b}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: b}, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: b.UTC().Format(time.RFC3339Nano)}, nil
	default:
		return nil, fmt.Errorf("cannot bind %T as a DynamoDB attribute", v)
	}
}

// dynamoAPI is the subset of the DynamoDB client the connector uses.
type dynamoAPI interface {
	ExecuteStatement(ctx context.Context, params *dynamodb.ExecuteStatementInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ExecuteStatementOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

// DynamoDBConnector issues PartiQL statements against DynamoDB.
type DynamoDBConnector struct {
	settings  config.Settings
	newClient func(ctx context.Context) (dynamoAPI, error)
}

func (c *DynamoDBConnector) Dialect() core.Dialect {
	return DynamoDBDialect{}
}

func (c *DynamoDBConnector) Connect(ctx context.Context) (core.Conn, error) {
	client, err := c.newClient(ctx)
	if err != nil {
		return nil, err
	}
	return &dynamoConn{client: client, logger: c.settings.Log()}, nil
}

func (c *DynamoDBConnector) loadClient(ctx context.Context) (dynamoAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.settings.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Override credentials if provided
	if c.settings.AccessKeyID != "" && c.settings.SecretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(c.settings.AccessKeyID, c.settings.SecretAccessKey, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if c.settings.Endpoint != "" {
		// Custom endpoint (e.g., for LocalStack)
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(c.settings.Endpoint)
		})
	}
	return dynamodb.NewFromConfig(cfg, clientOptions...), nil
}

type dynamoConn struct {
	client dynamoAPI
	logger *log.Logger
}

// Ping lists at most one table to confirm the endpoint and credentials.
func (c *dynamoConn) Ping(ctx context.Context) error {
	_, err := c.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	if err != nil {
		return fmt.Errorf("failed to reach DynamoDB: %w", err)
	}
	return nil
}

// Prepare keeps the statement text; PartiQL statements are not prepared server side.
func (c *dynamoConn) Prepare(_ context.Context, q core.Query) (core.Statement, error) {
	if len(q.Columns) == 0 {
		return nil, fmt.Errorf("query selects no columns")
	}
	c.logger.Printf("[DYNAMODB] Statement: %s", q.Text)
	return &dynamoStatement{client: c.client, text: q.Text, columns: append([]string(nil), q.Columns...)}, nil
}

func (c *dynamoConn) Close() error {
	return nil
}

type dynamoStatement struct {
	client  dynamoAPI
	text    string
	columns []string
}

// QueryRow returns the attributes of the first item in column order. Missing
// attributes are NULL.
func (s *dynamoStatement) QueryRow(ctx context.Context, args ...any) ([]any, bool, error) {
	params := make([]types.AttributeValue, len(args))
	for i, arg := range args {
		av, ok := arg.(types.AttributeValue)
		if !ok {
			var err error
			if av, err = toAttributeValue(arg); err != nil {
				return nil, false, err
			}
		}
		params[i] = av
	}

	out, err := s.client.ExecuteStatement(ctx, &dynamodb.ExecuteStatementInput{
		Statement:  aws.String(s.text),
		Parameters: params,
		Limit:      aws.Int32(1),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to execute statement: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, false, nil
	}

	item := out.Items[0]
	values := make([]any, len(s.columns))
	for i, col := range s.columns {
		if av, ok := item[col]; ok {
			values[i] = av
		}
	}
	return values, true, nil
}

func (s *dynamoStatement) Close() error {
	return nil
}

// DynamoDBConnectorFactory implements ConnectorFactory for DynamoDB.
type DynamoDBConnectorFactory struct{}

// Type returns the driver name for this factory.
func (f *DynamoDBConnectorFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific settings.
func (f *DynamoDBConnectorFactory) Validate(settings config.Settings) error {
	if settings.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if (settings.AccessKeyID == "") != (settings.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// Create creates a DynamoDB connector. The client is built on Connect.
func (f *DynamoDBConnectorFactory) Create(settings config.Settings) (core.Connector, error) {
	c := &DynamoDBConnector{settings: settings}
	c.newClient = c.loadClient
	return c, nil
}

func init() {
	RegisterFactory(&DynamoDBConnectorFactory{})
}
