package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/crm-import/internal/config"
	"github.com/ignite/crm-import/internal/domain"
)

// ErrJobNotFound is returned when no job item exists.
var ErrJobNotFound = errors.New("import job not found")

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// AWSStorage archives raw CSV files in S3 and mirrors import jobs into a
// DynamoDB table. Either half is optional.
type AWSStorage struct {
	s3Client  s3API
	dynamoDB  dynamoAPI
	bucket    string
	prefix    string
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// jobItem is the DynamoDB item of one import job.
type jobItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	SessionID string `dynamodbav:"SessionID"`
	FileName  string `dynamodbav:"FileName"`
	Object    string `dynamodbav:"ObjectName"`
	Operation string `dynamodbav:"Operation"`
	State     string `dynamodbav:"State"`
	Total     int    `dynamodbav:"TotalRecords"`
	Processed int    `dynamodbav:"ProcessedRecords"`
	Failed    int    `dynamodbav:"FailedBatches"`
	Percent   int    `dynamodbav:"Percent"`
	Archive   string `dynamodbav:"ArchiveKey,omitempty"`
	Error     string `dynamodbav:"Error,omitempty"`
	StartedAt string `dynamodbav:"StartedAt"`
	Finished  string `dynamodbav:"FinishedAt,omitempty"`
	TTL       int64  `dynamodbav:"TTL,omitempty"`
}

const jobSortKey = "JOB"

func jobKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "JOB#" + id},
		"SK": &types.AttributeValueMemberS{Value: jobSortKey},
	}
}

// NewAWSStorage creates the AWS clients for cfg. Static credentials are
// used when configured, otherwise the default chain.
func NewAWSStorage(ctx context.Context, cfg config.ArchiveConfig) (*AWSStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	s := &AWSStorage{
		bucket:    cfg.S3Bucket,
		prefix:    cfg.Prefix,
		tableName: cfg.DynamoDBTable,
		ttl:       time.Duration(cfg.JobTTLDays) * 24 * time.Hour,
		now:       time.Now,
	}
	if cfg.S3Bucket != "" {
		s.s3Client = s3.NewFromConfig(awsCfg)
	}
	if cfg.DynamoDBTable != "" {
		s.dynamoDB = dynamodb.NewFromConfig(awsCfg)
	}
	return s, nil
}

// =============================================================================
// S3 archive
// =============================================================================

// ArchiveKey is the object key of a session's raw CSV archived at t.
func (s *AWSStorage) ArchiveKey(sessionID, fileName string, t time.Time) string {
	return path.Join(strings.TrimSuffix(s.prefix, "/"), t.UTC().Format("2006/01/02"), sessionID, fileName)
}

// ArchiveCSV stores the raw CSV text and returns its key.
func (s *AWSStorage) ArchiveCSV(ctx context.Context, sessionID, fileName, text string) (string, error) {
	if s.s3Client == nil {
		return "", errors.New("S3 archive is not configured")
	}
	key := s.ArchiveKey(sessionID, fileName, s.now())

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/csv"),
		Metadata:    map[string]string{"session-id": sessionID},
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}
	return key, nil
}

// =============================================================================
// DynamoDB job mirror
// =============================================================================

// HasJobTable reports whether the DynamoDB mirror is configured.
func (s *AWSStorage) HasJobTable() bool { return s.dynamoDB != nil }

// Start writes the initial job item.
func (s *AWSStorage) Start(ctx context.Context, job *domain.ImportJob) error {
	item := jobItem{
		PK:        "JOB#" + job.ID,
		SK:        jobSortKey,
		SessionID: job.SessionID,
		FileName:  job.FileName,
		Object:    job.ObjectName,
		Operation: string(job.Operation),
		State:     string(job.State),
		Total:     job.TotalRecords,
		Archive:   job.ArchiveKey,
		StartedAt: job.StartedAt.UTC().Format(time.RFC3339),
	}
	if s.ttl > 0 {
		item.TTL = job.StartedAt.Add(s.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = s.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

// UpdateProgress records the counters of a running job.
func (s *AWSStorage) UpdateProgress(ctx context.Context, jobID string, p domain.UploadProgress) error {
	return s.update(ctx, jobID,
		"SET #state = :state, ProcessedRecords = :processed, FailedBatches = :failed, Percent = :percent",
		map[string]types.AttributeValue{
			":state":     &types.AttributeValueMemberS{Value: string(p.State)},
			":processed": &types.AttributeValueMemberN{Value: strconv.Itoa(p.Processed)},
			":failed":    &types.AttributeValueMemberN{Value: strconv.Itoa(p.FailedBatches)},
			":percent":   &types.AttributeValueMemberN{Value: strconv.Itoa(p.Percent)},
		})
}

// Finish records the final state of a job.
func (s *AWSStorage) Finish(ctx context.Context, jobID string, p domain.UploadProgress, errMsg string) error {
	return s.update(ctx, jobID,
		"SET #state = :state, ProcessedRecords = :processed, FailedBatches = :failed, Percent = :percent, FinishedAt = :finished, #error = :error",
		map[string]types.AttributeValue{
			":state":     &types.AttributeValueMemberS{Value: string(p.State)},
			":processed": &types.AttributeValueMemberN{Value: strconv.Itoa(p.Processed)},
			":failed":    &types.AttributeValueMemberN{Value: strconv.Itoa(p.FailedBatches)},
			":percent":   &types.AttributeValueMemberN{Value: strconv.Itoa(p.Percent)},
			":finished":  &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)},
			":error":     &types.AttributeValueMemberS{Value: errMsg},
		})
}

func (s *AWSStorage) update(ctx context.Context, jobID, expr string, values map[string]types.AttributeValue) error {
	names := map[string]string{"#state": "State"}
	if strings.Contains(expr, "#error") {
		names["#error"] = "Error"
	}
	_, err := s.dynamoDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       jobKey(jobID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("updating job %s in DynamoDB: %w", jobID, err)
	}
	return nil
}

// GetJob reads a job item back.
func (s *AWSStorage) GetJob(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	out, err := s.dynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       jobKey(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("getting job %s from DynamoDB: %w", jobID, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrJobNotFound
	}

	var item jobItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling job %s: %w", jobID, err)
	}

	job := &domain.ImportJob{
		ID:               strings.TrimPrefix(item.PK, "JOB#"),
		SessionID:        item.SessionID,
		FileName:         item.FileName,
		ObjectName:       item.Object,
		Operation:        domain.Operation(item.Operation),
		State:            domain.UploadState(item.State),
		TotalRecords:     item.Total,
		ProcessedRecords: item.Processed,
		FailedBatches:    item.Failed,
		Percent:          item.Percent,
		ArchiveKey:       item.Archive,
		Error:            item.Error,
	}
	if t, err := time.Parse(time.RFC3339, item.StartedAt); err == nil {
		job.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339, item.Finished); err == nil {
		job.FinishedAt = &t
	}
	return job, nil
}
