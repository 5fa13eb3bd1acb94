package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/crm-import/internal/domain"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

type fakeDynamo struct {
	items   map[string]map[string]types.AttributeValue
	updates []*dynamodb.UpdateItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pk(item map[string]types.AttributeValue) string {
	return item["PK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[pk(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem copies the :value placeholders onto the stored item using the
// attribute they are assigned to in the test's fixed expressions.
func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	item, ok := f.items[pk(in.Key)]
	if !ok {
		return nil, errors.New("missing item")
	}
	attrs := map[string]string{
		":state": "State", ":processed": "ProcessedRecords", ":failed": "FailedBatches",
		":percent": "Percent", ":finished": "FinishedAt", ":error": "Error",
	}
	for placeholder, v := range in.ExpressionAttributeValues {
		item[attrs[placeholder]] = v
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[pk(in.Key)]}, nil
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestAWS(s3c s3API, ddb dynamoAPI) *AWSStorage {
	return &AWSStorage{
		s3Client:  s3c,
		dynamoDB:  ddb,
		bucket:    "csv-archive",
		prefix:    "imports/",
		tableName: "import-jobs",
		ttl:       24 * time.Hour,
		now:       func() time.Time { return fixedNow },
	}
}

func sampleJob() *domain.ImportJob {
	return &domain.ImportJob{
		ID:           "job-1",
		SessionID:    "sess-1",
		FileName:     "accounts.csv",
		ObjectName:   "Account",
		Operation:    domain.OperationUpsert,
		State:        domain.UploadUploading,
		TotalRecords: 450,
		StartedAt:    fixedNow,
	}
}

func TestArchiveCSV(t *testing.T) {
	fs := &fakeS3{}
	st := New(newTestAWS(fs, nil))

	key, err := st.ArchiveCSV(context.Background(), "sess-1", "accounts.csv", "Id,Name\n1,Acme\n")
	require.NoError(t, err)
	assert.Equal(t, "imports/2026/03/14/sess-1/accounts.csv", key)

	require.Len(t, fs.inputs, 1)
	assert.Equal(t, "csv-archive", aws.ToString(fs.inputs[0].Bucket))
	assert.Equal(t, "text/csv", aws.ToString(fs.inputs[0].ContentType))
	assert.Equal(t, "Id,Name\n1,Acme\n", fs.bodies[0])
}

func TestArchiveCSVDisabled(t *testing.T) {
	key, err := New(nil).ArchiveCSV(context.Background(), "sess-1", "a.csv", "x")
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestArchiveCSVError(t *testing.T) {
	st := New(newTestAWS(&fakeS3{err: errors.New("access denied")}, nil))
	_, err := st.ArchiveCSV(context.Background(), "sess-1", "a.csv", "x")
	assert.ErrorContains(t, err, "access denied")
}

func TestLocalLedger(t *testing.T) {
	st := New(nil)
	st.now = func() time.Time { return fixedNow.Add(time.Minute) }
	ctx := context.Background()

	require.NoError(t, st.Start(ctx, sampleJob()))
	require.NoError(t, st.UpdateProgress(ctx, "job-1", domain.UploadProgress{State: domain.UploadUploading, Processed: 200, Percent: 44}))
	require.NoError(t, st.Finish(ctx, "job-1", domain.UploadProgress{State: domain.UploadFailed, Processed: 450, Percent: 100, FailedBatches: 1}, "1 batch failed"))

	job, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UploadFailed, job.State)
	assert.Equal(t, 450, job.ProcessedRecords)
	assert.Equal(t, 1, job.FailedBatches)
	assert.Equal(t, "1 batch failed", job.Error)
	require.NotNil(t, job.FinishedAt)

	jobs, err := st.ListJobs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	_, err = st.GetJob(ctx, "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDynamoMirror(t *testing.T) {
	ddb := newFakeDynamo()
	ctx := context.Background()
	writer := New(newTestAWS(nil, ddb))

	require.NoError(t, writer.Start(ctx, sampleJob()))
	item := ddb.items["JOB#job-1"]
	require.NotNil(t, item)

	var stored jobItem
	require.NoError(t, attributevalue.UnmarshalMap(item, &stored))
	assert.Equal(t, "Account", stored.Object)
	assert.Equal(t, 450, stored.Total)
	assert.Equal(t, fixedNow.Add(24*time.Hour).Unix(), stored.TTL)

	require.NoError(t, writer.Finish(ctx, "job-1", domain.UploadProgress{State: domain.UploadCompleted, Processed: 450, Percent: 100}, ""))
	require.Len(t, ddb.updates, 1)
	assert.Equal(t, "State", ddb.updates[0].ExpressionAttributeNames["#state"])

	// A second replica without the job in memory reads it from DynamoDB.
	reader := New(newTestAWS(nil, ddb))
	job, err := reader.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, domain.UploadCompleted, job.State)
	assert.Equal(t, 100, job.Percent)
	assert.Equal(t, domain.OperationUpsert, job.Operation)
	require.NotNil(t, job.FinishedAt)

	_, err = reader.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
