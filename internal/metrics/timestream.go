package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite/types"
)

// maxRecordsPerWrite is the WriteRecords limit
const maxRecordsPerWrite = 100

// WriteRecordsAPI is the part of the Timestream write client used by the sink
type WriteRecordsAPI interface {
	WriteRecords(ctx context.Context, params *timestreamwrite.WriteRecordsInput, optFns ...func(*timestreamwrite.Options)) (*timestreamwrite.WriteRecordsOutput, error)
}

// TimestreamSink writes invocation metrics to a Timestream table
type TimestreamSink struct {
	client       WriteRecordsAPI
	databaseName string
	tableName    string
	function     string
}

// NewTimestreamSink creates a sink writing to databaseName.tableName
func NewTimestreamSink(client WriteRecordsAPI, databaseName, tableName, function string) *TimestreamSink {
	return &TimestreamSink{
		client:       client,
		databaseName: databaseName,
		tableName:    tableName,
		function:     function,
	}
}

// NewTimestreamSinkFromConfig builds the Timestream client from an AWS config
func NewTimestreamSinkFromConfig(awsCfg aws.Config, databaseName, tableName, function string) *TimestreamSink {
	return NewTimestreamSink(timestreamwrite.NewFromConfig(awsCfg), databaseName, tableName, function)
}

// Write implements Sink. Each operation becomes one multi-measure record.
func (s *TimestreamSink) Write(ctx context.Context, ops []*OperationMetric) error {
	for start := 0; start < len(ops); start += maxRecordsPerWrite {
		end := start + maxRecordsPerWrite
		if end > len(ops) {
			end = len(ops)
		}

		records := make([]types.Record, 0, end-start)
		for _, op := range ops[start:end] {
			records = append(records, s.record(op))
		}

		_, err := s.client.WriteRecords(ctx, &timestreamwrite.WriteRecordsInput{
			DatabaseName: aws.String(s.databaseName),
			TableName:    aws.String(s.tableName),
			Records:      records,
		})
		if err != nil {
			return fmt.Errorf("failed to write records: %w", err)
		}
	}
	return nil
}

func (s *TimestreamSink) record(op *OperationMetric) types.Record {
	failed := "0"
	if op.Failed() {
		failed = "1"
	}

	return types.Record{
		Dimensions: []types.Dimension{
			{Name: aws.String("function"), Value: aws.String(s.function)},
			{Name: aws.String("operation"), Value: aws.String(string(op.Type))},
			{Name: aws.String("category"), Value: aws.String(categoryOrNone(op.Category))},
			{Name: aws.String("cold_start"), Value: aws.String(strconv.FormatBool(op.IsColdStart))},
		},
		MeasureName:      aws.String("invocation"),
		MeasureValueType: types.MeasureValueTypeMulti,
		MeasureValues: []types.MeasureValue{
			{Name: aws.String("duration_ns"), Value: aws.String(strconv.FormatInt(op.Duration.Nanoseconds(), 10)), Type: types.MeasureValueTypeBigint},
			{Name: aws.String("item_count"), Value: aws.String(strconv.FormatInt(op.ItemCount, 10)), Type: types.MeasureValueTypeBigint},
			{Name: aws.String("failed"), Value: aws.String(failed), Type: types.MeasureValueTypeBigint},
		},
		Time:     aws.String(strconv.FormatInt(op.StartTime.UnixNano(), 10)),
		TimeUnit: types.TimeUnitNanoseconds,
	}
}

// Timestream rejects empty dimension values
func categoryOrNone(category string) string {
	if category == "" {
		return "none"
	}
	return category
}
