package salesforce

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upsertRecords(n int) []map[string]any {
	records := make([]map[string]any, n)
	for i := range records {
		records[i] = map[string]any{
			"Reference_PDL__c": fmt.Sprintf("%014d", i),
		}
	}
	return records
}

func TestBulkUpsert_SingleBatch(t *testing.T) {
	var gotObject, gotExtID string
	var gotRecords []map[string]any
	mc := &mockClient{
		upsertCollectionFn: func(_ context.Context, sObjectName, externalIDField string, records []map[string]any) ([]CollectionResult, error) {
			gotObject = sObjectName
			gotExtID = externalIDField
			gotRecords = records
			results := make([]CollectionResult, len(records))
			for i := range records {
				results[i] = CollectionResult{ID: fmt.Sprintf("a%02d", i), Success: true}
			}
			return results, nil
		},
	}

	records := upsertRecords(3)
	results, err := BulkUpsert(context.Background(), mc, "Point_Livraison__c", "Reference_PDL__c", records)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "Point_Livraison__c", gotObject)
	assert.Equal(t, "Reference_PDL__c", gotExtID)
	require.Len(t, gotRecords, 3)
	assert.Equal(t, "00000000000002", gotRecords[2]["Reference_PDL__c"])
}

func TestBulkUpsert_SplitsBatches(t *testing.T) {
	var batchSizes []int
	mc := &mockClient{
		upsertCollectionFn: func(_ context.Context, _, _ string, records []map[string]any) ([]CollectionResult, error) {
			batchSizes = append(batchSizes, len(records))
			results := make([]CollectionResult, len(records))
			for i := range records {
				results[i] = CollectionResult{Success: true}
			}
			return results, nil
		},
	}

	results, err := BulkUpsert(context.Background(), mc, "Point_Livraison__c", "Reference_PDL__c", upsertRecords(250))
	require.NoError(t, err)
	assert.Len(t, results, 250)
	assert.Equal(t, []int{200, 50}, batchSizes)
}

func TestBulkUpsert_Empty(t *testing.T) {
	calls := 0
	mc := &mockClient{
		upsertCollectionFn: func(_ context.Context, _, _ string, _ []map[string]any) ([]CollectionResult, error) {
			calls++
			return nil, nil
		},
	}

	results, err := BulkUpsert(context.Background(), mc, "Point_Livraison__c", "Reference_PDL__c", nil)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Zero(t, calls)
}

func TestBulkUpsert_ErrorReturnsPartialResults(t *testing.T) {
	calls := 0
	mc := &mockClient{
		upsertCollectionFn: func(_ context.Context, _, _ string, records []map[string]any) ([]CollectionResult, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("connection reset")
			}
			results := make([]CollectionResult, len(records))
			for i := range records {
				results[i] = CollectionResult{Success: true}
			}
			return results, nil
		},
	}

	results, err := BulkUpsert(context.Background(), mc, "Point_Livraison__c", "Reference_PDL__c", upsertRecords(250))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: bulk upsert Point_Livraison__c batch 200-250")
	// First batch succeeded before the failure.
	assert.Len(t, results, 200)
}

func TestFailed(t *testing.T) {
	results := []CollectionResult{
		{ID: "a01", Success: true},
		{Success: false, Errors: []string{"duplicate value"}},
		{ID: "a03", Success: true},
		{Success: false, Errors: []string{"field required"}},
	}

	failed := Failed(results)
	require.Len(t, failed, 2)
	assert.Equal(t, []string{"duplicate value"}, failed[0].Errors)
	assert.Equal(t, []string{"field required"}, failed[1].Errors)
}

func TestFailed_AllSuccessful(t *testing.T) {
	results := []CollectionResult{
		{ID: "a01", Success: true},
		{ID: "a02", Success: true},
	}
	assert.Nil(t, Failed(results))
}
